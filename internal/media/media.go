package media

import (
	"context"
	"encoding/base64"
	"errors"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrEmptyUpload = errors.New("empty upload")
	ErrNotAnImage  = errors.New("upload is not an image")
	ErrBadEncoding = errors.New("invalid base64 payload")
	ErrTooLarge    = errors.New("upload too large")
)

const (
	LogoPrefix  = "logo"
	PhotoPrefix = "restaurants-photos"
)

// Store persists an object under key and returns its public URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Object is a validated image ready to be stored.
type Object struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Inspect sniffs data and rejects anything that is not an image.
func Inspect(data []byte, maxBytes int64) (Object, error) {
	if len(data) == 0 {
		return Object{}, ErrEmptyUpload
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Object{}, ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Object{}, ErrNotAnImage
	}

	return Object{Data: data, ContentType: mt.String(), Ext: mt.Extension()}, nil
}

// DecodeDataURI accepts "data:image/png;base64,...." or a bare base64 string.
func DecodeDataURI(raw string, maxBytes int64) (Object, error) {
	payload := raw
	if _, after, ok := strings.Cut(raw, ","); ok {
		payload = after
	}
	payload = strings.TrimSpace(payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Object{}, ErrBadEncoding
	}

	return Inspect(data, maxBytes)
}

// NewKey builds a collision-free object key like "logo/<uuid>.png".
func NewKey(prefix, ext string) string {
	if ext == "" {
		ext = ".png"
	}
	return path.Join(prefix, uuid.NewString()+ext)
}

// Save is the usual path: fresh key under prefix, then Put.
func Save(ctx context.Context, store Store, prefix string, obj Object) (string, error) {
	return store.Put(ctx, NewKey(prefix, obj.Ext), obj.ContentType, obj.Data)
}
