package auth

import "github.com/geocoder89/foodsafety/internal/domain/user"

const (
	PermUsersList   = "USERS.LIST"
	PermUsersCreate = "USERS.CREATE"
	PermUsersRead   = "USERS.READ"
	PermUsersUpdate = "USERS.UPDATE"
	PermUsersDelete = "USERS.DELETE"

	PermRestaurantList   = "RESTAURANT.LIST"
	PermRestaurantCreate = "RESTAURANT.CREATE"
	PermRestaurantRead   = "RESTAURANT.READ"
	PermRestaurantUpdate = "RESTAURANT.UPDATE"
	PermRestaurantDelete = "RESTAURANT.DELETE"
)

// roles without an entry (user, anything unknown) hold no permissions
var permissionMatrix = map[user.Role][]string{
	user.RoleSuperAdmin: {
		PermUsersList,
		PermUsersCreate,
		PermUsersRead,
		PermUsersUpdate,
		PermUsersDelete,
	},
	user.RoleAdmin: {
		PermRestaurantList,
		PermRestaurantCreate,
		PermRestaurantRead,
		PermRestaurantUpdate,
		PermRestaurantDelete,
	},
}

// PermissionsFor returns a copy of the role's permission list, never nil.
func PermissionsFor(role string) []string {
	perms := permissionMatrix[user.Role(role)]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

func HasPermission(granted []string, required string) bool {
	for _, p := range granted {
		if p == required {
			return true
		}
	}
	return false
}

// RoleOption is one row of the role picker shown to user administrators.
type RoleOption struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

var roleLabels = []struct {
	role  user.Role
	label string
}{
	{user.RoleSuperAdmin, "Super Admin"},
	{user.RoleAdmin, "Business Admin"},
	{user.RoleUser, "User"},
}

func RoleOptions() []RoleOption {
	out := make([]RoleOption, 0, len(roleLabels))
	for _, r := range roleLabels {
		out = append(out, RoleOption{
			ID:          string(r.role),
			Name:        r.label,
			Permissions: PermissionsFor(string(r.role)),
		})
	}
	return out
}
