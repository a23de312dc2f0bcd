package restaurant

// Reference data loaded into empty lookup tables on startup.

var DefaultDistricts = []District{
	{ID: "trivandrum", Name: "Trivandrum"},
	{ID: "kollam", Name: "Kollam"},
	{ID: "pathanamthitta", Name: "Pathanamthitta"},
	{ID: "alappuzha", Name: "Alappuzha"},
	{ID: "kottayam", Name: "Kottayam"},
	{ID: "idukki", Name: "Idukki"},
	{ID: "ernakulam", Name: "Ernakulam"},
	{ID: "thrissur", Name: "Thrissur"},
	{ID: "palakkad", Name: "Palakkad"},
	{ID: "malappuram", Name: "Malappuram"},
	{ID: "kozhikode", Name: "Kozhikode"},
	{ID: "wayanad", Name: "Wayanad"},
	{ID: "kannur", Name: "Kannur"},
	{ID: "kasaragod", Name: "Kasaragod"},
}

var DefaultCircles = []Circle{
	{Name: "Kazhakoottam", District: "Trivandrum"},
	{Name: "Nemom", District: "Trivandrum"},
	{Name: "Vattiyoorkavu", District: "Trivandrum"},
	{Name: "Kollam", District: "Kollam"},
	{Name: "Ernakulam", District: "Ernakulam"},
	{Name: "Kochi", District: "Ernakulam"},
	{Name: "Thrissur", District: "Thrissur"},
	{Name: "Kozhikode North", District: "Kozhikode"},
}

var DefaultTypes = []TypeOption{
	{ID: string(TypeBakery), Name: string(TypeBakery)},
	{ID: string(TypeJuicery), Name: string(TypeJuicery)},
	{ID: string(TypeRestaurant), Name: string(TypeRestaurant)},
}
