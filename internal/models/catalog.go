package models

// CatalogEntry holds the static fiscal reference data for one product.
// SPIC and PackageCode are assigned by the tax authority per good type;
// CommissionTIN identifies the merchant in the fiscal submission.
type CatalogEntry struct {
	Name          string
	SPIC          string
	PackageCode   string
	CommissionTIN string
}

const merchantTIN = "307123456"

// Catalog is the fixed product list offered by the shop.
var Catalog = map[string]CatalogEntry{
	"Mug":           {Name: "Mug", SPIC: "06912001036000000", PackageCode: "1184747", CommissionTIN: merchantTIN},
	"Keychain":      {Name: "Keychain", SPIC: "07117001014000000", PackageCode: "1156259", CommissionTIN: merchantTIN},
	"Cap":           {Name: "Cap", SPIC: "06506001022000000", PackageCode: "1211357", CommissionTIN: merchantTIN},
	"Business Card": {Name: "Business Card", SPIC: "04911001003000000", PackageCode: "1174432", CommissionTIN: merchantTIN},
	"T-Shirt":       {Name: "T-Shirt", SPIC: "06109001001000000", PackageCode: "1197201", CommissionTIN: merchantTIN},
	"Hoodie":        {Name: "Hoodie", SPIC: "06110001002000000", PackageCode: "1197215", CommissionTIN: merchantTIN},
	"Puzzle":        {Name: "Puzzle", SPIC: "09503001016000000", PackageCode: "1161845", CommissionTIN: merchantTIN},
	"Stone":         {Name: "Stone", SPIC: "06802001010000000", PackageCode: "1148820", CommissionTIN: merchantTIN},
	"Glass":         {Name: "Glass", SPIC: "07013001008000000", PackageCode: "1184761", CommissionTIN: merchantTIN},
}

// ProductNames returns the catalog products in a stable order for keyboards.
func ProductNames() []string {
	return []string{"Mug", "Keychain", "Cap", "Business Card", "T-Shirt", "Hoodie", "Puzzle", "Stone", "Glass"}
}
