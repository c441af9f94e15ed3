package model

// IngredientCatalogEntry is a canonical, deduplicated ingredient
type IngredientCatalogEntry struct {
	ID       int64  `json:"ingredient_id" db:"ingredient_id"`
	Name     string `json:"ingredient_name" db:"ingredient_name"`
	Category string `json:"ingredient_category" db:"ingredient_category"`
}

// IngredientMention is one ingredient reported in one analysis
type IngredientMention struct {
	AnalysisID   int64   `json:"analysis_id" db:"analysis_id"`
	IngredientID int64   `json:"ingredient_id" db:"ingredient_id"`
	PrepStyle    string  `json:"prep_style" db:"prep_style"`
	Comment      *string `json:"comment,omitempty" db:"comment"`
}

// DefaultCategory is used when a proposed category is not recognised
const DefaultCategory = "Other"

// DefaultPrepStyle is used when a proposed prep style is not recognised
const DefaultPrepStyle = "Raw"

// IngredientCategories is the closed set of catalog categories
var IngredientCategories = []string{
	"Aromatic Veg",
	"Root Veg",
	"Leafy Green",
	"Cruciferous Veg",
	"Squash",
	"Nightshade",
	"Mushroom",
	"Fruit",
	"Protein-Poultry",
	"Protein-RedMeat",
	"Protein-Pork",
	"Protein-Seafood",
	"Protein-Game",
	"Protein-Processed",
	"Protein-Plant",
	"Egg",
	"Dairy",
	"Starch-Potato",
	"Starch-Grain",
	"Starch-Legume",
	"Nut/Seed",
	"Herb",
	"Spice",
	"Seasoning",
	"Condiment",
	"Sauce/Paste",
	"Sweetener",
	"Fat",
	"Acid",
	"Pickle/Fermented",
	"Bread/Baked",
	"Confection",
	"Snack/Processed",
	"Liquid-Water",
	"Liquid-Broth",
	"Liquid-Dairy",
	"Liquid-Wine",
	"Liquid-Beer",
	"Liquid-Spirit",
	"Liquid-Juice",
	"Other",
}

// PrepStyles is the closed set of preparation styles
var PrepStyles = []string{
	"Raw",
	"Roasted",
	"Sautéed",
	"Boiled",
	"Leftover",
	"Scrap",
	"Jarred",
	"Fried",
	"Grilled",
	"Smoked",
	"Steamed",
	"Braised",
	"Baked",
	"Pickled",
	"Dried",
	"Canned",
	"Frozen",
	"Marinated",
	"Fermented",
	"Powdered",
	"Caramelized",
	"Cured",
	"Mashed",
	"Confit",
	"Blanched",
	"Poached",
	"Infused",
}

var (
	categorySet  = toSet(IngredientCategories)
	prepStyleSet = toSet(PrepStyles)
)

// ValidCategory returns category if it is recognised, otherwise DefaultCategory
func ValidCategory(category string) string {
	if _, ok := categorySet[category]; ok {
		return category
	}
	return DefaultCategory
}

// ValidPrepStyle returns style if it is recognised, otherwise DefaultPrepStyle
func ValidPrepStyle(style string) string {
	if _, ok := prepStyleSet[style]; ok {
		return style
	}
	return DefaultPrepStyle
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
