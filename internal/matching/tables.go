package matching

import "strings"

// Tables holds the data-driven rules of the matcher. Keys may be written in natural form;
// they are cleaned the same way as user input when a Matcher is built.
type Tables struct {
	// Synonyms maps an alias to the catalog names it stands for, tried in order.
	Synonyms map[string][]string
	// UnitWords are container or portion words dropped before matching.
	UnitWords map[string]bool
	// CategoryAliases maps a word to a catalog category label.
	CategoryAliases map[string]string
	// Singularize reduces a token to its singular form.
	Singularize func(string) string
}

// NaiveSingular drops one trailing "s". Words such as "glass" or "fries" come out wrong;
// both sides of every comparison go through it, which keeps matching symmetric. Together with
// the unit words it can fold two catalog names onto one key ("Water" and "Water Bottles");
// Matcher.Validate reports such catalogs.
func NaiveSingular(word string) string {
	if len(word) > 1 && strings.HasSuffix(word, "s") {
		return word[:len(word)-1]
	}
	return word
}

// DefaultTables returns the tables tuned for the Bella Vista menu.
func DefaultTables() Tables {
	return Tables{
		Synonyms: map[string][]string{
			"margherita":    {"Margherita Pizza"},
			"pepperoni":     {"Pepperoni Pizza"},
			"carbonara":     {"Spaghetti Carbonara"},
			"spaghetti":     {"Spaghetti Carbonara"},
			"alfredo":       {"Fettuccine Alfredo"},
			"fettucine":     {"Fettuccine Alfredo"},
			"salmon":        {"Grilled Salmon"},
			"shrimp":        {"Grilled Shrimp"},
			"prawns":        {"Grilled Shrimp"},
			"fish":          {"Fish and Chips", "Grilled Salmon"},
			"fish n chips":  {"Fish and Chips"},
			"fish chips":    {"Fish and Chips"},
			"oj":            {"Fresh Orange Juice"},
			"orange juice":  {"Fresh Orange Juice"},
			"apple juice":   {"Apple Juice Can"},
			"water":         {"Water Bottle"},
			"mineral water": {"Water Bottle"},
			"ketchup":       {"Tomato Ketchup"},
			"chili":         {"Green Chilli"},
			"chilli":        {"Green Chilli"},
			"green chili":   {"Green Chilli"},
			"onions":        {"Sliced Onions"},
			"cheese":        {"Extra Cheese"},
			"garlic toast":  {"Garlic Bread"},
			"side salad":    {"Garden Salad"},
			"salad":         {"Caesar Salad", "Garden Salad"},
		},
		UnitWords: map[string]bool{
			"can": true, "cans": true,
			"bottle": true, "bottles": true,
			"pack": true, "packs": true,
			"cup": true, "cups": true,
			"slice": true, "slices": true,
			"piece": true, "pieces": true,
		},
		CategoryAliases: map[string]string{
			"pizza":      "Pizza",
			"pasta":      "Pasta",
			"noodles":    "Pasta",
			"spaghetti":  "Pasta",
			"salads":     "Salads",
			"seafood":    "Seafood",
			"fish":       "Seafood",
			"salmon":     "Seafood",
			"shrimp":     "Seafood",
			"desserts":   "Desserts",
			"cake":       "Desserts",
			"sweets":     "Desserts",
			"appetizer":  "Appetizers",
			"starters":   "Appetizers",
			"beverages":  "Beverages",
			"drinks":     "Beverages",
			"juice":      "Beverages",
			"water":      "Beverages",
			"soda":       "Beverages",
			"sides":      "Sides",
			"condiments": "Condiments",
			"sauce":      "Condiments",
			"extras":     "Extras",
			"addon":      "Extras",
		},
		Singularize: NaiveSingular,
	}
}
