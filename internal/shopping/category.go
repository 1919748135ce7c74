// Package shopping holds the client-side logic of the family shopping list:
// guessing an aisle for a new item and grouping the list for display.
package shopping

import "strings"

const Other = "Other"

// Categories is the display order of the known aisles.
var Categories = []string{
	"Produce",
	"Bakery",
	"Meat & Seafood",
	"Dairy",
	"Frozen",
	"Pantry",
	"Snacks",
	"Beverages",
	"Household",
	"Personal Care",
	"Baby",
	"Pets",
}

type rule struct {
	category string
	keywords []string
}

// rules are tried in order; the first whole-word match wins. More specific
// aisles come first so "ice cream" lands in Frozen rather than Dairy.
var rules = []rule{
	{"Frozen", []string{"frozen", "ice cream", "popsicle", "ice", "fish sticks", "waffles", "tater tots", "sorbet"}},
	{"Baby", []string{"diaper", "baby wipes", "formula", "baby food", "pacifier"}},
	{"Pets", []string{"dog food", "cat food", "cat litter", "litter", "dog treat", "kibble"}},
	{"Household", []string{"paper towel", "toilet paper", "dish soap", "detergent", "trash bag", "bin bag", "sponge", "aluminum foil", "foil", "plastic wrap", "bleach", "light bulb", "batteries", "napkin", "cleaner"}},
	{"Personal Care", []string{"shampoo", "conditioner", "toothpaste", "toothbrush", "deodorant", "soap", "lotion", "razor", "floss", "sunscreen", "tissues"}},
	{"Beverages", []string{"water", "sparkling water", "juice", "soda", "coffee", "tea", "beer", "wine", "kombucha", "lemonade"}},
	{"Snacks", []string{"chips", "crackers", "pretzels", "popcorn", "cookie", "granola bar", "candy", "chocolate", "nuts", "trail mix"}},
	{"Pantry", []string{"peanut butter", "canned", "rice", "pasta", "spaghetti", "flour", "sugar", "cereal", "oats", "oatmeal", "olive oil", "oil", "vinegar", "salt", "pepper flakes", "honey", "jam", "soup", "black beans", "lentils", "ketchup", "mustard", "mayo", "salsa", "spices", "baking soda"}},
	{"Bakery", []string{"bread", "bagel", "bun", "roll", "tortilla", "croissant", "muffin", "pita", "baguette", "cake"}},
	{"Meat & Seafood", []string{"chicken", "beef", "pork", "bacon", "sausage", "ham", "turkey", "steak", "ground beef", "salmon", "shrimp", "tuna", "fish", "lamb"}},
	{"Dairy", []string{"milk", "cheese", "yogurt", "butter", "cream", "sour cream", "eggs", "egg", "cottage cheese", "cream cheese"}},
	{"Produce", []string{"apple", "banana", "orange", "lemon", "lime", "avocado", "tomato", "potato", "onion", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrot", "celery", "cucumber", "pepper", "mushroom", "corn", "grape", "berries", "strawberries", "blueberries", "melon", "watermelon", "pineapple", "mango", "peach", "pear", "herbs", "cilantro", "basil", "parsley", "ginger", "zucchini", "asparagus", "green beans"}},
}

// Categorize guesses the aisle for an item name, falling back to Other.
func Categorize(name string) string {
	padded := " " + strings.Join(strings.Fields(strings.ToLower(name)), " ") + " "
	if strings.TrimSpace(padded) == "" {
		return Other
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if hasWord(padded, kw) {
				return r.category
			}
		}
	}
	return Other
}

// hasWord reports whether kw, or its plural, appears as whole words in the
// space-padded name.
func hasWord(padded, kw string) bool {
	for _, form := range [...]string{kw, kw + "s", kw + "es"} {
		if strings.Contains(padded, " "+form+" ") {
			return true
		}
	}
	return false
}
