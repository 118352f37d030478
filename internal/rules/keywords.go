// internal/rules/keywords.go
package rules

import (
	"strings"

	"mcp-diet-check/internal/models"
	"mcp-diet-check/internal/nutrients"
)

// Version identifies the keyword and additive tables below. It is reported
// with every verdict so a classification can be traced to the tables that
// produced it. Bump it whenever a table changes.
const Version = "2026.10.2"

// Group is a named set of ingredient keywords. Terms are matched against
// normalised ingredient text and tags; Exempt phrases are blanked out first;
// Codes are additive codes that imply the group.
type Group struct {
	Name   string
	Terms  []string
	Exempt []string
	Codes  []string
}

var plantMilks = []string{
	"coconut milk", "almond milk", "oat milk", "soy milk", "soya milk", "rice milk",
	"coconut cream", "cocoa butter", "peanut butter", "shea butter", "nut butter",
	"cream of tartar", "milk thistle", "butternut", "bean curd",
}

var nutLookalikes = []string{"coconut", "nutmeg", "butternut", "doughnut", "donut", "nutrition", "nutrient"}

// ingredientGroups expand an allergy or intolerance token into the terms that
// indicate it.
var ingredientGroups = map[string]Group{
	"milk": {
		Name: "milk",
		Terms: []string{
			"milk", "dairy", "whey", "casein", "caseinate", "lactose", "lactalbumin",
			"butter", "cream", "cheese", "yogurt", "yoghurt", "ghee", "curd", "skyr", "kefir",
		},
		Exempt: plantMilks,
		Codes:  []string{"e966"},
	},
	"lactose": {
		Name:   "lactose",
		Terms:  []string{"lactose", "milk", "whey", "cream", "butter", "cheese", "yogurt", "yoghurt"},
		Exempt: append([]string{"lactose free"}, plantMilks...),
		Codes:  []string{"e966"},
	},
	"nuts": {
		Name: "nuts",
		Terms: []string{
			"nut", "almond", "walnut", "peanut", "cashew", "pistachio", "hazelnut", "pecan",
			"macadamia", "brazil nut", "pine nut", "chestnut", "beechnut", "hickory nut",
			"tree nuts", "praline", "marzipan", "gianduja",
		},
		Exempt: nutLookalikes,
	},
	"peanut": {
		Name:   "peanut",
		Terms:  []string{"peanut", "groundnut", "arachis"},
		Exempt: []string{"peanut free"},
	},
	"egg": {
		Name:  "egg",
		Terms: []string{"egg", "albumin", "ovalbumin", "lysozyme", "mayonnaise", "meringue"},
		Codes: []string{"e1105"},
	},
	"gluten": {
		Name: "gluten",
		Terms: []string{
			"gluten", "wheat", "barley", "rye", "spelt", "semolina", "durum", "malt",
			"triticale", "couscous", "seitan", "bulgur", "farro", "kamut",
		},
		Exempt: []string{"gluten free", "buckwheat", "maltodextrin", "maltitol", "maltose", "maltol"},
	},
	"wheat": {
		Name:   "wheat",
		Terms:  []string{"wheat", "spelt", "semolina", "durum", "couscous", "seitan", "bulgur", "farro", "kamut"},
		Exempt: []string{"buckwheat", "wheat free"},
	},
	"soy": {
		Name:  "soy",
		Terms: []string{"soy", "soya", "soybean", "edamame", "tofu", "tempeh", "miso"},
	},
	"fish": {
		Name: "fish",
		Terms: []string{
			"fish", "anchovy", "anchovies", "cod", "salmon", "tuna", "trout", "sardine",
			"mackerel", "haddock", "pollock", "herring", "tilapia", "hake",
		},
	},
	"shellfish": {
		Name: "shellfish",
		Terms: []string{
			"shellfish", "crustacean", "mollusc", "shrimp", "prawn", "crab", "lobster",
			"crayfish", "langoustine", "mussel", "oyster", "clam", "scallop", "squid", "octopus",
		},
	},
	"sesame":  {Name: "sesame", Terms: []string{"sesame", "tahini"}},
	"mustard": {Name: "mustard", Terms: []string{"mustard"}},
	"celery":  {Name: "celery", Terms: []string{"celery", "celeriac"}},
	"lupin":   {Name: "lupin", Terms: []string{"lupin", "lupine"}},
	"sulphites": {
		Name:  "sulphites",
		Terms: []string{"sulphite", "sulfite", "sulphur dioxide", "sulfur dioxide"},
		Codes: []string{"e220", "e221", "e222", "e223", "e224", "e226", "e227", "e228"},
	},
}

var groupAliases = map[string]string{
	"dairy":           "milk",
	"cow milk":        "milk",
	"milk protein":    "milk",
	"lactose free":    "lactose",
	"nut":             "nuts",
	"tree nut":        "nuts",
	"tree nuts":       "nuts",
	"peanuts":         "peanut",
	"groundnuts":      "peanut",
	"eggs":            "egg",
	"wheat gluten":    "gluten",
	"celiac":          "gluten",
	"coeliac":         "gluten",
	"soya":            "soy",
	"soybean":         "soy",
	"soybeans":        "soy",
	"crustaceans":     "shellfish",
	"molluscs":        "shellfish",
	"seafood":         "shellfish",
	"sesame seeds":    "sesame",
	"sulfites":        "sulphites",
	"sulphur dioxide": "sulphites",
	"sulfur dioxide":  "sulphites",
}

// LookupGroup resolves a profile token to its ingredient group. A token that
// names no group becomes a single-term group of itself.
func LookupGroup(token string) Group {
	key := Normalize(token)
	if name, ok := groupAliases[key]; ok {
		key = name
	}
	if g, ok := ingredientGroups[key]; ok {
		return g
	}
	if g, ok := ingredientGroups[strings.TrimSuffix(key, "s")]; ok {
		return g
	}
	return Group{Name: key, Terms: []string{key}}
}

// NutGroup is the group the no_nuts search filter excludes.
func NutGroup() Group {
	return ingredientGroups["nuts"]
}

// preferenceTable lists what disqualifies a product for a hard preference.
type preferenceTable struct {
	Group
	// TrustLabels are product labels that settle the question without a scan.
	TrustLabels []string
	// Conflict and Unknown are ingredient analysis tags that flag a hard
	// conflict or an unresolved status.
	Conflict []string
	Unknown  []string
}

var meats = []string{
	"meat", "chicken", "beef", "pork", "bacon", "lard", "ham", "lamb", "mutton",
	"veal", "turkey", "duck", "venison", "tallow", "suet",
}

var seafood = []string{
	"fish", "anchovy", "anchovies", "tuna", "salmon", "cod", "shrimp", "prawn",
	"crab", "lobster", "oyster", "mussel", "squid",
}

var preferenceTables = map[models.Preference]preferenceTable{
	models.Vegan: {
		Group: Group{
			Name: "vegan",
			Terms: concat(meats, seafood, []string{
				"milk", "egg", "honey", "gelatin", "gelatine", "whey", "casein", "dairy",
				"cheese", "butter", "cream", "lactose", "yogurt", "yoghurt", "ghee", "albumin",
				"collagen", "beeswax", "carmine", "cochineal", "shellac", "rennet",
			}),
			Exempt: plantMilks,
			Codes:  []string{"e120", "e441", "e542", "e901", "e904", "e966"},
		},
		TrustLabels: []string{"vegan"},
		Conflict:    []string{"non vegan"},
		Unknown:     []string{"maybe vegan", "vegan status unknown"},
	},
	models.Vegetarian: {
		Group: Group{
			Name: "vegetarian",
			Terms: concat(meats, seafood, []string{
				"gelatin", "gelatine", "rennet", "collagen", "carmine", "cochineal",
			}),
			Exempt: []string{"microbial rennet", "vegetable rennet", "vegetarian rennet"},
			Codes:  []string{"e120", "e441", "e542"},
		},
		TrustLabels: []string{"vegetarian", "vegan"},
		Conflict:    []string{"non vegetarian"},
		Unknown:     []string{"maybe vegetarian", "vegetarian status unknown"},
	},
	models.Pescatarian: {
		Group: Group{
			Name:   "pescatarian",
			Terms:  concat(meats, []string{"gelatin", "gelatine", "collagen"}),
			Exempt: []string{"fish gelatin", "fish gelatine", "fish collagen"},
			Codes:  []string{"e542"},
		},
		TrustLabels: []string{"pescatarian", "vegetarian", "vegan"},
	},
	models.Halal: {
		Group: Group{
			Name: "halal",
			Terms: []string{
				"pork", "bacon", "ham", "lard", "gelatin", "gelatine", "alcohol", "ethanol",
				"wine", "beer", "rum", "brandy", "whisky", "whiskey", "liqueur", "carmine",
			},
			Exempt: []string{"halal gelatin", "fish gelatin", "bovine gelatin", "wine vinegar", "root beer", "ginger beer"},
			Codes:  []string{"e120", "e441"},
		},
		TrustLabels: []string{"halal"},
	},
	models.Kosher: {
		Group: Group{
			Name: "kosher",
			Terms: []string{
				"pork", "bacon", "ham", "lard", "shellfish", "shrimp", "prawn", "crab", "lobster",
				"oyster", "mussel", "clam", "squid", "octopus", "gelatin", "gelatine", "carmine",
			},
			Exempt: []string{"kosher gelatin", "fish gelatin"},
			Codes:  []string{"e120"},
		},
		TrustLabels: []string{"kosher"},
	},
}

// additiveGroups are the names a profile may use instead of listing codes.
var additiveGroups = map[string][]string{
	"artificial sweeteners": {"e950", "e951", "e952", "e954", "e955", "e961", "e962", "e969"},
	"artificial colors": {
		"e102", "e104", "e110", "e122", "e124", "e127", "e128", "e129",
		"e131", "e132", "e133", "e142", "e150c", "e150d", "e151", "e155",
	},
	"nitrites":   {"e249", "e250", "e251", "e252"},
	"sulphites":  {"e220", "e221", "e222", "e223", "e224", "e226", "e227", "e228"},
	"phosphates": {"e338", "e339", "e340", "e341", "e343", "e450", "e451", "e452"},
	"msg":        {"e620", "e621", "e622", "e623", "e624", "e625"},
}

var additiveAliases = map[string]string{
	"sweeteners":           "artificial sweeteners",
	"artificial colours":   "artificial colors",
	"colours":              "artificial colors",
	"colors":               "artificial colors",
	"food colouring":       "artificial colors",
	"nitrates":             "nitrites",
	"sulfites":             "sulphites",
	"monosodium glutamate": "msg",
	"glutamates":           "msg",
}

// ExpandAdditive resolves an avoided additive token to the codes it covers:
// a group name expands to its members, anything else is read as one code.
func ExpandAdditive(token string) []string {
	key := Normalize(token)
	if alias, ok := additiveAliases[key]; ok {
		key = alias
	}
	if codes, ok := additiveGroups[key]; ok {
		return codes
	}
	if code := nutrients.NormalizeAdditive(token); code != "" {
		return []string{code}
	}
	return nil
}

// codeMatches reports whether a product additive tag is code or one of its
// lettered sub-variants ("e150d" for "e150", "e450i" for "e450").
func codeMatches(tag, code string) bool {
	if tag == code {
		return true
	}
	rest, ok := strings.CutPrefix(tag, code)
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
