package extraction

import (
	"fmt"
	"strings"
)

// Category is an expense category. The declaration order of categories below
// decides ties when text mentions keywords of more than one category.
type Category string

const (
	CategoryFurniture            Category = "Furniture"
	CategoryCleaning             Category = "Cleaning"
	CategoryPettyCash            Category = "Petty-cash"
	CategoryMaintenance          Category = "Maintenance"
	CategoryOffice               Category = "Office"
	CategoryVehicle              Category = "Vehicle"
	CategoryMarketing            Category = "Marketing"
	CategoryProfessionalServices Category = "Professional-services"
	CategoryEquipment            Category = "Equipment"
	CategoryElectricity          Category = "Electricity"
	CategoryOther                Category = "Other"
)

var categoryOrder = []Category{
	CategoryFurniture,
	CategoryCleaning,
	CategoryPettyCash,
	CategoryMaintenance,
	CategoryOffice,
	CategoryVehicle,
	CategoryMarketing,
	CategoryProfessionalServices,
	CategoryEquipment,
	CategoryElectricity,
	CategoryOther,
}

// Hebrew display labels, as shown on the expense form.
var categoryLabels = map[Category]string{
	CategoryFurniture:            "ריהוט",
	CategoryCleaning:             "נקיון",
	CategoryPettyCash:            "קופה קטנה",
	CategoryMaintenance:          "תחזוקה",
	CategoryOffice:               "משרד",
	CategoryVehicle:              "רכב",
	CategoryMarketing:            "שיווק",
	CategoryProfessionalServices: "שירותים מקצועיים",
	CategoryEquipment:            "ציוד",
	CategoryElectricity:          "חשמל",
	CategoryOther:                "אחר",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Label returns the Hebrew display label.
func (c Category) Label() string {
	return categoryLabels[c]
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory accepts an English name (case-insensitive) or a Hebrew label.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categoryOrder {
		if strings.EqualFold(s, string(c)) || s == c.Label() {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

var categoryKeywords = newKeywordTable(
	keywordRow[Category]{CategoryFurniture, []string{
		"ריהוט", "רהיטים", "כיסא", "כסא", "כיסאות", "שולחן", "ארון", "ספה", "מדפים", "איקאה",
		"furniture", "chair", "desk", "sofa", "cabinet", "shelves", "ikea",
	}},
	keywordRow[Category]{CategoryCleaning, []string{
		"ניקיון", "נקיון", "ניקוי", "אקונומיקה", "סבון", "חומרי ניקוי",
		"cleaning", "detergent", "soap", "bleach", "janitor", "sanitizer",
	}},
	keywordRow[Category]{CategoryPettyCash, []string{
		"קופה קטנה", "כיבוד", "petty cash", "refreshments", "snacks",
	}},
	keywordRow[Category]{CategoryMaintenance, []string{
		"תחזוקה", "תיקון", "תיקונים", "שיפוץ", "אינסטלציה", "אינסטלטור",
		"maintenance", "repair", "plumbing", "plumber", "renovation", "handyman",
	}},
	keywordRow[Category]{CategoryOffice, []string{
		"ציוד משרדי", "משרד", "כלי כתיבה", "נייר", "טונר",
		"office", "stationery", "toner", "paper", "ink cartridge",
	}},
	keywordRow[Category]{CategoryVehicle, []string{
		"רכב", "דלק", "בנזין", "סולר", "חניה", "חנייה", "מוסך", "צמיגים", "שטיפת רכב",
		"vehicle", "fuel", "petrol", "diesel", "gasoline", "parking", "garage", "car wash", "tires",
	}},
	keywordRow[Category]{CategoryMarketing, []string{
		"שיווק", "פרסום", "מודעה", "מודעות", "קמפיין",
		"marketing", "advertising", "advertisement", "campaign", "promotion", "flyers",
	}},
	keywordRow[Category]{CategoryProfessionalServices, []string{
		"שירותים מקצועיים", "עורך דין", "עורכי דין", `עו"ד`, "רואה חשבון", `רו"ח`, "ייעוץ", "יועץ",
		"consulting", "consultant", "lawyer", "attorney", "accountant", "legal services", "bookkeeping",
	}},
	keywordRow[Category]{CategoryEquipment, []string{
		"ציוד", "מחשב", "מדפסת", "מסך", "כלי עבודה",
		"equipment", "computer", "laptop", "printer", "monitor", "hardware", "tools",
	}},
	keywordRow[Category]{CategoryElectricity, []string{
		"חשמל", "חברת החשמל", `קוט"ש`,
		"electricity", "electric company", "kwh",
	}},
	keywordRow[Category]{CategoryOther, nil},
)

// ClassifyCategory returns the first category whose keywords appear in the
// text, falling back to a literal mention of a category name or label. When
// nothing matches it returns CategoryOther and false.
func ClassifyCategory(text string) (Category, bool) {
	if c, ok := categoryKeywords.lookup(text); ok {
		return c, true
	}
	folded := fold(text)
	for _, c := range categoryOrder {
		if c == CategoryOther {
			continue
		}
		if strings.Contains(folded, fold(string(c))) || strings.Contains(folded, fold(c.Label())) {
			return c, true
		}
	}
	return CategoryOther, false
}
