package domain

import "strings"

type Category string

const (
	CategoryEngineering Category = "Engineering"
	CategoryHR          Category = "HR"
	CategoryLegal       Category = "Legal"
	CategoryFinance     Category = "Finance"
	CategoryMaintenance Category = "Maintenance"
	CategoryOperations  Category = "Operations"
)

// Categories is the closed category set, in prompt order.
var Categories = []Category{
	CategoryEngineering,
	CategoryHR,
	CategoryLegal,
	CategoryFinance,
	CategoryMaintenance,
	CategoryOperations,
}

// ParseCategory matches raw case-insensitively against the closed set.
func ParseCategory(raw string) (Category, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, c := range Categories {
		if strings.EqualFold(trimmed, string(c)) {
			return c, true
		}
	}
	return "", false
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func CategoryNames() []string {
	names := make([]string, 0, len(Categories))
	for _, c := range Categories {
		names = append(names, string(c))
	}
	return names
}
