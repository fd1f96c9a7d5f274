package normalize

import (
	"strings"

	"github.com/hyperjump/yomu/internal/models"
)

// categoryTable maps provider taxonomies to canonical categories. Keys are
// lower-cased provider category names; the "" provider applies to all.
var categoryTable = map[string]map[string]models.Category{
	"": {
		"general":       models.CategoryGeneral,
		"top":           models.CategoryGeneral,
		"top stories":   models.CategoryGeneral,
		"headlines":     models.CategoryGeneral,
		"world":         models.CategoryGeneral,
		"nation":        models.CategoryGeneral,
		"technology":    models.CategoryTechnology,
		"tech":          models.CategoryTechnology,
		"gadgets":       models.CategoryTechnology,
		"business":      models.CategoryBusiness,
		"finance":       models.CategoryBusiness,
		"markets":       models.CategoryBusiness,
		"economy":       models.CategoryBusiness,
		"health":        models.CategoryHealth,
		"medical":       models.CategoryHealth,
		"wellness":      models.CategoryHealth,
		"science":       models.CategoryScience,
		"environment":   models.CategoryScience,
		"space":         models.CategoryScience,
		"sports":        models.CategorySports,
		"sport":         models.CategorySports,
		"entertainment": models.CategoryEntertainment,
		"culture":       models.CategoryEntertainment,
		"arts":          models.CategoryEntertainment,
		"politics":      models.CategoryPolitics,
		"elections":     models.CategoryPolitics,
	},
	"gnews": {
		"world":  models.CategoryGeneral,
		"nation": models.CategoryGeneral,
	},
}

// MapCategory maps a provider-specific category to a canonical one. Unknown
// values map to general.
func MapCategory(provider, providerCategory string) models.Category {
	key := strings.ToLower(strings.TrimSpace(providerCategory))
	if key == "" {
		return models.CategoryGeneral
	}
	if t, ok := categoryTable[strings.ToLower(provider)]; ok {
		if c, ok := t[key]; ok {
			return c
		}
	}
	if c, ok := categoryTable[""][key]; ok {
		return c
	}
	return models.CategoryGeneral
}
