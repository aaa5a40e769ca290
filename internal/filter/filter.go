package filter

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dharmasatrya/storefront/internal/models"
	"github.com/dharmasatrya/storefront/internal/ranking"
)

const (
	SortPopular   = "popular"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNights    = "nights"
	SortBestValue = "best_value"
)

// Apply narrows an already fetched list. The input slice is left untouched.
func Apply(packages []models.Package, filters models.LocalFilters) []models.Package {
	filtered := applyFilters(packages, filters)

	if strings.ToLower(filters.SortBy) == SortBestValue {
		filtered = ranking.CalculateScores(filtered)
	}

	return applySort(filtered, filters.SortBy)
}

func applyFilters(packages []models.Package, filters models.LocalFilters) []models.Package {
	query := Fold(filters.Query)
	tags := make([]string, 0, len(filters.Tags))
	for _, tag := range filters.Tags {
		if t := Fold(tag); t != "" {
			tags = append(tags, t)
		}
	}

	result := make([]models.Package, 0, len(packages))
	for _, p := range packages {
		if matchesFilters(p, query, tags, filters) {
			result = append(result, p)
		}
	}

	return result
}

func matchesFilters(p models.Package, query string, tags []string, filters models.LocalFilters) bool {
	if filters.PriceMin != nil && p.Price < *filters.PriceMin {
		return false
	}
	if filters.PriceMax != nil && p.Price > *filters.PriceMax {
		return false
	}

	if query != "" {
		haystack := Fold(p.Title + " " + p.Location + " " + strings.Join(p.Tags, " "))
		if !strings.Contains(haystack, query) {
			return false
		}
	}

	if len(tags) > 0 {
		found := false
		for _, want := range tags {
			for _, have := range p.Tags {
				if Fold(have) == want {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func applySort(packages []models.Package, sortBy string) []models.Package {
	if len(packages) == 0 {
		return packages
	}

	switch strings.ToLower(sortBy) {
	case SortPriceAsc:
		sort.SliceStable(packages, func(i, j int) bool {
			return packages[i].Price < packages[j].Price
		})

	case SortPriceDesc:
		sort.SliceStable(packages, func(i, j int) bool {
			return packages[i].Price > packages[j].Price
		})

	case SortNights:
		sort.SliceStable(packages, func(i, j int) bool {
			return packages[i].Nights > packages[j].Nights
		})

	case SortBestValue:
		sort.SliceStable(packages, func(i, j int) bool {
			return packages[i].BestValueScore < packages[j].BestValueScore
		})

	default:
		// Featured packages first, backend order otherwise
		sort.SliceStable(packages, func(i, j int) bool {
			return packages[i].Popular && !packages[j].Popular
		})
	}

	return packages
}

// Fold lowercases s and strips diacritics, so "Córdoba" matches "cordoba".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
