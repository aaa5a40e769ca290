package ranking

import (
	"math"

	"github.com/dharmasatrya/storefront/internal/models"
)

const (
	PricePerNightWeight = 0.7
	RatingWeight        = 0.3

	MaxRating = 5.0
)

func CalculateScores(packages []models.Package) []models.Package {
	if len(packages) == 0 {
		return packages
	}

	maxPerNight := findMaxPricePerNight(packages)

	result := make([]models.Package, len(packages))
	for i, p := range packages {
		result[i] = p
		result[i].BestValueScore = CalculateBestValue(p, maxPerNight)
	}

	return result
}

// Lower score = better value
func CalculateBestValue(pkg models.Package, maxPerNight float64) float64 {
	priceScore := 0.0
	if maxPerNight > 0 {
		priceScore = (PricePerNight(pkg) / maxPerNight) * 100
	}

	// unrated packages sit in the middle
	rating := pkg.Rating
	if rating <= 0 {
		rating = MaxRating / 2
	}
	ratingScore := (1 - math.Min(rating, MaxRating)/MaxRating) * 100

	score := (priceScore * PricePerNightWeight) + (ratingScore * RatingWeight)

	return math.Round(score*100) / 100
}

// PricePerNight treats a package without nights as a single night.
func PricePerNight(pkg models.Package) float64 {
	nights := pkg.Nights
	if nights < 1 {
		nights = 1
	}
	return pkg.Price / float64(nights)
}

func findMaxPricePerNight(packages []models.Package) float64 {
	maxPerNight := 0.0
	for _, p := range packages {
		if v := PricePerNight(p); v > maxPerNight {
			maxPerNight = v
		}
	}
	return maxPerNight
}
