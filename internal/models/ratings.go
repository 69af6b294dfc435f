package models

// RatingCategory names one axis of user feedback.
type RatingCategory string

const (
	RatingEaseOfUse     RatingCategory = "ease_of_use"
	RatingClarity       RatingCategory = "clarity"
	RatingOutputQuality RatingCategory = "output_quality"
	RatingSatisfaction  RatingCategory = "overall_satisfaction"
)

// RatingCategories is the fixed set accepted by the feedback collector.
var RatingCategories = []RatingCategory{
	RatingEaseOfUse,
	RatingClarity,
	RatingOutputQuality,
	RatingSatisfaction,
}

// Ratings maps each category to an integer in [0,5]; 0 means unrated.
type Ratings map[RatingCategory]int
