package board

import (
	"fmt"

	"github.com/mathclub/ideaboard/internal/model"
)

const (
	MinRating = 1
	MaxRating = 5
)

// NewRatingRecord is the aggregate of a problem nobody has rated yet.
func NewRatingRecord() model.RatingRecord {
	return model.RatingRecord{Ratings: map[string]int{}, Count: 0, Mean: model.DefaultMean}
}

// ApplyRating records actingUser's rating and updates the running mean in
// place, without revisiting the other ratings. A user rating again replaces
// their previous value and leaves the count unchanged.
func ApplyRating(record model.RatingRecord, actingUser string, rating int) (model.RatingRecord, error) {
	if actingUser == "" {
		return record, ErrNoIdentity
	}
	if rating < MinRating || rating > MaxRating {
		return record, ErrInvalidRating
	}

	ratings := make(map[string]int, len(record.Ratings)+1)
	for k, v := range record.Ratings {
		ratings[k] = v
	}

	count := record.Count
	mean := record.Mean
	if count == 0 {
		mean = model.DefaultMean
	}

	prev, rated := record.Ratings[actingUser]
	var newCount int
	var newMean float64
	if rated && count > 0 {
		newCount = count
		newMean = (mean*float64(count) - float64(prev) + float64(rating)) / float64(count)
	} else {
		newCount = count + 1
		newMean = (mean*float64(count) + float64(rating)) / float64(newCount)
	}
	ratings[actingUser] = rating

	return model.RatingRecord{Ratings: ratings, Count: newCount, Mean: newMean}, nil
}

type Difficulty struct {
	Level string
	Label string
}

// DifficultyLevel buckets a mean rating into the badge shown next to a problem.
func DifficultyLevel(mean float64) Difficulty {
	switch {
	case mean < 2.0:
		return Difficulty{Level: "easy", Label: "Very Easy"}
	case mean < 3.0:
		return Difficulty{Level: "easy", Label: "Easy"}
	case mean < 3.5:
		return Difficulty{Level: "medium", Label: "Medium"}
	case mean < 4.0:
		return Difficulty{Level: "hard", Label: "Hard"}
	default:
		return Difficulty{Level: "hard", Label: "Very Hard"}
	}
}

func FormatMean(mean float64) string {
	return fmt.Sprintf("%.1f/5", mean)
}

// ReviewsLabel renders "1 review" or "N reviews".
func ReviewsLabel(count int) string {
	if count == 1 {
		return "1 review"
	}
	return fmt.Sprintf("%d reviews", count)
}
