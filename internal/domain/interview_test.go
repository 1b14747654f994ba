package domain

import "testing"

func TestRatingForScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		score float64
		want  Rating
	}{
		{10, RatingExcellent},
		{9, RatingExcellent},
		{8, RatingExcellent},
		{7.99, RatingGood},
		{6, RatingGood},
		{5, RatingFair},
		{4, RatingFair},
		{3.9, RatingPoor},
		{2, RatingPoor},
		{0, RatingPoor},
	}
	for _, tc := range cases {
		if got := RatingForScore(tc.score); got != tc.want {
			t.Fatalf("RatingForScore(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
