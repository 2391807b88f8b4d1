package rating

import "photomap/internal/catalog"

// Summary is the viewer-specific presentation of a photo's ratings.
type Summary struct {
	// Display is nil when there is nothing to show.
	Display *float64 `json:"displayRating"`
	// Count is always the total number of ratings.
	Count int `json:"ratingCount"`
	// Own is the viewer's rating, if any.
	Own *int `json:"userRating,omitempty"`
}

// Display computes the display rating and count for a viewer. A nil viewer
// is anonymous and sees the mean of all ratings. A viewer who has rated the
// photo sees their own value; any other viewer sees the mean of everyone
// else's ratings. It returns nil when no rating contributes.
func Display(ratings []catalog.Rating, viewer *int64) (*float64, int) {
	s := Summarize(ratings, viewer)
	return s.Display, s.Count
}

// Summarize is Display plus the viewer's own rating.
func Summarize(ratings []catalog.Rating, viewer *int64) Summary {
	s := Summary{Count: len(ratings)}
	if len(ratings) == 0 {
		return s
	}

	if viewer != nil {
		for _, r := range ratings {
			if r.UserID == *viewer {
				own := r.Value
				s.Own = &own
				v := float64(own)
				s.Display = &v
				return s
			}
		}
	}

	sum, n := 0, 0
	for _, r := range ratings {
		if viewer != nil && r.UserID == *viewer {
			continue
		}
		sum += r.Value
		n++
	}
	if n == 0 {
		return s
	}

	mean := float64(sum) / float64(n)
	s.Display = &mean
	return s
}
