// Package rating computes per-viewer display ratings and applies rating
// mutations.
//
// Display rating rules: no ratings means no display value; a viewer who
// rated the photo sees their own value; a viewer who did not sees the mean
// of the other users' ratings, or nothing when there are none; an
// anonymous viewer sees the mean of all ratings. The count is always the
// total number of ratings.
package rating
