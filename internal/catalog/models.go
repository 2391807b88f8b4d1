package catalog

import "time"

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// GeoPoint is a position in signed decimal degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Photo is a catalogued image. OwnerID is nil for orphaned photos.
type Photo struct {
	ID                 int64      `json:"id"`
	OwnerID            *int64     `json:"ownerId,omitempty"`
	StoredFilename     string     `json:"storedFilename"`
	OriginalFilename   string     `json:"originalFilename"`
	FileSize           int64      `json:"fileSize"`
	MimeType           string     `json:"mimeType"`
	DerivativeFilename string     `json:"derivativeFilename,omitempty"`
	Location           *GeoPoint  `json:"location,omitempty"`
	TakenAt            *time.Time `json:"takenAt,omitempty"`
	UploadedAt         time.Time  `json:"uploadedAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// IsOrphaned reports whether the photo has no owner.
func (p *Photo) IsOrphaned() bool {
	return p.OwnerID == nil
}

// StagedFile is everything known about a processed file before it becomes a
// Photo row. The derivative files and the relocated original already exist.
type StagedFile struct {
	OwnerID            *int64
	StoredFilename     string
	OriginalFilename   string
	FileSize           int64
	MimeType           string
	DerivativeFilename string
	Location           *GeoPoint
	TakenAt            *time.Time
}

// User is the minimal view of an account the core needs.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rating is one user's score for one photo.
type Rating struct {
	PhotoID   int64     `json:"photoId"`
	UserID    int64     `json:"userId"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// PhotoFilter narrows ListPhotos. Nil fields do not filter.
type PhotoFilter struct {
	// TakenFrom is inclusive.
	TakenFrom *time.Time
	// TakenTo is inclusive of the whole day it falls on.
	TakenTo *time.Time
	// MinRating compares against the mean of all ratings; unrated photos never match.
	MinRating *float64
	// HasGPS true keeps photos with a position, false keeps those without.
	HasGPS       *bool
	OwnerID      *int64
	OrphanedOnly bool
	Limit        int
	Offset       int
}

// Stats summarizes catalog contents.
type Stats struct {
	Photos         int `json:"photos"`
	OrphanedPhotos int `json:"orphanedPhotos"`
	PhotosWithGPS  int `json:"photosWithGps"`
	Ratings        int `json:"ratings"`
}
