package media

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"photomap/internal/catalog"
	"photomap/internal/logging"
	"photomap/internal/metrics"
)

// Metadata is what could be read from a file's embedded EXIF block. Either
// field may be nil.
type Metadata struct {
	Location *catalog.GeoPoint
	TakenAt  *time.Time
}

// ExtractMetadata reads GPS position and capture time from the file at
// path. It never fails: unreadable files, missing tags and malformed values
// all yield empty fields.
func ExtractMetadata(path string) Metadata {
	f, err := os.Open(path)
	if err != nil {
		logging.Debug("Metadata: cannot open %s: %v", path, err)
		recordExtraction(Metadata{})
		return Metadata{}
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", path, err)
		}
	}()

	md := extractMetadata(f, path)
	recordExtraction(md)
	return md
}

func extractMetadata(r io.Reader, name string) (md Metadata) {
	// goexif can panic on truncated IFDs
	defer func() {
		if p := recover(); p != nil {
			logging.Warn("Metadata: EXIF parser panic for %s: %v", name, p)
			md = Metadata{}
		}
	}()

	x, err := exif.Decode(r)
	if err != nil {
		logging.Debug("Metadata: no EXIF in %s: %v", name, err)
		return Metadata{}
	}

	if loc, err := readLocation(x); err != nil {
		logging.Debug("Metadata: no GPS in %s: %v", name, err)
	} else {
		md.Location = loc
	}

	if taken, err := readTakenAt(x); err != nil {
		logging.Debug("Metadata: no capture time in %s: %v", name, err)
	} else {
		md.TakenAt = taken
	}

	return md
}

func readLocation(x *exif.Exif) (*catalog.GeoPoint, error) {
	lat, lon, err := x.LatLong()
	if err != nil {
		return nil, err
	}
	if !validCoordinate(lat, 90) || !validCoordinate(lon, 180) {
		return nil, fmt.Errorf("coordinates out of range: %f, %f", lat, lon)
	}
	return &catalog.GeoPoint{Latitude: lat, Longitude: lon}, nil
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= limit
}

// exifTimeLayout is the EXIF 2.x date/time format.
const exifTimeLayout = "2006:01:02 15:04:05"

// readTakenAt returns the original capture time from DateTimeOriginal only.
// The IFD0 DateTime tag is the modification time and is ignored. EXIF stores
// a wall clock without zone; it is kept as-is and labelled UTC so the stored
// value does not depend on the server's zone.
func readTakenAt(x *exif.Exif) (*time.Time, error) {
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return nil, err
	}
	s, err := tag.StringVal()
	if err != nil {
		return nil, err
	}
	dt, err := time.Parse(exifTimeLayout, strings.TrimSpace(strings.TrimRight(s, "\x00")))
	if err != nil {
		return nil, err
	}
	if dt.Year() < 1800 {
		return nil, fmt.Errorf("implausible capture year %d", dt.Year())
	}
	return &dt, nil
}

func recordExtraction(md Metadata) {
	gps, taken := "missing", "missing"
	if md.Location != nil {
		gps = "found"
	}
	if md.TakenAt != nil {
		taken = "found"
	}
	metrics.MetadataExtractionsTotal.WithLabelValues("gps", gps).Inc()
	metrics.MetadataExtractionsTotal.WithLabelValues("taken_at", taken).Inc()
}
