package media

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExtractMetadata(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		tags      *exifTags
		wantGPS   bool
		wantLat   float64
		wantLon   float64
		wantTaken *time.Time
	}{
		{
			name:      "gps and capture time",
			tags:      &exifTags{DateTimeOriginal: "2024:06:01 10:00:00", HasGPS: true, Latitude: 52.5, Longitude: 13.4},
			wantGPS:   true,
			wantLat:   52.5,
			wantLon:   13.4,
			wantTaken: ptrTime(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)),
		},
		{
			name:    "southern and western hemispheres",
			tags:    &exifTags{HasGPS: true, Latitude: -33.8688, Longitude: -70.25},
			wantGPS: true,
			wantLat: -33.8688,
			wantLon: -70.25,
		},
		{
			name:      "capture time only",
			tags:      &exifTags{DateTimeOriginal: "2019:12:31 23:59:59"},
			wantTaken: ptrTime(time.Date(2019, 12, 31, 23, 59, 59, 0, time.UTC)),
		},
		{
			name: "modification time only",
			tags: &exifTags{DateTime: "2020:01:02 03:04:05"},
		},
		{
			name:      "capture time wins over modification time",
			tags:      &exifTags{DateTime: "2023:03:03 12:00:00", DateTimeOriginal: "2019:07:14 08:30:00"},
			wantTaken: ptrTime(time.Date(2019, 7, 14, 8, 30, 0, 0, time.UTC)),
		},
		{
			name: "malformed capture time",
			tags: &exifTags{DateTimeOriginal: "not a date"},
		},
		{
			name: "no exif block",
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "photo"+string(rune('a'+i))+".jpg")
			if tt.tags != nil {
				createEXIFJPEG(t, path, 32, 24, *tt.tags)
			} else {
				createTestImage(t, path, 32, 24, "jpeg")
			}

			md := ExtractMetadata(path)

			if (md.Location != nil) != tt.wantGPS {
				t.Fatalf("Location = %+v, wantGPS %v", md.Location, tt.wantGPS)
			}
			if tt.wantGPS {
				if math.Abs(md.Location.Latitude-tt.wantLat) > 1e-4 || math.Abs(md.Location.Longitude-tt.wantLon) > 1e-4 {
					t.Errorf("Location = %+v, want (%f, %f)", md.Location, tt.wantLat, tt.wantLon)
				}
			}

			switch {
			case tt.wantTaken == nil && md.TakenAt != nil:
				t.Errorf("TakenAt = %v, want nil", md.TakenAt)
			case tt.wantTaken != nil && (md.TakenAt == nil || !md.TakenAt.Equal(*tt.wantTaken)):
				t.Errorf("TakenAt = %v, want %v", md.TakenAt, tt.wantTaken)
			}
		})
	}
}

func TestExtractMetadataNeverFails(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.jpg")
	if err := os.WriteFile(garbage, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	png := filepath.Join(dir, "plain.png")
	createTestImage(t, png, 10, 10, "png")

	// A JPEG whose APP1 block claims far more data than it holds.
	truncated := filepath.Join(dir, "truncated.jpg")
	seg := buildEXIFSegment(exifTags{DateTimeOriginal: "2024:06:01 10:00:00", HasGPS: true, Latitude: 1, Longitude: 2})
	if err := os.WriteFile(truncated, append([]byte{0xFF, 0xD8}, seg[:len(seg)/2]...), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{garbage, png, truncated, filepath.Join(dir, "missing.jpg")} {
		md := ExtractMetadata(path)
		if md.Location != nil || md.TakenAt != nil {
			t.Errorf("ExtractMetadata(%s) = %+v, want empty", filepath.Base(path), md)
		}
	}
}

func TestExtractMetadataFromReader(t *testing.T) {
	seg := buildEXIFSegment(exifTags{HasGPS: true, Latitude: 48.8584, Longitude: 2.2945})
	data := append([]byte{0xFF, 0xD8}, seg...)
	data = append(data, 0xFF, 0xD9)

	md := extractMetadata(bytes.NewReader(data), "inline")
	if md.Location == nil {
		t.Fatal("expected location from inline EXIF")
	}
	if md.TakenAt != nil {
		t.Errorf("TakenAt = %v, want nil", md.TakenAt)
	}
}

func TestValidCoordinate(t *testing.T) {
	tests := []struct {
		v     float64
		limit float64
		want  bool
	}{
		{0, 90, true},
		{90, 90, true},
		{-180, 180, true},
		{90.01, 90, false},
		{math.NaN(), 90, false},
		{math.Inf(1), 180, false},
	}

	for _, tt := range tests {
		if got := validCoordinate(tt.v, tt.limit); got != tt.want {
			t.Errorf("validCoordinate(%v, %v) = %v, want %v", tt.v, tt.limit, got, tt.want)
		}
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
