package media

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photomap/internal/logging"
	"photomap/internal/metrics"
)

const (
	// MaxImageDimension is the maximum width or height we'll process
	// Images larger than this will be downscaled first
	MaxImageDimension = 4096

	// MaxImagePixels is the maximum total pixels (width * height) we'll process
	// A 50MP image would be ~50,000,000 pixels, which uses ~200MB in RGBA
	MaxImagePixels = 20_000_000 // ~20MP, uses ~80MB in RGBA
)

// ErrDecode marks input that is not a decodable raster image.
var ErrDecode = errors.New("undecodable image")

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
	Format string
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
		Format: format,
	}, nil
}

// constrainedSize scales width x height down to fit maxDimension on each
// side and maxPixels in total, preserving aspect ratio.
func constrainedSize(width, height, maxDimension, maxPixels int) (int, int) {
	targetWidth, targetHeight := width, height

	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}

	if targetPixels := targetWidth * targetHeight; targetPixels > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(targetPixels))
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	return max(targetWidth, 1), max(targetHeight, 1)
}

// LoadImageConstrained loads an image with EXIF orientation applied,
// downscaling it if it exceeds the size limits. Any decode failure wraps
// ErrDecode.
func LoadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	dimensions, err := GetImageDimensions(path)
	if err != nil {
		metrics.ThumbnailImageDecodeByFormat.WithLabelValues("unknown").Inc()
		return nil, err
	}
	metrics.ThumbnailImageDecodeByFormat.WithLabelValues(dimensions.Format).Inc()

	width, height := dimensions.Width, dimensions.Height
	logging.Debug("Image %s dimensions: %dx%d (%s)", path, width, height, dimensions.Format)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if width <= maxDimension && height <= maxDimension && width*height <= maxPixels {
		return img, nil
	}

	targetWidth, targetHeight := constrainedSize(width, height, maxDimension, maxPixels)
	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)

	// Orientation may have swapped the axes
	if b := img.Bounds(); b.Dx() != width {
		targetWidth, targetHeight = targetHeight, targetWidth
	}

	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}
