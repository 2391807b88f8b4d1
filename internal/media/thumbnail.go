package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"photomap/internal/filesystem"
	"photomap/internal/logging"
	"photomap/internal/metrics"
)

// Size is a named bounding box. Derivatives fit within Max x Max.
type Size struct {
	Name string
	Max  int
}

func (s Size) String() string {
	return fmt.Sprintf("%s:%d", s.Name, s.Max)
}

// DefaultSizes is used when no sizes are configured.
var DefaultSizes = []Size{{Name: "medium", Max: 300}}

// ParseSizes parses "name:pixels" pairs separated by commas, e.g.
// "small:150,medium:300,large:800". Order is preserved; the first size is
// the primary derivative recorded in the catalog.
func ParseSizes(value string) ([]Size, error) {
	var sizes []Size
	seen := make(map[string]bool)

	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, px, ok := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid thumbnail size %q (want name:pixels)", part)
		}
		if strings.ContainsAny(name, `/\.`) {
			return nil, fmt.Errorf("invalid thumbnail size name %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate thumbnail size %q", name)
		}

		n, err := strconv.Atoi(strings.TrimSpace(px))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid pixel bound in thumbnail size %q", part)
		}

		seen[name] = true
		sizes = append(sizes, Size{Name: name, Max: n})
	}

	if len(sizes) == 0 {
		return nil, fmt.Errorf("no thumbnail sizes in %q", value)
	}
	return sizes, nil
}

// Derivative describes one generated thumbnail.
type Derivative struct {
	Size Size
	// Name is relative to the generator's output directory.
	Name   string
	Path   string
	Width  int
	Height int
}

// ThumbnailGenerator writes JPEG derivatives of original images into
// <outputDir>/<size name>/<stem>.jpg.
type ThumbnailGenerator struct {
	outputDir string
	sizes     []Size
	quality   int
	useVips   bool
	retry     filesystem.RetryConfig
}

// NewThumbnailGenerator creates a generator. quality is the JPEG quality
// (1-100); out-of-range values fall back to 85.
func NewThumbnailGenerator(outputDir string, sizes []Size, quality int, useVips bool) *ThumbnailGenerator {
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	if quality < 1 || quality > 100 {
		quality = 85
	}

	logging.Debug("ThumbnailGenerator: output dir %s, sizes %v, quality %d, vips %v", outputDir, sizes, quality, useVips)

	return &ThumbnailGenerator{
		outputDir: outputDir,
		sizes:     sizes,
		quality:   quality,
		useVips:   useVips,
		retry:     filesystem.DefaultRetryConfig(),
	}
}

// Sizes returns the configured sizes in order.
func (g *ThumbnailGenerator) Sizes() []Size {
	return g.sizes
}

// SizeNames returns the configured size names in order.
func (g *ThumbnailGenerator) SizeNames() []string {
	names := make([]string, len(g.sizes))
	for i, s := range g.sizes {
		names[i] = s.Name
	}
	return names
}

// DerivativeName is the deterministic name, relative to the output
// directory, of the derivative of storedFilename at size.
func DerivativeName(size Size, storedFilename string) string {
	base := filepath.Base(storedFilename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(size.Name, stem+".jpg")
}

// Paths returns the absolute paths of every derivative of storedFilename.
func (g *ThumbnailGenerator) Paths(storedFilename string) []string {
	paths := make([]string, len(g.sizes))
	for i, size := range g.sizes {
		paths[i] = filepath.Join(g.outputDir, DerivativeName(size, storedFilename))
	}
	return paths
}

// Generate writes one derivative per configured size for the image at
// srcPath, named after storedFilename. Every size is rendered before any
// file is written. If a write fails, derivatives this call created are
// removed; files it replaced keep their new content. Decode failures wrap
// ErrDecode, and a decode still running when ctx ends returns ctx's error.
func (g *ThumbnailGenerator) Generate(ctx context.Context, srcPath, storedFilename string) ([]Derivative, error) {
	backend := "imaging"
	if g.useVips && IsVipsAvailable() {
		backend = "vips"
	}

	start := time.Now()
	defer func() {
		metrics.ThumbnailGenerationDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	}()

	var src image.Image
	loadSource := func() (image.Image, error) {
		if src != nil {
			return src, nil
		}
		img, err := withContext(ctx, func() (image.Image, error) {
			return LoadImageConstrained(srcPath, MaxImageDimension, MaxImagePixels)
		})
		if err != nil {
			return nil, err
		}
		src = img
		return src, nil
	}

	if backend == "imaging" {
		if _, err := loadSource(); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(srcPath), err)
		}
	}

	fail := func(size Size, err error) ([]Derivative, error) {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(size.Name, "error").Inc()
		return nil, fmt.Errorf("thumbnail %s for %s: %w", size.Name, filepath.Base(srcPath), err)
	}

	rendered := make([]rendering, 0, len(g.sizes))
	for _, size := range g.sizes {
		if err := ctx.Err(); err != nil {
			return fail(size, err)
		}

		r, err := g.render(ctx, backend, srcPath, size, loadSource)
		if err != nil {
			return fail(size, err)
		}
		rendered = append(rendered, r)
	}

	var written, created []Derivative
	for _, r := range rendered {
		name := DerivativeName(r.size, storedFilename)
		path := filepath.Join(g.outputDir, name)
		_, statErr := os.Stat(path)

		if err := filesystem.WriteFileAtomic(path, r.data, 0o644, g.retry); err != nil {
			removeDerivatives(created)
			return fail(r.size, fmt.Errorf("failed to write derivative: %w", err))
		}

		metrics.ThumbnailGenerationsTotal.WithLabelValues(r.size.Name, "success").Inc()
		logging.Debug("Generated thumbnail %s (%dx%d)", path, r.width, r.height)

		d := Derivative{Size: r.size, Name: name, Path: path, Width: r.width, Height: r.height}
		written = append(written, d)
		if errors.Is(statErr, os.ErrNotExist) {
			created = append(created, d)
		}
	}

	return written, nil
}

// rendering is one encoded size waiting to be written.
type rendering struct {
	size          Size
	data          []byte
	width, height int
}

func (g *ThumbnailGenerator) render(ctx context.Context, backend, srcPath string, size Size,
	loadSource func() (image.Image, error),
) (rendering, error) {
	r := rendering{size: size}

	if backend == "vips" {
		out, err := withContext(ctx, func() (rendering, error) {
			data, w, h, err := thumbnailWithVips(srcPath, size.Max, g.quality)
			return rendering{size: size, data: data, width: w, height: h}, err
		})
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return r, err
		}
		logging.Debug("vips failed for %s: %v, falling back to imaging", srcPath, err)
	}

	img, err := loadSource()
	if err != nil {
		return r, err
	}
	r.data, r.width, r.height, err = g.encode(img, size)
	return r, err
}

func removeDerivatives(ds []Derivative) {
	for _, d := range ds {
		if err := os.Remove(d.Path); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove partial derivative %s: %v", d.Path, err)
		}
	}
}

// withContext runs fn and returns early with ctx's error if ctx ends first.
// fn keeps running in the background until it returns.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// encode fits img into size and returns it as JPEG. Transparent areas are
// flattened onto white.
func (g *ThumbnailGenerator) encode(img image.Image, size Size) ([]byte, int, int, error) {
	thumb := imaging.Fit(img, size.Max, size.Max, imaging.Lanczos)

	var out image.Image = thumb
	if !thumb.Opaque() {
		b := thumb.Bounds()
		bg := imaging.New(b.Dx(), b.Dy(), color.White)
		out = imaging.Overlay(bg, thumb, image.Pt(0, 0), 1.0)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: g.quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), thumb.Bounds().Dx(), thumb.Bounds().Dy(), nil
}

// Remove deletes every derivative of storedFilename. Missing files are not
// an error.
func (g *ThumbnailGenerator) Remove(storedFilename string) error {
	var errs []error
	for _, path := range g.Paths(storedFilename) {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
