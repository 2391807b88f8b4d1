// Package media reads image metadata and renders derivatives.
//
// ExtractMetadata pulls the GPS position and original capture time from a
// file's EXIF block and never fails. ThumbnailGenerator writes one JPEG per
// configured size, using libvips when it is initialized and the imaging
// library otherwise.
package media
