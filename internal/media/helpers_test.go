package media

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// createTestImage creates a gradient test image and saves it to the given path
func createTestImage(t *testing.T, path string, width, height int, format string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, encodeTestImage(t, width, height, format), 0o644); err != nil {
		t.Fatalf("Failed to write test image: %v", err)
	}
}

func encodeTestImage(t *testing.T, width, height int, format string) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "png":
		err = png.Encode(&buf, img)
	default:
		t.Fatalf("Unsupported test image format: %s", format)
	}
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// exifTags holds the values written by buildEXIFSegment. Empty fields are
// omitted from the block.
type exifTags struct {
	// DateTime is the IFD0 modification time.
	DateTime         string
	DateTimeOriginal string
	HasGPS           bool
	Latitude         float64
	Longitude        float64
}

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

const (
	tiffASCII    = 2
	tiffLong     = 4
	tiffRational = 5
)

func asciiEntry(tag uint16, s string) tiffEntry {
	data := append([]byte(s), 0)
	return tiffEntry{tag: tag, typ: tiffASCII, count: uint32(len(data)), data: data}
}

// dmsEntry encodes an unsigned decimal degree value as degrees, minutes and
// hundredths of seconds.
func dmsEntry(tag uint16, deg float64) tiffEntry {
	deg = math.Abs(deg)
	d := math.Floor(deg)
	m := math.Floor((deg - d) * 60)
	s := math.Round(((deg-d)*60 - m) * 60 * 100)

	data := make([]byte, 24)
	for i, v := range [][2]uint32{{uint32(d), 1}, {uint32(m), 1}, {uint32(s), 100}} {
		binary.LittleEndian.PutUint32(data[i*8:], v[0])
		binary.LittleEndian.PutUint32(data[i*8+4:], v[1])
	}
	return tiffEntry{tag: tag, typ: tiffRational, count: 3, data: data}
}

func longEntry(tag uint16, v uint32) tiffEntry {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return tiffEntry{tag: tag, typ: tiffLong, count: 1, data: data}
}

func ifdSize(entries []tiffEntry) uint32 {
	size := uint32(2 + 12*len(entries) + 4)
	for _, e := range entries {
		if len(e.data) > 4 {
			size += uint32(len(e.data))
		}
	}
	return size
}

// encodeIFD serializes entries as an IFD located at offset, with values
// longer than four bytes placed directly after it.
func encodeIFD(entries []tiffEntry, offset uint32) []byte {
	var buf bytes.Buffer
	dataOffset := offset + uint32(2+12*len(entries)+4)
	var data bytes.Buffer

	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&buf, binary.LittleEndian, e.tag)
		_ = binary.Write(&buf, binary.LittleEndian, e.typ)
		_ = binary.Write(&buf, binary.LittleEndian, e.count)
		if len(e.data) <= 4 {
			inline := make([]byte, 4)
			copy(inline, e.data)
			buf.Write(inline)
		} else {
			_ = binary.Write(&buf, binary.LittleEndian, dataOffset+uint32(data.Len()))
			data.Write(e.data)
		}
	}
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// buildEXIFSegment returns a JPEG APP1 segment carrying tags.
func buildEXIFSegment(tags exifTags) []byte {
	var exifIFD, gpsIFD []tiffEntry
	if tags.DateTimeOriginal != "" {
		exifIFD = append(exifIFD, asciiEntry(0x9003, tags.DateTimeOriginal))
	}
	if tags.HasGPS {
		latRef, lonRef := "N", "E"
		if tags.Latitude < 0 {
			latRef = "S"
		}
		if tags.Longitude < 0 {
			lonRef = "W"
		}
		gpsIFD = []tiffEntry{
			asciiEntry(0x0001, latRef),
			dmsEntry(0x0002, tags.Latitude),
			asciiEntry(0x0003, lonRef),
			dmsEntry(0x0004, tags.Longitude),
		}
	}

	var ifd0 []tiffEntry
	if tags.DateTime != "" {
		ifd0 = append(ifd0, asciiEntry(0x0132, tags.DateTime))
	}

	// Sub-IFDs follow IFD0, whose size is known once the pointers are counted.
	pointers := 0
	if len(exifIFD) > 0 {
		pointers++
	}
	if len(gpsIFD) > 0 {
		pointers++
	}
	ifd0Offset := uint32(8)
	next := ifd0Offset + uint32(2+12*(len(ifd0)+pointers)+4)
	for _, e := range ifd0 {
		if len(e.data) > 4 {
			next += uint32(len(e.data))
		}
	}

	exifOffset, gpsOffset := next, next
	if len(exifIFD) > 0 {
		ifd0 = append(ifd0, longEntry(0x8769, exifOffset))
		gpsOffset = exifOffset + ifdSize(exifIFD)
	}
	if len(gpsIFD) > 0 {
		ifd0 = append(ifd0, longEntry(0x8825, gpsOffset))
	}

	var tiff bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(42))
	_ = binary.Write(&tiff, binary.LittleEndian, ifd0Offset)
	tiff.Write(encodeIFD(ifd0, ifd0Offset))
	if len(exifIFD) > 0 {
		tiff.Write(encodeIFD(exifIFD, exifOffset))
	}
	if len(gpsIFD) > 0 {
		tiff.Write(encodeIFD(gpsIFD, gpsOffset))
	}

	var seg bytes.Buffer
	seg.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&seg, binary.BigEndian, uint16(2+6+tiff.Len()))
	seg.WriteString("Exif\x00\x00")
	seg.Write(tiff.Bytes())
	return seg.Bytes()
}

// createEXIFJPEG writes a JPEG at path with an APP1 block right after SOI.
func createEXIFJPEG(t *testing.T, path string, width, height int, tags exifTags) {
	t.Helper()

	plain := encodeTestImage(t, width, height, "jpeg")

	var out bytes.Buffer
	out.Write(plain[:2])
	out.Write(buildEXIFSegment(tags))
	out.Write(plain[2:])

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("Failed to write EXIF test image: %v", err)
	}
}
