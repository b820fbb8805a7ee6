package testsupport

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// SolidImage returns an NRGBA image filled with c.
func SolidImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// PNGBytes encodes img as PNG.
func PNGBytes(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WritePNG writes a solid PNG fixture and returns its path.
func WritePNG(t testing.TB, path string, width, height int, c color.Color) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, PNGBytes(t, SolidImage(width, height, c)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// OversizedPNG returns a tiny valid PNG whose header claims width x height.
// The IHDR checksum is rewritten so header sniffing accepts it.
func OversizedPNG(t testing.TB, width, height uint32) []byte {
	t.Helper()

	data := PNGBytes(t, SolidImage(1, 1, color.White))
	// 8-byte signature, 4-byte length, then "IHDR" at 12 and its data at 16.
	if string(data[12:16]) != "IHDR" {
		t.Fatalf("unexpected png layout")
	}
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}
