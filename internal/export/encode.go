package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	xdraw "golang.org/x/image/draw"
)

// ImageEncoder renders a decoded final image into one download format.
type ImageEncoder func(img image.Image, format Format, quality Quality) ([]byte, error)

// pdfEpoch pins the PDF info dates so identical inputs give identical files.
var pdfEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// EncodeImage scales img to quality and encodes it as format.
func EncodeImage(img image.Image, format Format, quality Quality) ([]byte, error) {
	b := img.Bounds()
	w, h := quality.Scale(b.Dx(), b.Dy(), false)
	scaled := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, xdraw.Src, nil)

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, scaled); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case FormatJPG:
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatWebP:
		opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, webpQuality(quality))
		if err != nil {
			return nil, fmt.Errorf("webp options: %w", err)
		}
		if err := webp.Encode(&buf, scaled, opts); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	case FormatPDF:
		if err := encodePDF(&buf, scaled); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no image encoder for %s", format)
	}
	return buf.Bytes(), nil
}

func jpegQuality(q Quality) int {
	if q == Quality4K {
		return 95
	}
	return 90
}

func webpQuality(q Quality) float32 {
	if q == Quality4K {
		return 92
	}
	return 85
}

// encodePDF writes a single page the size of img, in points, holding the
// image edge to edge.
func encodePDF(buf *bytes.Buffer, img *image.NRGBA) error {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return fmt.Errorf("encode pdf image: %w", err)
	}
	w, h := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())

	doc := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: w, Ht: h},
	})
	doc.SetCreationDate(pdfEpoch)
	doc.SetModificationDate(pdfEpoch)
	doc.SetCatalogSort(true)
	doc.SetProducer("brandkit", false)
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("asset", opts, &pngBuf)
	doc.ImageOptions("asset", 0, 0, w, h, false, opts, 0, "")
	if err := doc.Output(buf); err != nil {
		return fmt.Errorf("encode pdf: %w", err)
	}
	return nil
}
