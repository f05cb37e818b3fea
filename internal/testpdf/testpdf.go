// Package testpdf builds small, well-formed PDF files for tests.
package testpdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// Image is one image XObject placed on its own page.
type Image struct {
	Width      int
	Height     int
	ColorSpace string
	// Filter is "DCTDecode" for JPEG data, "FlateDecode" to deflate Data,
	// or empty to store Data unfiltered.
	Filter string
	Data   []byte
	// Decode, when set, is written verbatim as the /Decode array.
	Decode string
	// SoftMask, when set, is written as this image's /SMask.
	SoftMask *Image
}

type object struct {
	dict   string
	stream []byte
}

type builder struct {
	objects []object
}

func (b *builder) add(o object) int {
	b.objects = append(b.objects, o)
	return len(b.objects)
}

func (b *builder) set(nr int, o object) {
	b.objects[nr-1] = o
}

// Build returns the bytes of a PDF with one page per image, or a single
// blank page when no images are given.
func Build(images ...Image) []byte {
	b := &builder{}
	catalog := b.add(object{})
	pages := b.add(object{})

	var kids []int
	if len(images) == 0 {
		content := b.add(streamObject("", []byte{}))
		kids = append(kids, b.add(object{dict: pageDict(pages, content, "")}))
	}
	for _, img := range images {
		imgNr := b.addImage(img)
		content := b.add(streamObject("", []byte(fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im0 Do Q", img.Width, img.Height))))
		resources := fmt.Sprintf("/Resources << /XObject << /Im0 %d 0 R >> >>", imgNr)
		kids = append(kids, b.add(object{dict: pageDict(pages, content, resources)}))
	}

	var refs bytes.Buffer
	for i, kid := range kids {
		if i > 0 {
			refs.WriteByte(' ')
		}
		fmt.Fprintf(&refs, "%d 0 R", kid)
	}
	b.set(catalog, object{dict: fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages)})
	b.set(pages, object{dict: fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", refs.String(), len(kids))})

	return b.bytes(catalog)
}

func (b *builder) addImage(img Image) int {
	extra := ""
	if img.SoftMask != nil {
		extra = fmt.Sprintf(" /SMask %d 0 R", b.addImage(*img.SoftMask))
	}
	if img.Decode != "" {
		extra += " /Decode " + img.Decode
	}

	data := img.Data
	filter := ""
	switch img.Filter {
	case "FlateDecode":
		data = deflate(img.Data)
		filter = " /Filter /FlateDecode"
	case "":
	default:
		filter = " /Filter /" + img.Filter
	}

	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent 8%s%s",
		img.Width, img.Height, img.ColorSpace, filter, extra)
	return b.add(streamObject(dict, data))
}

func pageDict(parent, content int, resources string) string {
	return fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Contents %d 0 R %s>>", parent, content, resources)
}

func streamObject(entries string, data []byte) object {
	return object{
		dict:   fmt.Sprintf("<< %s /Length %d >>", entries, len(data)),
		stream: data,
	}
}

func (b *builder) bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objects))
	for i, o := range b.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\n", i+1, o.dict)
		if o.stream != nil {
			buf.WriteString("stream\n")
			buf.Write(o.stream)
			buf.WriteString("\nendstream\n")
		}
		buf.WriteString("endobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objects)+1, root, xref)
	return buf.Bytes()
}

func deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// Write builds a PDF into dir/name and returns its path.
func Write(t testing.TB, dir, name string, images ...Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(images...), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// Photo renders a deterministic, noisy RGB raster that compresses like a
// photograph: lower JPEG quality gives clearly smaller output.
func Photo(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := rng.Intn(64)
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x*191)/w + n),
				G: uint8((y*191)/h + n),
				B: uint8(((x+y)*127)/(w+h) + n),
				A: 0xff,
			})
		}
	}
	return img
}

// JPEG encodes img at quality.
func JPEG(t testing.TB, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// JPEGImage returns a DCT image of a w x h photo encoded at quality.
func JPEGImage(t testing.TB, w, h, quality int, seed int64) Image {
	t.Helper()
	return Image{
		Width:      w,
		Height:     h,
		ColorSpace: "DeviceRGB",
		Filter:     "DCTDecode",
		Data:       JPEG(t, Photo(w, h, seed), quality),
	}
}

// GrayImage returns an unfiltered or Flate-encoded 8-bit gray image.
func GrayImage(w, h int, filter string) Image {
	data := make([]byte, w*h)
	for i := range data {
		data[i] = uint8(i % 251)
	}
	return Image{Width: w, Height: h, ColorSpace: "DeviceGray", Filter: filter, Data: data}
}
