package services

import (
	"bytes"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"pdfshrink/internal/common"
	"pdfshrink/internal/compression"
	compressionDomain "pdfshrink/internal/domain/compression"
	"pdfshrink/internal/config"
	"pdfshrink/internal/testpdf"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	api.DisableConfigDir()
	os.Exit(m.Run())
}

func newTestPDFService() *PDFService {
	return NewPDFService(&config.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func imagesOf(t *testing.T, doc compressionDomain.Document) []compressionDomain.ImageStream {
	t.Helper()
	var images []compressionDomain.ImageStream
	for _, obj := range doc.Objects() {
		if obj.Kind == compressionDomain.KindImage {
			images = append(images, obj.Image)
		}
	}
	return images
}

func TestNewPDFService(t *testing.T) {
	cfg := &config.Config{}
	service := NewPDFService(cfg)

	require.NotNil(t, service)
	assert.Same(t, cfg, service.config)
}

func TestOptimize_WritesReadableDocument(t *testing.T) {
	dir := t.TempDir()
	input := testpdf.Write(t, dir, "in.pdf", testpdf.JPEGImage(t, 64, 64, 90, 1), testpdf.GrayImage(32, 32, ""))
	output := filepath.Join(dir, "out", "in.pdf")

	require.NoError(t, newTestPDFService().Optimize(input, output))

	pages, err := api.PageCountFile(output)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	entries, err := os.ReadDir(filepath.Dir(output))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the output file remains in the destination")
}

func TestOptimize_IsStableOnOptimizedInput(t *testing.T) {
	dir := t.TempDir()
	input := testpdf.Write(t, dir, "in.pdf", testpdf.JPEGImage(t, 96, 96, 90, 3), testpdf.GrayImage(48, 48, "FlateDecode"))
	first := filepath.Join(dir, "first.pdf")
	second := filepath.Join(dir, "second.pdf")
	svc := newTestPDFService()

	require.NoError(t, svc.Optimize(input, first))
	require.NoError(t, svc.Optimize(first, second))

	firstSize, err := common.FileSize(first)
	require.NoError(t, err)
	secondSize, err := common.FileSize(second)
	require.NoError(t, err)
	assert.LessOrEqual(t, secondSize, firstSize+1024)

	firstPages, err := api.PageCountFile(first)
	require.NoError(t, err)
	secondPages, err := api.PageCountFile(second)
	require.NoError(t, err)
	assert.Equal(t, firstPages, secondPages)
}

func TestOptimize_ReplacesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	input := testpdf.Write(t, dir, "in.pdf")
	output := filepath.Join(dir, "out.pdf")
	require.NoError(t, os.WriteFile(output, []byte("stale"), 0644))

	require.NoError(t, newTestPDFService().Optimize(input, output))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data[:5]))
}

func TestOptimize_MalformedInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(input, []byte("this is not a pdf"), 0644))
	output := filepath.Join(dir, "out", "broken.pdf")

	err := newTestPDFService().Optimize(input, output)

	assert.ErrorIs(t, err, common.ErrMalformedDocument)
	var compErr *common.CompressionError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "optimize", compErr.Operation)
	assert.NoFileExists(t, output)
}

func TestOptimize_MissingInput(t *testing.T) {
	dir := t.TempDir()

	err := newTestPDFService().Optimize(filepath.Join(dir, "absent.pdf"), filepath.Join(dir, "out.pdf"))

	assert.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrMalformedDocument)
}

func TestOpen_ClassifiesImages(t *testing.T) {
	dir := t.TempDir()
	withMask := testpdf.JPEGImage(t, 16, 16, 90, 2)
	mask := testpdf.GrayImage(16, 16, "FlateDecode")
	withMask.SoftMask = &mask
	input := testpdf.Write(t, dir, "in.pdf", withMask, testpdf.GrayImage(8, 4, "FlateDecode"))

	doc, err := newTestPDFService().Open(input)
	require.NoError(t, err)

	objects := doc.Objects()
	for i := 1; i < len(objects); i++ {
		assert.Less(t, objects[i-1].Number, objects[i].Number)
	}

	images := imagesOf(t, doc)
	require.Len(t, images, 2, "the soft mask is not a standalone image")

	jpegInfo := images[0].Info()
	assert.Equal(t, compressionDomain.FilterDCT, jpegInfo.Filter)
	assert.Equal(t, 16, jpegInfo.Width)

	grayInfo := images[1].Info()
	assert.Equal(t, "FlateDecode", grayInfo.Filter)
	assert.Equal(t, compressionDomain.ColorSpaceGray, grayInfo.ColorSpace)
	assert.Equal(t, 8, grayInfo.Width)
	assert.Equal(t, 4, grayInfo.Height)
	assert.Equal(t, 8, grayInfo.BitsPerComponent)
}

func TestImageStream_Payload(t *testing.T) {
	dir := t.TempDir()
	jpegImage := testpdf.JPEGImage(t, 24, 24, 85, 3)
	grayImage := testpdf.GrayImage(6, 5, "FlateDecode")
	input := testpdf.Write(t, dir, "in.pdf", jpegImage, grayImage)

	doc, err := newTestPDFService().Open(input)
	require.NoError(t, err)
	images := imagesOf(t, doc)
	require.Len(t, images, 2)

	payload, err := images[0].Payload()
	require.NoError(t, err)
	assert.Equal(t, jpegImage.Data, payload, "DCT payload is the JPEG file itself")

	payload, err = images[1].Payload()
	require.NoError(t, err)
	assert.Equal(t, grayImage.Data, payload, "Flate payload is decoded to samples")
}

func TestImageStream_ReplaceAndSave(t *testing.T) {
	dir := t.TempDir()
	input := testpdf.Write(t, dir, "in.pdf", testpdf.GrayImage(10, 10, "FlateDecode"))
	service := newTestPDFService()

	doc, err := service.Open(input)
	require.NoError(t, err)
	images := imagesOf(t, doc)
	require.Len(t, images, 1)

	replacement := testpdf.JPEG(t, testpdf.Photo(10, 10, 4), 50)
	require.NoError(t, images[0].Replace(replacement))
	require.NoError(t, doc.Save(input))

	reopened, err := service.Open(input)
	require.NoError(t, err)
	images = imagesOf(t, reopened)
	require.Len(t, images, 1)

	info := images[0].Info()
	assert.Equal(t, compressionDomain.FilterDCT, info.Filter)
	assert.Equal(t, compressionDomain.ColorSpaceRGB, info.ColorSpace)
	assert.Equal(t, 8, info.BitsPerComponent)

	payload, err := images[0].Payload()
	require.NoError(t, err)
	assert.Equal(t, replacement, payload)
}

func TestImageStream_ReplaceRejectsEmptyPayload(t *testing.T) {
	dir := t.TempDir()
	input := testpdf.Write(t, dir, "in.pdf", testpdf.GrayImage(4, 4, ""))

	doc, err := newTestPDFService().Open(input)
	require.NoError(t, err)
	images := imagesOf(t, doc)
	require.Len(t, images, 1)

	assert.Error(t, images[0].Replace(nil))
	assert.Equal(t, "", images[0].Info().Filter, "a rejected replacement changes nothing")
}

func TestOpen_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\ngarbage"), 0644))

	_, err := newTestPDFService().Open(path)

	assert.ErrorIs(t, err, common.ErrMalformedDocument)
}

func TestRecompressor_ShrinksRealDocument(t *testing.T) {
	dir := t.TempDir()
	path := testpdf.Write(t, dir, "photo.pdf", testpdf.JPEGImage(t, 256, 256, 95, 5))
	before, err := common.FileSize(path)
	require.NoError(t, err)

	service := newTestPDFService()
	recompressor := compression.NewRecompressor(service, compression.NewJPEGCodec(), service.config.Logger)

	altered, err := recompressor.Recompress(path, 40)
	require.NoError(t, err)
	assert.Equal(t, 1, altered)

	after, err := common.FileSize(path)
	require.NoError(t, err)
	assert.Less(t, after, before)

	pages, err := api.PageCountFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestRecompressor_KeepsInvertedGrayPolarity(t *testing.T) {
	dir := t.TempDir()
	// All-zero samples under /Decode [1 0] render white.
	inverted := testpdf.Image{
		Width:      16,
		Height:     16,
		ColorSpace: "DeviceGray",
		Filter:     "FlateDecode",
		Data:       make([]byte, 16*16),
		Decode:     "[1 0]",
	}
	path := testpdf.Write(t, dir, "inverted.pdf", inverted)

	service := newTestPDFService()
	doc, err := service.Open(path)
	require.NoError(t, err)
	images := imagesOf(t, doc)
	require.Len(t, images, 1)
	assert.Equal(t, []float64{1, 0}, images[0].Info().Decode)

	recompressor := compression.NewRecompressor(service, compression.NewJPEGCodec(), service.config.Logger)
	altered, err := recompressor.Recompress(path, 80)
	require.NoError(t, err)
	require.Equal(t, 1, altered)

	doc, err = service.Open(path)
	require.NoError(t, err)
	images = imagesOf(t, doc)
	require.Len(t, images, 1)
	assert.Empty(t, images[0].Info().Decode)

	payload, err := images[0].Payload()
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(payload))
	require.NoError(t, err)
	r, g, b, _ := img.At(8, 8).RGBA()
	assert.Greater(t, r>>8, uint32(240), "image must still render white")
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestRecompressor_TextOnlyDocumentIsUntouched(t *testing.T) {
	dir := t.TempDir()
	path := testpdf.Write(t, dir, "blank.pdf")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	service := newTestPDFService()
	recompressor := compression.NewRecompressor(service, compression.NewJPEGCodec(), service.config.Logger)

	altered, err := recompressor.Recompress(path, 80)
	require.NoError(t, err)
	assert.Zero(t, altered)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
