package compression

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"pdfshrink/internal/common"
	compressionDomain "pdfshrink/internal/domain/compression"
)

const (
	// maxImageDimension caps width/height so a corrupt dictionary cannot
	// force a huge allocation.
	maxImageDimension = 32768
	// maxImagePixels bounds the total pixel count (64MP).
	maxImagePixels int64 = 64 * 1024 * 1024
)

// Codec decodes image streams and encodes rasters as JPEG.
type Codec interface {
	Decode(stream compressionDomain.ImageStream) (image.Image, error)
	EncodeJPEG(img image.Image, quality int) ([]byte, error)
}

// JPEGCodec implements Codec with the image/jpeg package.
type JPEGCodec struct {
	// OptimizeCoding replaces the standard Huffman tables of every encoded
	// image with tables fitted to its own symbols.
	OptimizeCoding bool
}

// NewJPEGCodec creates a new JPEG codec with optimized coding enabled
func NewJPEGCodec() *JPEGCodec {
	return &JPEGCodec{OptimizeCoding: true}
}

// Decode turns the stream payload into a raster. DCT payloads are decoded as
// JPEG; anything else is read as 8-bit gray, RGB or CMYK samples with the
// image's /Decode array applied, so the raster looks the way it renders.
// DCT images with a non-identity /Decode array are rejected.
func (c *JPEGCodec) Decode(stream compressionDomain.ImageStream) (image.Image, error) {
	info := stream.Info()
	if info.IsDCT() && !info.IdentityDecode() {
		return nil, codecError(info, fmt.Errorf("decode array %v on JPEG data", info.Decode))
	}

	payload, err := stream.Payload()
	if err != nil {
		return nil, codecError(info, err)
	}

	if info.IsDCT() {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(payload))
		if err != nil {
			return nil, codecError(info, err)
		}
		if err := validateImageBounds(cfg.Width, cfg.Height); err != nil {
			return nil, codecError(info, err)
		}
		img, err := jpeg.Decode(bytes.NewReader(payload))
		if err != nil {
			return nil, codecError(info, err)
		}
		return img, nil
	}

	img, err := decodeSamples(info, payload)
	if err != nil {
		return nil, codecError(info, err)
	}
	return img, nil
}

// EncodeJPEG flattens img to opaque RGB and encodes it at quality. With
// OptimizeCoding the entropy coding is then rebuilt losslessly; the
// standard-table output is kept if that step fails or does not help.
func (c *JPEGCodec) EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, FlattenRGB(img), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrImageCodec, err)
	}
	if !c.OptimizeCoding {
		return buf.Bytes(), nil
	}

	optimized, err := optimizeHuffman(buf.Bytes())
	if err != nil || len(optimized) >= buf.Len() {
		return buf.Bytes(), nil
	}
	return optimized, nil
}

// FlattenRGB converts any image to 3-channel RGB. Alpha is discarded rather
// than composited, so transparent regions keep their underlying color.
func FlattenRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

func decodeSamples(info compressionDomain.ImageInfo, samples []byte) (image.Image, error) {
	if err := validateImageBounds(info.Width, info.Height); err != nil {
		return nil, err
	}
	if info.BitsPerComponent != 8 {
		return nil, fmt.Errorf("unsupported bits per component %d", info.BitsPerComponent)
	}

	w, h := info.Width, info.Height
	rect := image.Rect(0, 0, w, h)

	var components int
	switch info.ColorSpace {
	case compressionDomain.ColorSpaceGray:
		components = 1
	case compressionDomain.ColorSpaceRGB:
		components = 3
	case compressionDomain.ColorSpaceCMYK:
		components = 4
	default:
		return nil, fmt.Errorf("unsupported color space %q", info.ColorSpace)
	}

	need := w * h * components
	if len(samples) < need {
		return nil, fmt.Errorf("sample data too short: have %d bytes, need %d", len(samples), need)
	}
	if !info.IdentityDecode() {
		mapped, err := applyDecode(info.Decode, samples[:need], components)
		if err != nil {
			return nil, err
		}
		samples = mapped
	}

	switch components {
	case 1:
		return &image.Gray{Pix: samples[:need], Stride: w, Rect: rect}, nil
	case 4:
		return &image.CMYK{Pix: samples[:need], Stride: w * 4, Rect: rect}, nil
	}

	img := image.NewRGBA(rect)
	for i, j := 0, 0; i < need; i, j = i+3, j+4 {
		img.Pix[j] = samples[i]
		img.Pix[j+1] = samples[i+1]
		img.Pix[j+2] = samples[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

// applyDecode maps every 8-bit sample s of component c to
// Dmin + s/255*(Dmax-Dmin), returning a new slice.
func applyDecode(decode []float64, samples []byte, components int) ([]byte, error) {
	if len(decode) != 2*components {
		return nil, fmt.Errorf("decode array has %d entries for %d components", len(decode), components)
	}

	var lut [4][256]byte
	for c := 0; c < components; c++ {
		lo, hi := decode[2*c], decode[2*c+1]
		for s := 0; s < 256; s++ {
			v := lo + float64(s)/255*(hi-lo)
			v = math.Min(math.Max(v, 0), 1)
			lut[c][s] = uint8(math.Round(v * 255))
		}
	}

	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = lut[i%components][s]
	}
	return out, nil
}

func validateImageBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > maxImageDimension || height > maxImageDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	if pixels := int64(width) * int64(height); pixels > maxImagePixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, maxImagePixels)
	}
	return nil
}

func codecError(info compressionDomain.ImageInfo, err error) error {
	return fmt.Errorf("%w: object %d: %v", common.ErrImageCodec, info.ObjectNumber, err)
}
