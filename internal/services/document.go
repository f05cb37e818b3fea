package services

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"pdfshrink/internal/common"
	compressionDomain "pdfshrink/internal/domain/compression"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Filters whose output is not 8-bit samples the codec can read.
var unsupportedFilters = map[string]bool{
	filter.CCITTFax: true,
	filter.JBIG2:    true,
	filter.JPX:      true,
	filter.DCT:      true,
}

var errStreamMissing = errors.New("image stream no longer present")

// document adapts a pdfcpu context to compressionDomain.Document.
type document struct {
	ctx *model.Context
}

func newDocument(ctx *model.Context) *document {
	return &document{ctx: ctx}
}

// Objects lists every in-use object by ascending object number. Image
// XObjects are tagged KindImage unless they are stencil masks or serve as
// another image's /SMask or /Mask.
func (d *document) Objects() []compressionDomain.Object {
	numbers := make([]int, 0, len(d.ctx.Table))
	for nr, entry := range d.ctx.Table {
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		numbers = append(numbers, nr)
	}
	sort.Ints(numbers)

	masks := d.maskTargets()

	objects := make([]compressionDomain.Object, 0, len(numbers))
	for _, nr := range numbers {
		obj := compressionDomain.Object{Number: nr, Kind: compressionDomain.KindOther}

		sd, ok := d.ctx.Table[nr].Object.(types.StreamDict)
		if ok && isImage(sd) && !isStencilMask(sd) && !masks[nr] {
			obj.Kind = compressionDomain.KindImage
			obj.Image = &imageStream{
				ctx:  d.ctx,
				info: d.imageInfo(nr, sd),
			}
		}
		objects = append(objects, obj)
	}
	return objects
}

// Save writes the document to path through a temporary file.
func (d *document) Save(path string) error {
	return common.ReplaceFile(path, func(f *os.File) error {
		return api.WriteContext(d.ctx, f)
	})
}

// maskTargets collects the object numbers referenced as /SMask or /Mask by
// image XObjects.
func (d *document) maskTargets() map[int]bool {
	targets := make(map[int]bool)
	for _, entry := range d.ctx.Table {
		if entry == nil || entry.Free {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok || !isImage(sd) {
			continue
		}
		for _, key := range []string{"SMask", "Mask"} {
			if ref := sd.IndirectRefEntry(key); ref != nil {
				targets[ref.ObjectNumber.Value()] = true
			}
		}
	}
	return targets
}

func (d *document) imageInfo(nr int, sd types.StreamDict) compressionDomain.ImageInfo {
	info := compressionDomain.ImageInfo{
		ObjectNumber:     nr,
		Width:            d.intEntry(sd.Dict, "Width"),
		Height:           d.intEntry(sd.Dict, "Height"),
		BitsPerComponent: d.intEntry(sd.Dict, "BitsPerComponent"),
		ColorSpace:       d.colorSpace(sd.Dict),
		Filter:           filterChain(sd),
		Decode:           d.numberArray(sd.Dict, "Decode"),
	}
	if info.BitsPerComponent == 0 && info.IsDCT() {
		info.BitsPerComponent = 8
	}
	return info
}

func (d *document) intEntry(dict types.Dict, key string) int {
	o, found := dict.Find(key)
	if !found {
		return 0
	}
	o, err := d.ctx.Dereference(o)
	if err != nil {
		return 0
	}
	switch v := o.(type) {
	case types.Integer:
		return v.Value()
	case types.Float:
		return int(v.Value())
	}
	return 0
}

// numberArray returns the numeric array stored under key, or nil when the
// entry is missing or holds anything but numbers.
func (d *document) numberArray(dict types.Dict, key string) []float64 {
	o, found := dict.Find(key)
	if !found {
		return nil
	}
	o, err := d.ctx.Dereference(o)
	if err != nil {
		return nil
	}
	arr, ok := o.(types.Array)
	if !ok {
		return nil
	}

	values := make([]float64, 0, len(arr))
	for _, elem := range arr {
		elem, err := d.ctx.Dereference(elem)
		if err != nil {
			return nil
		}
		switch v := elem.(type) {
		case types.Integer:
			values = append(values, float64(v.Value()))
		case types.Float:
			values = append(values, v.Value())
		default:
			return nil
		}
	}
	return values
}

// colorSpace returns the color space family. Calibrated and ICC-based
// spaces are reported as the device space with the same component count.
func (d *document) colorSpace(dict types.Dict) string {
	o, found := dict.Find("ColorSpace")
	if !found {
		return ""
	}
	o, err := d.ctx.Dereference(o)
	if err != nil {
		return ""
	}

	switch v := o.(type) {
	case types.Name:
		return v.Value()
	case types.Array:
		if len(v) == 0 {
			return ""
		}
		family, err := d.ctx.Dereference(v[0])
		if err != nil {
			return ""
		}
		name, ok := family.(types.Name)
		if !ok {
			return ""
		}
		switch name.Value() {
		case "CalGray":
			return compressionDomain.ColorSpaceGray
		case "CalRGB":
			return compressionDomain.ColorSpaceRGB
		case "ICCBased":
			if len(v) > 1 {
				if profile, err := d.ctx.Dereference(v[1]); err == nil {
					if sd, ok := profile.(types.StreamDict); ok {
						switch d.intEntry(sd.Dict, "N") {
						case 1:
							return compressionDomain.ColorSpaceGray
						case 3:
							return compressionDomain.ColorSpaceRGB
						case 4:
							return compressionDomain.ColorSpaceCMYK
						}
					}
				}
			}
		}
		return name.Value()
	}
	return ""
}

func isImage(sd types.StreamDict) bool {
	subtype := sd.NameEntry("Subtype")
	return subtype != nil && *subtype == "Image"
}

func isStencilMask(sd types.StreamDict) bool {
	imageMask := sd.BooleanEntry("ImageMask")
	return imageMask != nil && *imageMask
}

func filterChain(sd types.StreamDict) string {
	names := make([]string, len(sd.FilterPipeline))
	for i, f := range sd.FilterPipeline {
		names[i] = f.Name
	}
	return strings.Join(names, " ")
}

// imageStream is one image XObject of a document. It looks its stream up by
// object number on every call since pdfcpu stores stream dicts by value.
type imageStream struct {
	ctx  *model.Context
	info compressionDomain.ImageInfo
}

func (s *imageStream) Info() compressionDomain.ImageInfo {
	return s.info
}

func (s *imageStream) lookup() (*model.XRefTableEntry, types.StreamDict, error) {
	entry, ok := s.ctx.Table[s.info.ObjectNumber]
	if !ok || entry == nil || entry.Free {
		return nil, types.StreamDict{}, errStreamMissing
	}
	sd, ok := entry.Object.(types.StreamDict)
	if !ok {
		return nil, types.StreamDict{}, errStreamMissing
	}
	return entry, sd, nil
}

func (s *imageStream) Payload() ([]byte, error) {
	_, sd, err := s.lookup()
	if err != nil {
		return nil, err
	}

	if s.info.IsDCT() {
		if len(sd.Raw) == 0 {
			return nil, fmt.Errorf("object %d: empty DCT stream", s.info.ObjectNumber)
		}
		return sd.Raw, nil
	}

	for _, f := range sd.FilterPipeline {
		if unsupportedFilters[f.Name] {
			return nil, fmt.Errorf("object %d: unsupported filter chain %q", s.info.ObjectNumber, s.info.Filter)
		}
	}
	if len(sd.FilterPipeline) == 0 {
		return sd.Raw, nil
	}

	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("object %d: %w", s.info.ObjectNumber, err)
	}
	return sd.Content, nil
}

// Replace installs a JPEG payload. All checks run before the first
// mutation, so the stream is either fully rewritten or left as it was.
func (s *imageStream) Replace(jpeg []byte) error {
	if len(jpeg) == 0 {
		return fmt.Errorf("object %d: empty replacement payload", s.info.ObjectNumber)
	}
	entry, sd, err := s.lookup()
	if err != nil {
		return err
	}

	length := int64(len(jpeg))
	sd.Raw = jpeg
	sd.Content = nil
	sd.StreamLength = &length
	sd.StreamLengthObjNr = nil
	sd.FilterPipeline = []types.PDFFilter{{Name: filter.DCT}}

	sd.Update("Filter", types.Name(filter.DCT))
	sd.Update("Length", types.Integer(len(jpeg)))
	sd.Update("ColorSpace", types.Name(compressionDomain.ColorSpaceRGB))
	sd.Update("BitsPerComponent", types.Integer(8))
	sd.Delete("DecodeParms")
	sd.Delete("Decode")

	entry.Object = sd

	s.info.Decode = nil
	s.info.Filter = compressionDomain.FilterDCT
	s.info.ColorSpace = compressionDomain.ColorSpaceRGB
	s.info.BitsPerComponent = 8
	return nil
}
