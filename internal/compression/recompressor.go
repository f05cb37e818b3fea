package compression

import (
	"errors"
	"fmt"
	"log/slog"

	"pdfshrink/internal/common"
	compressionDomain "pdfshrink/internal/domain/compression"
)

// Recompressor re-encodes every image stream of a document as JPEG at a
// given quality and saves the document back in place.
type Recompressor struct {
	opener compressionDomain.DocumentOpener
	codec  Codec
	logger *slog.Logger
}

// NewRecompressor creates a new recompressor instance
func NewRecompressor(opener compressionDomain.DocumentOpener, codec Codec, logger *slog.Logger) *Recompressor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recompressor{
		opener: opener,
		codec:  codec,
		logger: logger,
	}
}

// imageResult is the outcome of one image within a pass.
type imageResult struct {
	objectNumber int
	altered      bool
	err          error
}

// Recompress opens the document at path, re-encodes each image at quality and
// returns how many images were altered. The document is saved back to path
// only when that count is positive. An unreadable document yields
// ErrMalformedDocument, which callers can tell apart from a zero count.
func (r *Recompressor) Recompress(path string, quality int) (int, error) {
	doc, err := r.opener.Open(path)
	if err != nil {
		if !errors.Is(err, common.ErrMalformedDocument) {
			err = common.MalformedDocumentError("open", path, err)
		}
		r.logger.Error("Error during image processing", "file", path, "error", err)
		return 0, err
	}

	altered := 0
	for _, obj := range doc.Objects() {
		if obj.Kind != compressionDomain.KindImage || obj.Image == nil {
			continue
		}

		result := r.recompressImage(obj.Image, quality)
		if result.err != nil {
			r.logger.Debug("Skipping image that could not be recompressed",
				"file", path,
				"object", result.objectNumber,
				"error", result.err)
			continue
		}
		if result.altered {
			altered++
		}
	}

	if altered == 0 {
		return 0, nil
	}

	if err := doc.Save(path); err != nil {
		return 0, common.NewCompressionError("save", path, err)
	}

	r.logger.Debug("Recompressed images", "file", path, "quality", quality, "images", altered)
	return altered, nil
}

func (r *Recompressor) recompressImage(stream compressionDomain.ImageStream, quality int) imageResult {
	info := stream.Info()
	result := imageResult{objectNumber: info.ObjectNumber}

	img, err := r.codec.Decode(stream)
	if err != nil {
		result.err = err
		return result
	}

	data, err := r.codec.EncodeJPEG(img, quality)
	if err != nil {
		result.err = err
		return result
	}

	if err := stream.Replace(data); err != nil {
		result.err = fmt.Errorf("%w: object %d: %v", common.ErrImageCodec, info.ObjectNumber, err)
		return result
	}

	result.altered = true
	return result
}
