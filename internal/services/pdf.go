package services

import (
	"fmt"
	"os"

	"pdfshrink/internal/common"
	compressionDomain "pdfshrink/internal/domain/compression"
	"pdfshrink/internal/config"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFService handles PDF structure operations
type PDFService struct {
	config *config.Config
}

// NewPDFService creates a new PDF service
func NewPDFService(cfg *config.Config) *PDFService {
	return &PDFService{config: cfg}
}

// configuration returns the pdfcpu settings shared by reads and writes.
// Validation is relaxed so that real-world files with minor defects still
// load, and output always packs objects and the xref table into streams.
func (s *PDFService) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = true
	conf.WriteXRefStream = true
	return conf
}

// Optimize performs the lossless structural rewrite of inputPath into
// outputPath: streams are compressed, objects are packed into object streams
// and duplicate resources are merged. An existing outputPath is replaced; on
// failure nothing is written there.
func (s *PDFService) Optimize(inputPath, outputPath string) error {
	ctx, err := s.read(inputPath)
	if err != nil {
		s.config.Logger.Error("Failed to read PDF", "file", inputPath, "error", err)
		return common.NewCompressionError("optimize", inputPath, err)
	}

	err = common.ReplaceFile(outputPath, func(f *os.File) error {
		return api.WriteContext(ctx, f)
	})
	if err != nil {
		s.config.Logger.Error("Failed to write optimized PDF", "file", outputPath, "error", err)
		return common.NewCompressionError("optimize", outputPath, err)
	}

	s.config.Logger.Debug("Structural optimization finished", "input", inputPath, "output", outputPath)
	return nil
}

// Open parses the PDF at path for image recompression.
func (s *PDFService) Open(path string) (compressionDomain.Document, error) {
	ctx, err := s.read(path)
	if err != nil {
		return nil, common.NewCompressionError("open", path, err)
	}
	return newDocument(ctx), nil
}

// read loads, validates and optimizes path. Any failure that is not an I/O
// error on the file itself matches ErrMalformedDocument.
func (s *PDFService) read(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, s.configuration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedDocument, err)
	}
	return ctx, nil
}
