package compression

// Optimizer performs the lossless structural rewrite of a PDF.
type Optimizer interface {
	Optimize(inputPath, outputPath string) error
}

// DocumentOpener opens a PDF on disk as a Document.
type DocumentOpener interface {
	Open(path string) (Document, error)
}

// Document is a parsed PDF held open by a single owner.
type Document interface {
	// Objects returns the document's objects ordered by object number.
	Objects() []Object
	// Save writes the document to path, replacing any existing file.
	Save(path string) error
}

// ImageStream is a raster image XObject inside a Document.
type ImageStream interface {
	Info() ImageInfo
	// Payload returns the JPEG bytes for DCT-encoded images and the decoded
	// sample bytes for everything else.
	Payload() ([]byte, error)
	// Replace swaps in a JPEG payload and the matching DCTDecode filter.
	// Either every entry is updated or none is.
	Replace(jpeg []byte) error
}

// Recompressor re-encodes every image of the document at path.
type Recompressor interface {
	Recompress(path string, quality int) (int, error)
}
