package compression

// ObjectKind tags an Object as an in-scope image or anything else.
type ObjectKind int

const (
	KindOther ObjectKind = iota
	KindImage
)

func (k ObjectKind) String() string {
	if k == KindImage {
		return "image"
	}
	return "other"
}

// Object is one entry of a Document. Image is set only for KindImage.
type Object struct {
	Number int
	Kind   ObjectKind
	Image  ImageStream
}

// Filter names used in image streams
const (
	FilterDCT = "DCTDecode"
)

// Color space names understood by the codec
const (
	ColorSpaceGray = "DeviceGray"
	ColorSpaceRGB  = "DeviceRGB"
	ColorSpaceCMYK = "DeviceCMYK"
)

// ImageInfo describes an image stream as found in its dictionary.
type ImageInfo struct {
	ObjectNumber     int       `json:"object_number"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	BitsPerComponent int       `json:"bits_per_component"`
	ColorSpace       string    `json:"color_space"`
	Filter           string    `json:"filter"`
	Decode           []float64 `json:"decode,omitempty"`
}

// IsDCT reports whether the payload is JPEG data.
func (i ImageInfo) IsDCT() bool {
	return i.Filter == FilterDCT
}

// IdentityDecode reports whether the /Decode array is absent or maps every
// component onto [0 1] unchanged.
func (i ImageInfo) IdentityDecode() bool {
	for j := 0; j+1 < len(i.Decode); j += 2 {
		if i.Decode[j] != 0 || i.Decode[j+1] != 1 {
			return false
		}
	}
	return len(i.Decode)%2 == 0
}

// Outcome is the terminal state of a reduction.
type Outcome string

const (
	OutcomeAchieved  Outcome = "achieved"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeNoImages  Outcome = "no_images"
)

// Attempt records one recompression pass.
type Attempt struct {
	Quality       int   `json:"quality"`
	ImagesAltered int   `json:"images_altered"`
	Size          int64 `json:"size"`
}

// FileResult represents the result of processing a single file
type FileResult struct {
	FileID           string    `json:"file_id"`
	OriginalFilename string    `json:"original_filename"`
	OutputPath       string    `json:"output_path"`
	OriginalSize     int64     `json:"original_size"`
	OptimizedSize    int64     `json:"optimized_size"`
	CompressedSize   int64     `json:"compressed_size"`
	CompressionRatio float64   `json:"compression_ratio"`
	Outcome          Outcome   `json:"outcome,omitempty"`
	Attempts         []Attempt `json:"attempts,omitempty"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
}

// Passes returns the number of recompression passes that ran.
func (r FileResult) Passes() int {
	return len(r.Attempts)
}

// LastQuality returns the quality of the last pass, or 0 if none ran.
func (r FileResult) LastQuality() int {
	if len(r.Attempts) == 0 {
		return 0
	}
	return r.Attempts[len(r.Attempts)-1].Quality
}

// CompressionRequest describes one batch run.
type CompressionRequest struct {
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`
	Budget    int64  `json:"budget"`
}

// CompressionResponse summarizes one batch run.
type CompressionResponse struct {
	RunID                   string       `json:"run_id"`
	Success                 bool         `json:"success"`
	Files                   []FileResult `json:"files"`
	TotalFiles              int          `json:"total_files"`
	TotalOriginalSize       int64        `json:"total_original_size"`
	TotalCompressedSize     int64        `json:"total_compressed_size"`
	OverallCompressionRatio float64      `json:"overall_compression_ratio"`
	Error                   string       `json:"error,omitempty"`
}
