package common

const (
	// Size budget constants
	DefaultMaxFileSizeKB = 300
	BytesPerKB           = 1024

	// Directory constants
	DefaultInputDir  = "input_pdfs"
	DefaultOutputDir = "output_pdfs"

	// File operation constants
	DefaultFilePermissions = 0755
	PDFExtension           = ".pdf"

	// File statuses
	StatusCompleted = "completed"
	StatusWarning   = "warning"
	StatusError     = "error"
)
