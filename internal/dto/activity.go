package dto

// ExportFormat selects the activity statement rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportedFile is a rendered statement ready for download.
type ExportedFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
