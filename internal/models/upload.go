package models

// PreviewRowLimit is the number of data rows kept for the upload preview
const PreviewRowLimit = 5

// RequiredColumns are the column names every ground truth file must carry
var RequiredColumns = []string{"latitude", "longitude", "date", "landcover_type"}

// ParsedTable is the result of splitting an uploaded CSV file
type ParsedTable struct {
	Headers       []string   `json:"headers" yaml:"headers"`
	PreviewRows   [][]string `json:"preview_rows" yaml:"preview_rows"`
	TotalRowCount int        `json:"total_row_count" yaml:"total_row_count"`
}

// ValidationVerdict is the structural verdict derived from a ParsedTable
type ValidationVerdict struct {
	IsValid  bool     `json:"is_valid" yaml:"is_valid"`
	Errors   []string `json:"errors" yaml:"errors"`
	Warnings []string `json:"warnings" yaml:"warnings"`
}

// Severity classifies a validation finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is a single validation message with the display line it refers to.
// Line is 0 for file-level findings.
type Finding struct {
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}
