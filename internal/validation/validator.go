package validation

import (
	"fmt"
	"strings"

	"github.com/groundtruth-intake-api/internal/models"
)

// MatchMode controls how required column names are matched against headers
type MatchMode string

const (
	// MatchSubstring accepts any header containing the required name, ignoring case
	MatchSubstring MatchMode = "substring"
	// MatchStrict accepts only a header equal to the required name, ignoring case
	MatchStrict MatchMode = "strict"
)

const (
	minRecommendedRows    = 10
	minRecommendedColumns = 4
)

// ParseMatchMode converts a configuration value into a MatchMode
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchSubstring:
		return MatchSubstring, nil
	case MatchStrict:
		return MatchStrict, nil
	default:
		return "", fmt.Errorf("invalid match mode %q, must be one of: substring, strict", s)
	}
}

// Validator checks the structure of a parsed ground truth table.
// It holds no per-call state, so one instance can be shared.
type Validator struct {
	mode     MatchMode
	required []string
}

// NewValidator creates a validator for the standard required columns
func NewValidator(mode MatchMode) *Validator {
	if mode == "" {
		mode = MatchSubstring
	}
	return &Validator{
		mode:     mode,
		required: models.RequiredColumns,
	}
}

// Mode returns the column matching mode
func (v *Validator) Mode() MatchMode {
	return v.mode
}

// Check returns every finding for the table in display order: errors first, then warnings.
func (v *Validator) Check(table *models.ParsedTable) []models.Finding {
	var findings []models.Finding

	// Required columns
	missing := v.MissingColumns(table.Headers)
	if len(missing) > 0 {
		findings = append(findings, models.Finding{
			Line:     1,
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("Missing required columns: %s", strings.Join(missing, ", ")),
		})
	}

	// Row shape
	for i, row := range table.PreviewRows {
		if len(row) != len(table.Headers) {
			findings = append(findings, models.Finding{
				Line:     i + 2,
				Severity: models.SeverityError,
				Message:  fmt.Sprintf("Row %d: Column count mismatch", i+2),
			})
		}
	}

	// Data quality
	if table.TotalRowCount < minRecommendedRows {
		findings = append(findings, models.Finding{
			Severity: models.SeverityWarning,
			Message:  "Dataset contains fewer than 10 rows - consider adding more data points",
		})
	}
	if len(table.Headers) < minRecommendedColumns {
		findings = append(findings, models.Finding{
			Severity: models.SeverityWarning,
			Message:  "Dataset has fewer than 4 columns - ensure all required fields are included",
		})
	}

	return findings
}

// Validate produces the verdict for a table
func (v *Validator) Validate(table *models.ParsedTable) *models.ValidationVerdict {
	return Verdict(v.Check(table))
}

// Verdict folds findings into a verdict. Warnings never affect validity.
func Verdict(findings []models.Finding) *models.ValidationVerdict {
	verdict := &models.ValidationVerdict{
		Errors:   []string{},
		Warnings: []string{},
	}
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityError:
			verdict.Errors = append(verdict.Errors, f.Message)
		case models.SeverityWarning:
			verdict.Warnings = append(verdict.Warnings, f.Message)
		}
	}
	verdict.IsValid = len(verdict.Errors) == 0
	return verdict
}

// MissingColumns returns the required columns no header satisfies, in required order
func (v *Validator) MissingColumns(headers []string) []string {
	var missing []string
	for _, col := range v.required {
		found := false
		for _, h := range headers {
			if v.matches(h, col) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col)
		}
	}
	return missing
}

func (v *Validator) matches(header, col string) bool {
	header = strings.ToLower(header)
	col = strings.ToLower(col)
	if v.mode == MatchStrict {
		return strings.TrimSpace(header) == col
	}
	return strings.Contains(header, col)
}
