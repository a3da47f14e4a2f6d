package validation

import (
	"errors"
	"strings"

	"github.com/groundtruth-intake-api/internal/models"
)

var (
	// ErrEmptyFile is returned when a file has no non-blank lines
	ErrEmptyFile = errors.New("empty file")
	// ErrNotCSV is returned when the file name does not end in .csv
	ErrNotCSV = errors.New("not a CSV file")
)

// CheckFileName enforces the .csv suffix on uploaded file names
func CheckFileName(name string) error {
	if !strings.HasSuffix(name, ".csv") {
		return ErrNotCSV
	}
	return nil
}

// Parse splits raw CSV text into a header row and a preview of the first data rows.
// Lines are split on '\n' and fields on ',' without quote handling.
func Parse(raw string) (*models.ParsedTable, error) {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}

	table := &models.ParsedTable{
		Headers:       splitFields(lines[0]),
		PreviewRows:   [][]string{},
		TotalRowCount: len(lines) - 1,
	}

	end := len(lines)
	if end > models.PreviewRowLimit+1 {
		end = models.PreviewRowLimit + 1
	}
	for _, line := range lines[1:end] {
		table.PreviewRows = append(table.PreviewRows, splitFields(line))
	}

	return table, nil
}

func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
