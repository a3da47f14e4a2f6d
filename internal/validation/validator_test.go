package validation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/groundtruth-intake-api/internal/models"
)

func wellFormedCSV(headers []string, rows int) string {
	var b strings.Builder
	b.WriteString(strings.Join(headers, ",") + "\n")
	for i := 0; i < rows; i++ {
		fields := make([]string, len(headers))
		for j := range fields {
			fields[j] = fmt.Sprintf("v%d_%d", i, j)
		}
		b.WriteString(strings.Join(fields, ",") + "\n")
	}
	return b.String()
}

func mustParse(t *testing.T, raw string) *models.ParsedTable {
	t.Helper()
	table, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	return table
}

func TestValidate(t *testing.T) {
	validator := NewValidator(MatchSubstring)
	standard := []string{"latitude", "longitude", "date", "landcover_type"}

	tests := []struct {
		name         string
		raw          string
		wantValid    bool
		wantErrors   []string
		wantWarnings int
	}{
		{
			name:       "abbreviated headers are reported in one message",
			raw:        wellFormedCSV([]string{"lat", "lng", "date", "cover"}, 15),
			wantValid:  false,
			wantErrors: []string{"Missing required columns: latitude, longitude, landcover_type"},
		},
		{
			name:      "complete file with fifteen rows",
			raw:       wellFormedCSV(standard, 15),
			wantValid: true,
		},
		{
			name:         "five rows raises the row count warning",
			raw:          wellFormedCSV(standard, 5),
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name:         "header only file",
			raw:          wellFormedCSV(standard, 0),
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name:         "too few columns warns and reports missing",
			raw:          wellFormedCSV([]string{"latitude", "longitude", "date"}, 12),
			wantValid:    false,
			wantErrors:   []string{"Missing required columns: landcover_type"},
			wantWarnings: 1,
		},
		{
			name:       "headers are matched case-insensitively by substring",
			raw:        wellFormedCSV([]string{"Latitude_WGS84", "LONGITUDE", "obs_date", "Landcover_Type_Code"}, 10),
			wantValid:  true,
			wantErrors: nil,
		},
		{
			name: "row shape mismatch reports display line",
			raw: "latitude,longitude,date,landcover_type\n" +
				"1,2,2024-01-01,forest\n" +
				"1,2,2024-01-01\n" +
				"1,2,2024-01-01,forest\n" +
				"1,2,2024-01-01,forest,extra\n" +
				strings.Repeat("1,2,2024-01-01,forest\n", 8),
			wantValid:  false,
			wantErrors: []string{"Row 3: Column count mismatch", "Row 5: Column count mismatch"},
		},
		{
			name: "rows beyond the preview are not shape checked",
			raw: "latitude,longitude,date,landcover_type\n" +
				strings.Repeat("1,2,2024-01-01,forest\n", 5) +
				"broken\n" +
				strings.Repeat("1,2,2024-01-01,forest\n", 5),
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := validator.Validate(mustParse(t, tt.raw))

			if verdict.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v (errors: %v)", verdict.IsValid, tt.wantValid, verdict.Errors)
			}
			wantErrors := tt.wantErrors
			if wantErrors == nil {
				wantErrors = []string{}
			}
			if diff := cmp.Diff(wantErrors, verdict.Errors); diff != "" {
				t.Errorf("errors mismatch (-want +got):\n%s", diff)
			}
			if len(verdict.Warnings) != tt.wantWarnings {
				t.Errorf("got %d warnings, want %d: %v", len(verdict.Warnings), tt.wantWarnings, verdict.Warnings)
			}
		})
	}
}

func TestValidate_NoHeaderSatisfiesAnyColumn(t *testing.T) {
	validator := NewValidator(MatchSubstring)
	verdict := validator.Validate(mustParse(t, wellFormedCSV([]string{"lat", "lng", "day", "cover"}, 15)))

	want := []string{"Missing required columns: latitude, longitude, date, landcover_type"}
	if diff := cmp.Diff(want, verdict.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	if len(verdict.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", verdict.Warnings)
	}
}

func TestValidate_RowCountWarningText(t *testing.T) {
	validator := NewValidator(MatchSubstring)
	verdict := validator.Validate(mustParse(t, wellFormedCSV([]string{"latitude", "longitude", "date", "landcover_type"}, 5)))

	want := []string{"Dataset contains fewer than 10 rows - consider adding more data points"}
	if diff := cmp.Diff(want, verdict.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_ColumnWarningText(t *testing.T) {
	validator := NewValidator(MatchSubstring)
	verdict := validator.Validate(mustParse(t, wellFormedCSV([]string{"latitude_longitude_date_landcover_type"}, 20)))

	if !verdict.IsValid {
		t.Errorf("expected a single header containing every name to satisfy the check, got %v", verdict.Errors)
	}
	want := []string{"Dataset has fewer than 4 columns - ensure all required fields are included"}
	if diff := cmp.Diff(want, verdict.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_StrictMode(t *testing.T) {
	headers := []string{"latitude", "longitude_error", "date", "landcover_type"}
	table := mustParse(t, wellFormedCSV(headers, 12))

	loose := NewValidator(MatchSubstring).Validate(table)
	if !loose.IsValid {
		t.Errorf("substring mode should accept longitude_error, got %v", loose.Errors)
	}

	strict := NewValidator(MatchStrict).Validate(table)
	if strict.IsValid {
		t.Fatal("strict mode should reject longitude_error")
	}
	if diff := cmp.Diff([]string{"Missing required columns: longitude"}, strict.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}

	upper := mustParse(t, wellFormedCSV([]string{"LATITUDE", "Longitude", "date", "LandCover_Type"}, 12))
	if v := NewValidator(MatchStrict).Validate(upper); !v.IsValid {
		t.Errorf("strict mode should ignore case, got %v", v.Errors)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	validator := NewValidator(MatchSubstring)
	table := mustParse(t, "lat,longitude,x\n1,2\n1,2,3\n")

	first := validator.Validate(table)
	second := validator.Validate(table)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("verdict changed between calls (-first +second):\n%s", diff)
	}
}

func TestCheck_FindingLines(t *testing.T) {
	validator := NewValidator(MatchSubstring)
	findings := validator.Check(mustParse(t, "lat,lng\n1\n1,2\n"))

	want := []models.Finding{
		{Line: 1, Severity: models.SeverityError, Message: "Missing required columns: latitude, longitude, date, landcover_type"},
		{Line: 2, Severity: models.SeverityError, Message: "Row 2: Column count mismatch"},
		{Line: 0, Severity: models.SeverityWarning, Message: "Dataset contains fewer than 10 rows - consider adding more data points"},
		{Line: 0, Severity: models.SeverityWarning, Message: "Dataset has fewer than 4 columns - ensure all required fields are included"},
	}
	if diff := cmp.Diff(want, findings); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMatchMode(t *testing.T) {
	tests := []struct {
		in      string
		want    MatchMode
		wantErr bool
	}{
		{"", MatchSubstring, false},
		{"substring", MatchSubstring, false},
		{" STRICT ", MatchStrict, false},
		{"exact", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMatchMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMatchMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMatchMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
