package validation

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantHeaders []string
		wantPreview int
		wantTotal   int
	}{
		{
			name:        "header only",
			raw:         "latitude,longitude,date,landcover_type\n",
			wantHeaders: []string{"latitude", "longitude", "date", "landcover_type"},
			wantPreview: 0,
			wantTotal:   0,
		},
		{
			name:        "trims header fields",
			raw:         " latitude , longitude,date ,landcover_type\n1,2,3,4",
			wantHeaders: []string{"latitude", "longitude", "date", "landcover_type"},
			wantPreview: 1,
			wantTotal:   1,
		},
		{
			name:        "blank lines are dropped",
			raw:         "\n\n  \na,b\n\n1,2\n   \n3,4\n",
			wantHeaders: []string{"a", "b"},
			wantPreview: 2,
			wantTotal:   2,
		},
		{
			name:        "crlf line endings",
			raw:         "a,b\r\n1,2\r\n3,4\r\n",
			wantHeaders: []string{"a", "b"},
			wantPreview: 2,
			wantTotal:   2,
		},
		{
			name:        "preview capped at five rows",
			raw:         "a\n1\n2\n3\n4\n5\n6\n7\n",
			wantHeaders: []string{"a"},
			wantPreview: 5,
			wantTotal:   7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if strings.Join(table.Headers, "|") != strings.Join(tt.wantHeaders, "|") {
				t.Errorf("Parse() headers = %v, want %v", table.Headers, tt.wantHeaders)
			}
			if len(table.PreviewRows) != tt.wantPreview {
				t.Errorf("Parse() preview rows = %d, want %d", len(table.PreviewRows), tt.wantPreview)
			}
			if table.TotalRowCount != tt.wantTotal {
				t.Errorf("Parse() total rows = %d, want %d", table.TotalRowCount, tt.wantTotal)
			}
		})
	}
}

func TestParse_EmptyFile(t *testing.T) {
	for _, raw := range []string{"", "\n", "  \n\t\n\r\n"} {
		table, err := Parse(raw)
		if !errors.Is(err, ErrEmptyFile) {
			t.Errorf("Parse(%q) error = %v, want ErrEmptyFile", raw, err)
		}
		if table != nil {
			t.Errorf("Parse(%q) returned a table for an empty file", raw)
		}
	}
}

func TestParse_PreviewRowsAreTrimmed(t *testing.T) {
	table, err := Parse("a,b,c\n 1 ,2,  3\n")
	if err != nil {
		t.Fatal(err)
	}
	got := table.PreviewRows[0]
	want := []string{"1", "2", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParse_RowCountProperties(t *testing.T) {
	for n := 0; n <= 12; n++ {
		var b strings.Builder
		b.WriteString("latitude,longitude\n")
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "%d,%d\n\n", i, i)
		}

		table, err := Parse(b.String())
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(table.Headers) < 1 {
			t.Errorf("n=%d: expected at least one header", n)
		}
		if table.TotalRowCount != n {
			t.Errorf("n=%d: total rows = %d", n, table.TotalRowCount)
		}
		wantPreview := n
		if wantPreview > 5 {
			wantPreview = 5
		}
		if len(table.PreviewRows) != wantPreview {
			t.Errorf("n=%d: preview rows = %d, want %d", n, len(table.PreviewRows), wantPreview)
		}
	}
}

func TestCheckFileName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"ground_truth.csv", false},
		{"archive.csv.csv", false},
		{"ground_truth.txt", true},
		{"ground_truth.CSV", true},
		{"csv", true},
		{"", true},
	}
	for _, tt := range tests {
		err := CheckFileName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckFileName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrNotCSV) {
			t.Errorf("CheckFileName(%q) error = %v, want ErrNotCSV", tt.name, err)
		}
	}
}
