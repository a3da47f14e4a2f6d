package repository

import (
	"strings"
	"testing"

	"github.com/groundtruth-intake-api/internal/models"
)

func TestBuildHistoryQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    models.HistoryFilter
		wantWhere []string
		wantArgs  []interface{}
	}{
		{
			name:     "no filter",
			filter:   models.HistoryFilter{},
			wantArgs: nil,
		},
		{
			name:     "status all is ignored",
			filter:   models.HistoryFilter{Status: "all"},
			wantArgs: nil,
		},
		{
			name:      "search is lowered and wrapped",
			filter:    models.HistoryFilter{Search: "Tokyo"},
			wantWhere: []string{"LOWER(id) LIKE $1", "LOWER(location) LIKE $1", "LOWER(satellite) LIKE $1"},
			wantArgs:  []interface{}{"%tokyo%"},
		},
		{
			name:      "search, status and limit",
			filter:    models.HistoryFilter{Search: "landsat", Status: "completed", Limit: 20},
			wantWhere: []string{"LIKE $1", "status = $2", "LIMIT $3"},
			wantArgs:  []interface{}{"%landsat%", "completed", 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildHistoryQuery(tt.filter)

			if !strings.HasPrefix(query, "SELECT ") || !strings.Contains(query, "ORDER BY created_at DESC") {
				t.Errorf("unexpected query shape: %s", query)
			}
			if len(tt.wantWhere) == 0 && strings.Contains(query, "WHERE") {
				t.Errorf("expected no WHERE clause: %s", query)
			}
			for _, fragment := range tt.wantWhere {
				if !strings.Contains(query, fragment) {
					t.Errorf("query missing %q: %s", fragment, query)
				}
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("got %d args, want %d: %v", len(args), len(tt.wantArgs), args)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("arg %d = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"plain":     "plain",
		"100%":      `100\%`,
		"land_type": `land\_type`,
		`a\b`:       `a\\b`,
	}
	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNullHelpers(t *testing.T) {
	if nullString("").Valid {
		t.Error("empty string should map to NULL")
	}
	if !nullString("x").Valid {
		t.Error("non-empty string should be valid")
	}
	if nullFloat(nil).Valid {
		t.Error("nil float should map to NULL")
	}
	v := 0.0087
	if got := floatPtr(nullFloat(&v)); got == nil || *got != v {
		t.Errorf("float round trip lost value: %v", got)
	}
}
