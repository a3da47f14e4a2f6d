package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/groundtruth-intake-api/internal/models"
	"github.com/groundtruth-intake-api/internal/validation"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFiles is returned when at least one file fails validation
var ErrInvalidFiles = errors.New("one or more files are invalid")

// FileReport is the validation outcome for one file
type FileReport struct {
	File    string                    `json:"file" yaml:"file"`
	Table   *models.ParsedTable       `json:"table,omitempty" yaml:"table,omitempty"`
	Verdict *models.ValidationVerdict `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	Error   string                    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Valid reports whether the file parsed and passed validation
func (r FileReport) Valid() bool {
	return r.Error == "" && r.Verdict != nil && r.Verdict.IsValid
}

func validateCmd() *cobra.Command {
	var (
		format      string
		strict      bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Parse and validate ground truth CSV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" && format != "yaml" {
				return fmt.Errorf("format must be one of: text, json, yaml")
			}

			mode := validation.MatchSubstring
			if strict {
				mode = validation.MatchStrict
			}

			reports, err := validateFiles(cmd, validation.NewValidator(mode), args, concurrency)
			if err != nil {
				return err
			}

			if err := writeReports(cmd.OutOrStdout(), reports, format); err != nil {
				return err
			}

			for _, r := range reports {
				if !r.Valid() {
					return ErrInvalidFiles
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json, yaml)")
	cmd.Flags().BoolVar(&strict, "strict", false, "require exact column names instead of substring matches")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", runtime.NumCPU(), "files validated in parallel")
	return cmd
}

// validateFiles checks every path concurrently, keeping reports in argument order
func validateFiles(cmd *cobra.Command, v *validation.Validator, paths []string, concurrency int) ([]FileReport, error) {
	reports := make([]FileReport, len(paths))

	g, ctx := errgroup.WithContext(cmd.Context())
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			reports[i] = validateFile(v, path)
			log.Debug().Str("file", path).Bool("valid", reports[i].Valid()).Msg("File checked")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// validateFile never fails; problems with the file itself land in the report
func validateFile(v *validation.Validator, path string) FileReport {
	report := FileReport{File: path}

	if err := validation.CheckFileName(filepath.Base(path)); err != nil {
		report.Error = err.Error()
		return report
	}

	data, err := os.ReadFile(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	table, err := validation.Parse(string(data))
	if errors.Is(err, validation.ErrEmptyFile) {
		report.Verdict = &models.ValidationVerdict{Errors: []string{"File is empty"}, Warnings: []string{}}
		return report
	}
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.Table = table
	report.Verdict = v.Validate(table)
	return report
}

func writeReports(w io.Writer, reports []FileReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(reports)
	default:
		for _, r := range reports {
			writeText(w, r)
		}
		return nil
	}
}

func writeText(w io.Writer, r FileReport) {
	switch {
	case r.Error != "":
		fmt.Fprintf(w, "%s: ERROR %s\n", r.File, r.Error)
		return
	case r.Valid():
		fmt.Fprintf(w, "%s: VALID", r.File)
	default:
		fmt.Fprintf(w, "%s: INVALID", r.File)
	}
	if r.Table != nil {
		fmt.Fprintf(w, " (%d rows, columns: %s)", r.Table.TotalRowCount, strings.Join(r.Table.Headers, ", "))
	}
	fmt.Fprintln(w)

	for _, msg := range r.Verdict.Errors {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
	for _, msg := range r.Verdict.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", msg)
	}
}
