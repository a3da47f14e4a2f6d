package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/groundtruth-intake-api/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	log      zerolog.Logger
)

// Execute runs the root command against stdout
func Execute() error {
	root := NewRootCommand(os.Stdout)
	err := root.Execute()
	if err != nil && !errors.Is(err, ErrInvalidFiles) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// NewRootCommand builds the gtcheck command tree writing results to out
func NewRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "gtcheck",
		Short:         "Validate ground truth CSV files before upload",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log = logger.NewWithWriter(cmd.ErrOrStderr(), logLevel, "pretty")
			return nil
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(validateCmd(), versionCmd())
	return root
}
