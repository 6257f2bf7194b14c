package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fixedtree/internal/dumpschema"
	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
	"github.com/Sumatoshi-tech/fixedtree/pkg/persist"
)

// ErrValidationFailed is returned when at least one dump is invalid.
var ErrValidationFailed = errors.New("validation failed")

func newValidateCommand(a *app) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "validate <dump.json>...",
		Short: "Check JSON dumps against the schema and the red-black invariants",
		Args:  cobra.MinimumNArgs(1),
	}

	cmd.RunE = a.wrap(observability.ModeCLI, func(cmd *cobra.Command, args []string) error {
		limit, err := a.maxSnapshotBytes()
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)

		if noColor {
			green.DisableColor()
			red.DisableColor()
			yellow.DisableColor()
		}

		out := cmd.OutOrStdout()
		failed := 0

		for _, path := range args {
			ok, checkErr := validateFile(out, path, limit, green, red, yellow)
			if checkErr != nil {
				return checkErr
			}

			if !ok {
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%w: %d of %d dumps", ErrValidationFailed, failed, len(args))
		}

		return nil
	})

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

// validateFile reports on one dump. The error is reserved for I/O problems.
func validateFile(w io.Writer, path string, limit int64, green, red, yellow *color.Color) (bool, error) {
	var data []byte

	err := persist.ReadLimited(path, limit, func(r io.Reader) error {
		var readErr error

		data, readErr = io.ReadAll(r)

		return readErr
	})
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	issues, err := dumpschema.CheckSchema(data)
	if err != nil {
		red.Fprintf(w, "✗ %s: %v\n", path, err)

		return false, nil
	}

	if len(issues) > 0 {
		red.Fprintf(w, "✗ %s: %d schema issues\n", path, len(issues))

		for _, issue := range issues {
			yellow.Fprintf(w, "  - %s\n", issue)
		}

		return false, nil
	}

	dump, err := dumpschema.Validate(data)
	if err != nil {
		red.Fprintf(w, "✗ %s: %v\n", path, err)

		return false, nil
	}

	green.Fprintf(w, "✓ %s: %d nodes, height %d\n", path, dump.Size, dump.Height)

	return true, nil
}
