package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/qtrace/pkg/schema"
	"github.com/spf13/cobra"
)

var schemaOut string

var validateCmd = &cobra.Command{
	Use:   "validate [trace-file]",
	Short: "Validate a trace file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	stderr := cmd.ErrOrStderr()

	t, errs := schema.ValidateFile(filePath)
	// Separate warnings from errors
	var errors, warnings []*schema.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			warnings = append(warnings, e)
		} else {
			errors = append(errors, e)
		}
	}
	for _, w := range warnings {
		fmt.Fprintf(stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(stderr, "    at: %s\n", w.Path)
		}
	}
	if len(errors) > 0 {
		fmt.Fprintf(stderr, "Validation failed: %d error(s)\n\n", len(errors))
		for i, e := range errors {
			fmt.Fprintf(stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errors))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%s)\n", filePath, summarize(t))
	return nil
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the trace file JSON Schema",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return err
	}
	if schemaOut == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(schemaOut, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", schemaOut)
	return nil
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOut, "out", "o", "", "Write the schema to this file instead of stdout")
}
