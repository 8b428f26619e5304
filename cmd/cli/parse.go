package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/pipeline"
	"github.com/spf13/cobra"
)

// newParsePDFCmd converts a local PDF statement with the model parser,
// without going through the bucket. Vertex vs Gemini Developer API is picked
// by the GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT and
// GOOGLE_CLOUD_LOCATION environment variables.
func newParsePDFCmd(a *app) *cobra.Command {
	var (
		output string
		model  string
	)

	cmd := &cobra.Command{
		Use:   "parse-pdf <statement.pdf>",
		Short: "Convert a PDF statement to QBO using the model parser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pdfBytes, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read PDF at %q: %w", args[0], err)
			}

			if model == "" {
				model = a.cfg.Worker.Model
			}
			parser, err := pipeline.NewGeminiParser(ctx, model, a.cfg.Dates.AssumedYear)
			if err != nil {
				return err
			}

			batch, err := parser.ParseStatement(ctx, pdfBytes)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := ofx.NewEncoder(a.cfg.Institution).EncodeTo(&buf, batch); err != nil {
				return err
			}

			if output == "" {
				base := filepath.Base(args[0])
				output = strings.TrimSuffix(base, filepath.Ext(base)) + ".qbo"
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d transactions, %s to %s\n",
				output, len(batch), batch.Start(), batch.End())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <statement>.qbo)")
	cmd.Flags().StringVar(&model, "model", "", "model name (default worker.model)")
	return cmd
}
