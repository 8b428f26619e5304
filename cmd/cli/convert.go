package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/qbo-converter/internal/extract"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/pipeline"
	"github.com/spf13/cobra"
)

func newConvertCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "convert <file.csv>...",
		Short: "Merge CSV exports into one QBO file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := make([]extract.Source, 0, len(args))
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				sources = append(sources, extract.Source{Name: filepath.Base(path), Reader: f})
			}

			conv := pipeline.NewConverter(
				extract.NewExtractor(extract.DefaultLayout(), a.cfg.Dates.AssumedYear),
				ofx.NewEncoder(a.cfg.Institution),
			)
			res, err := conv.ConvertCSV(cmd.Context(), sources...)
			if err != nil {
				return err
			}
			for _, fe := range res.Stats.FileErrors {
				a.log.Warn().Err(fe.Err).Str("file", fe.Name).Msg("File read stopped early")
			}

			if output == "" {
				output = "combined_" + time.Now().Format("20060102150405") + ".qbo"
			}
			if err := os.WriteFile(output, res.QBO, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d transactions (%d rows dropped), %s to %s, net %s\n",
				output, res.Transactions, res.Dropped, res.Start, res.End, res.Total.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default combined_<timestamp>.qbo)")
	return cmd
}
