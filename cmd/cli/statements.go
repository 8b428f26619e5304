package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/qbo-converter/internal/ingest"
	"github.com/dvloznov/qbo-converter/internal/pipeline"
	"github.com/dvloznov/qbo-converter/internal/worker"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newUploadCmd(a *app) *cobra.Command {
	var (
		accountType   string
		accountNumber string
	)

	cmd := &cobra.Command{
		Use:   "upload <statement>",
		Short: "Upload a statement for asynchronous conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, store, err := a.openStatements(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			res, err := svc.Upload(ctx, ingest.UploadRequest{
				Filename:       filepath.Base(args[0]),
				ContentType:    mime.TypeByExtension(filepath.Ext(args[0])),
				Size:           info.Size(),
				ProcessingType: ingest.ProcessingBankStatement,
				AccountType:    accountType,
				AccountNumber:  accountNumber,
				Body:           f,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&accountType, "account-type", ingest.AccountBank, "bank or credit-card")
	cmd.Flags().StringVar(&accountNumber, "account-number", "", "account the statement belongs to")
	_ = cmd.MarkFlagRequired("account-number")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		originalName string
		wait         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status <fileKey>",
		Short: "Report the conversion phase of an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, store, err := a.openStatements(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			deadline := time.Now().Add(wait)
			for {
				status, err := svc.Status(ctx, args[0], originalName)
				if err != nil {
					return err
				}
				if status.Processed || !time.Now().Before(deadline) {
					return printJSON(cmd.OutOrStdout(), status)
				}
				a.log.Debug().Str("status", string(status.Status)).Msg(status.Message)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(5 * time.Second):
				}
			}
		},
	}

	cmd.Flags().StringVar(&originalName, "original-name", "", "uploaded filename; rejected if it does not match the upload")
	cmd.Flags().DurationVar(&wait, "wait", 0, "keep polling until ready or this long has passed")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <fileKey>",
		Short: "Save the converted QBO file of an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, store, err := a.openStatements(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rc, dl, err := svc.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer rc.Close()

			if output == "" {
				output = dl.Filename
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := io.Copy(f, rc)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", output, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <upload name>.qbo)")
	return cmd
}

// newProcessCmd runs the bundled converter once, in the foreground, for one
// upload. It is how a stuck or failed upload is retried by hand.
func newProcessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "process <fileKey>",
		Short: "Convert one uploaded statement now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := a.openStatements(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			conv, err := worker.NewConverter(ctx, a.cfg, store)
			if err != nil {
				return err
			}

			state := &pipeline.PipelineState{SourceKey: args[0]}
			if err := conv.Execute(ctx, state); err != nil {
				return err
			}
			if state.AlreadyConverted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already converted to %s\n", args[0], state.DerivedKey)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Converted %s to %s: %d transactions (%d dropped)\n",
				args[0], state.DerivedKey, len(state.Batch), state.Dropped)
			return nil
		},
	}
}
