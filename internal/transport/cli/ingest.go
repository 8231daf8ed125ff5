package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
)

func newIngestCommand(svc Services, opts *options) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest PDF files",
		Long: `Extracts, chunks, embeds and stores PDF files.
Without arguments every *.pdf in --dir is ingested. Re-ingesting a file replaces its previous version.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				found, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
				if err != nil {
					return fmt.Errorf("scan %s: %w", dir, err)
				}
				sort.Strings(found)
				paths = found
			}
			if len(paths) == 0 {
				cmd.Printf("No PDF files found in %s\n", dir)
				return nil
			}

			ing, err := svc.Ingester(cmd.Context())
			if err != nil {
				return err
			}

			reqs := make([]ingest.Request, len(paths))
			for i, p := range paths {
				reqs[i] = ingest.Request{OwnerID: opts.owner, Filename: filepath.Base(p), Path: p}
			}
			results := ing.IngestMany(cmd.Context(), reqs)

			if opts.json {
				data, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal results: %w", err)
				}
				cmd.Println(string(data))
			} else {
				printIngestResults(cmd, results)
			}

			for _, r := range results {
				if r.Status != ingest.StatusOK {
					return errors.New("some files failed to ingest")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", svc.DataDir, "directory scanned when no files are given")
	return cmd
}

func printIngestResults(cmd *cobra.Command, results []ingest.Result) {
	ok := 0
	for _, r := range results {
		switch {
		case r.Status != ingest.StatusOK:
			cmd.Printf("  FAIL  %s: %s\n", r.Filename, r.Message)
		case r.Chunks == 0:
			ok++
			cmd.Printf("  SKIP  %s: %s\n", r.Filename, r.Message)
		default:
			ok++
			cmd.Printf("  OK    %s (%d chunks)\n", r.Filename, r.Chunks)
		}
	}
	cmd.Printf("%d/%d files ingested\n", ok, len(results))
}
