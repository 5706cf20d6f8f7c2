package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lakebench/lakebench/internal/results"
	"github.com/lakebench/lakebench/internal/store"
)

func newStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the longitudinal result store",
	}
	cmd.AddCommand(newStoreIngestCommand())
	cmd.AddCommand(newStoreListCommand())
	cmd.AddCommand(newStoreHistoryCommand())
	cmd.AddCommand(newStorePruneCommand())
	return cmd
}

func openStore() (*store.Store, error) {
	dir := filepath.Dir(cfg.StorePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return store.Open(cfg.StorePath)
}

func newStoreIngestCommand() *cobra.Command {
	var (
		revision        string
		commitTimestamp string
	)

	cmd := &cobra.Command{
		Use:   "ingest <result.json>...",
		Short: "Ingest result artifacts into the store",
		Long: `Parse result documents and append them to the store. Ingestion is
idempotent: an artifact already present under the same revision is skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read result %s: %w", path, err)
				}
				result, err := results.ParseRunResult(data)
				if err != nil {
					return fmt.Errorf("failed to parse result %s: %w", path, err)
				}

				ts := commitTimestamp
				if ts == "" {
					ts = result.Context.CreatedAt.UTC().Format(time.RFC3339)
				}
				summary, err := s.Ingest(result, revision, ts, path)
				if err != nil {
					return err
				}
				if summary.Deduped {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: already ingested as %s\n", path, summary.RunID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ingested %d cases as %s\n",
						path, summary.RowsAppended, summary.RunID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&revision, "revision", "", "Revision of the code under test")
	cmd.Flags().StringVar(&commitTimestamp, "commit-timestamp", "",
		"Commit timestamp of the revision (default: the artifact's created_at)")
	_ = cmd.MarkFlagRequired("revision")

	return cmd
}

func newStoreListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs in commit order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Run", "Revision", "Commit Time", "Label", "Suite", "Scale", "Cases"})
			for _, r := range runs {
				t.AppendRow(table.Row{
					r.RunID[:12], r.Revision, r.CommitTimestamp, r.Label, r.Suite, r.Scale, r.CaseCount,
				})
			}
			t.Render()
			return nil
		},
	}
}

func newStoreHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <case>",
		Short: "Show one case's measurements across revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			history, err := s.CaseHistory(args[0])
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no stored measurements for case '%s'\n", args[0])
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Revision", "Commit Time", "Status", "Class", "Samples", "Median ms"})
			for _, p := range history {
				status := "PASS"
				if !p.Success {
					status = "FAIL"
				}
				median := "-"
				if p.MedianMS != nil {
					median = fmt.Sprintf("%.2f", *p.MedianMS)
				}
				t.AppendRow(table.Row{p.Revision, p.CommitTimestamp, status, p.Classification, p.SampleCount, median})
			}
			t.Render()
			return nil
		},
	}
}

func newStorePruneCommand() *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs ingested before a retention cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThanDays <= 0 {
				return fmt.Errorf("--older-than-days must be > 0")
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
			removed, err := s.Prune(cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d runs ingested before %s\n",
				removed, cutoff.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than-days", 90, "Retention window in days")
	return cmd
}
