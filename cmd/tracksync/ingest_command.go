package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"tracksync/internal/api"
	"tracksync/internal/daemon"
	"tracksync/internal/daemonrun"
	"tracksync/internal/ingest"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Run files through the pipeline again",
		Long: "Submit files to the running daemon. When no daemon answers, the files are\n" +
			"processed in this process while holding the inbox lock.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve %q: %w", arg, err)
				}
				paths = append(paths, abs)
			}
			if !local {
				submitted, err := ingestViaDaemon(cmd, ctx, paths)
				if submitted || !errors.Is(err, api.ErrUnavailable) {
					return err
				}
			}
			return ingestLocally(cmd, ctx, paths)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Process in-process without contacting the daemon")
	return cmd
}

// ingestViaDaemon reports whether the daemon handled the request.
func ingestViaDaemon(cmd *cobra.Command, ctx *commandContext, paths []string) (bool, error) {
	client, err := ctx.apiClient()
	if err != nil {
		return false, err
	}
	resp, err := client.Ingest(cmd.Context(), paths)
	if err != nil {
		return false, err
	}

	out := cmd.OutOrStdout()
	for _, path := range resp.Submitted {
		fmt.Fprintf(out, "Queued %s\n", path)
	}
	for _, rejected := range resp.Rejected {
		fmt.Fprintf(out, "Rejected %s: %s\n", rejected.Path, rejected.Error)
	}
	if len(resp.Rejected) > 0 {
		return true, fmt.Errorf("%d of %d paths rejected", len(resp.Rejected), len(paths))
	}
	return true, nil
}

func ingestLocally(cmd *cobra.Command, ctx *commandContext, paths []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.fileLogger()
	if err != nil {
		return err
	}
	records, err := daemonrun.RunOnce(cmd.Context(), cfg, paths, logger)
	if errors.Is(err, daemon.ErrLocked) {
		return fmt.Errorf("%w; the daemon holds it but its API did not answer", err)
	}
	if err != nil {
		return err
	}

	view := newTableView("ID", "File", "Outcome", "Detail").alignRight(0)
	failed := 0
	for _, rec := range records {
		detail := rec.Destination
		if rec.Stage == ingest.StageFailed {
			failed++
			detail = fmt.Sprintf("%s: %s", stageLabel(string(rec.FailedStage)), rec.ErrorMessage())
		}
		view.add(strconv.FormatInt(rec.ID, 10), rec.File.Name, stageLabel(string(rec.Stage)), valueOrDash(detail))
	}
	fmt.Fprintln(cmd.OutOrStdout(), view.render())
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(records))
	}
	return nil
}
