package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tracksync/internal/api"
	"tracksync/internal/ingest"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, preflight and ledger status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if errors.Is(err, api.ErrUnavailable) {
				cfg, _ := ctx.ensureConfig()
				return fmt.Errorf("daemon not reachable at %s (start it with `tracksync daemon`): %w", cfg.Paths.APIBind, err)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(status, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status document")
	return cmd
}

func renderStatus(status *api.DaemonStatus, colorize bool) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(sectionHeader("Daemon", colorize))
	if status.Running {
		line(statusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
	} else {
		line(statusLine("Daemon", statusError, "stopped", colorize))
	}
	switch {
	case status.Offline:
		line(statusLine("Catalog", statusWarn, "offline", colorize))
	case status.Identity != nil:
		line(statusLine("Catalog", statusOK, "signed in as "+status.Identity.Username, colorize))
	default:
		line(statusLine("Catalog", statusError, "not signed in", colorize))
	}
	line(statusLine("Inbox", statusInfo, status.InboxDir, colorize))
	line(statusLine("Ledger", statusInfo, status.LedgerPath, colorize))
	line(statusLine("Lock", statusInfo, status.LockFilePath, colorize))

	wf := status.Workflow
	line(statusLine("Workers", statusInfo, fmt.Sprintf("%d busy of %d, %d queued", len(wf.Active), wf.Workers, wf.Queued), colorize))
	line(statusLine("Processed", statusInfo, fmt.Sprintf("%d relocated, %d quarantined, %d duplicate, %d failed", wf.Relocated, wf.Quarantined, wf.Duplicates, wf.Failed), colorize))
	if wf.LastError != "" {
		line(statusLine("Last error", statusError, wf.LastError, colorize))
	}

	if len(status.Preflight) > 0 {
		b.WriteByte('\n')
		line(sectionHeader("Preflight", colorize))
		for _, check := range status.Preflight {
			kind := statusOK
			if !check.Passed {
				kind = statusError
				if check.Optional {
					kind = statusWarn
				}
			}
			line(statusLine(check.Name, kind, check.Detail, colorize))
		}
	}

	b.WriteByte('\n')
	line(sectionHeader("Ledger", colorize))
	view := newTableView("Stage", "Records").alignRight(1)
	for _, stage := range ingest.AllStages() {
		view.add(stageLabel(string(stage)), strconv.Itoa(status.Ledger[string(stage)]))
	}
	line(view.render())
	return b.String()
}
