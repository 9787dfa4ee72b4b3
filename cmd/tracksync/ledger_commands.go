package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tracksync/internal/api"
	"tracksync/internal/ingest"
	"tracksync/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and prune the ingest ledger",
	}
	cmd.AddCommand(newLedgerListCommand(ctx))
	cmd.AddCommand(newLedgerShowCommand(ctx))
	cmd.AddCommand(newLedgerStatsCommand(ctx))
	cmd.AddCommand(newLedgerClearCommand(ctx))
	cmd.AddCommand(newLedgerRemoveCommand(ctx))
	return cmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var (
		stageFilters []string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger records",
		RunE: func(cmd *cobra.Command, args []string) error {
			stages, err := parseStages(stageFilters)
			if err != nil {
				return err
			}
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), stages...)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.FromEntries(entries))
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No records")
				return nil
			}
			view := newTableView("ID", "File", "Stage", "Detail", "Updated").alignRight(0)
			for _, entry := range entries {
				view.add(
					strconv.FormatInt(entry.ID, 10),
					entry.FileName,
					stageLabel(string(entry.Stage)),
					valueOrDash(entryDetail(entry)),
					entry.UpdatedAt.Local().Format(time.DateTime),
				)
			}
			fmt.Fprintln(out, view.render())
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&stageFilters, "stage", "s", nil, "Only show records in these stages")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one ledger record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("record %d not found", id)
			}
			if asJSON {
				return writeJSON(cmd, api.FromEntry(entry))
			}

			colorize := shouldColorize(cmd.OutOrStdout())
			var b strings.Builder
			b.WriteString(sectionHeader(fmt.Sprintf("Record %d", entry.ID), colorize))
			b.WriteByte('\n')
			add := func(label string, kind statusKind, value string) {
				b.WriteString(statusLine(label, kind, valueOrDash(value), colorize))
				b.WriteByte('\n')
			}
			add("Stage", stageKind(string(entry.Stage)), stageLabel(string(entry.Stage)))
			add("File", statusInfo, entry.FileName)
			add("Source", statusInfo, entry.SourcePath)
			add("Size", statusInfo, strconv.FormatInt(entry.SizeBytes, 10)+" bytes")
			add("Media type", statusInfo, entry.MediaType)
			add("Fingerprint", statusInfo, entry.Fingerprint)
			add("Destination", statusInfo, entry.Destination)
			add("Request", statusInfo, entry.RequestID)
			add("Relocations", statusInfo, strconv.Itoa(entry.RelocationAttempts))
			add("Duration", statusInfo, formatDuration(entry.Duration()))
			if entry.Stage == ingest.StageFailed {
				add("Failed at", statusError, stageLabel(string(entry.FailedStage)))
				add("Error", statusError, strings.TrimSpace(entry.ErrorKind+" "+entry.ErrorMessage))
			}
			fmt.Fprint(cmd.OutOrStdout(), b.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

func newLedgerStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count records per stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			view := newTableView("Stage", "Records").alignRight(1)
			total := 0
			for _, stage := range ingest.AllStages() {
				total += stats[stage]
				view.add(stageLabel(string(stage)), strconv.Itoa(stats[stage]))
			}
			view.add("Total", strconv.Itoa(total))
			fmt.Fprintln(cmd.OutOrStdout(), view.render())
			return nil
		},
	}
}

func newLedgerClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete relocated, quarantined and failed records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.ClearTerminal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished records\n", removed)
			return nil
		},
	}
}

func newLedgerRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("record %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed record %d\n", id)
			return nil
		},
	}
}

func parseStages(values []string) ([]ingest.Stage, error) {
	stages := make([]ingest.Stage, 0, len(values))
	for _, value := range values {
		stage, ok := ingest.ParseStage(value)
		if !ok {
			return nil, fmt.Errorf("unknown stage %q", value)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func parseRecordID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", value)
	}
	return id, nil
}

func entryDetail(entry *ledger.Entry) string {
	if entry.Stage == ingest.StageFailed {
		return stageLabel(string(entry.FailedStage)) + ": " + entry.ErrorMessage
	}
	return entry.Destination
}
