package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tracksync/internal/classify"
	"tracksync/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigCheckCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		path      string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(path)
			if target == "" {
				var err error
				target, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return err
				}
				target = expanded
			}

			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists (use --overwrite to replace it)", target)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("stat config: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Destination path (defaults to the standard location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print resolved paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			colorize := shouldColorize(cmd.OutOrStdout())

			var b strings.Builder
			add := func(label string, value string) {
				b.WriteString(statusLine(label, statusInfo, valueOrDash(value), colorize))
				b.WriteByte('\n')
			}
			b.WriteString(sectionHeader("Configuration", colorize))
			b.WriteByte('\n')
			add("Inbox", cfg.Paths.InboxDir)
			add("Library", cfg.Paths.LibraryDir)
			add("Quarantine", cfg.Paths.QuarantineDir)
			add("Ledger", cfg.LedgerPath())
			add("Lock", cfg.LockPath())
			add("Logs", cfg.Paths.LogDir)
			add("API", cfg.Paths.APIBind)
			add("Extensions", strings.Join(classify.New(cfg.Ingest.SupportedExtensions).Extensions(), " "))
			add("Workers", fmt.Sprintf("%d", cfg.Ingest.Workers))
			add("Catalog", yesNo(cfg.Catalog.Enabled)+" "+cfg.Catalog.URL)
			b.WriteString(statusLine("Valid", statusOK, "configuration loaded", colorize))
			b.WriteByte('\n')
			fmt.Fprint(cmd.OutOrStdout(), b.String())
			return nil
		},
	}
}
