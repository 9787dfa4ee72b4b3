package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tracksync/internal/classify"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file-name>...",
		Short: "Check file names against the extension allow-list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			classifier := classify.New(cfg.Ingest.SupportedExtensions)

			view := newTableView("File", "Extension", "Verdict", "Media Type")
			for _, name := range args {
				ext := filepath.Ext(name)
				mediaType, _ := classifier.MediaType(ext)
				view.add(name, valueOrDash(ext), classifier.Classify(ext).String(), valueOrDash(mediaType))
			}
			fmt.Fprintln(cmd.OutOrStdout(), view.render())
			return nil
		},
	}
}
