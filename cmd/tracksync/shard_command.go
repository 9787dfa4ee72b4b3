package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tracksync/internal/shard"
)

func newShardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shard <fingerprint> [file-name]",
		Short: "Print the library location for a fingerprint",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := shard.Derive(args[0])
			dir := path.Join(cfg.Paths.LibraryDir)
			if len(args) == 2 {
				dir = filepath.Join(dir, filepath.Base(args[1]))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Shard:   %s\n", path.String())
			shards := path.Shards()
			fmt.Fprintf(out, "Levels:  %s\n", strings.Join(shards[:], " "))
			if leaf := path.Remainder(); leaf != "" {
				fmt.Fprintf(out, "Leaf:    %s\n", leaf)
			}
			fmt.Fprintf(out, "Library: %s\n", dir)
			if !path.Complete() {
				fmt.Fprintln(out, "Warning: fingerprint is too short for a full shard path")
			}
			if !path.Safe() {
				return fmt.Errorf("fingerprint %q produces unsafe path segments", args[0])
			}
			return nil
		},
	}
}
