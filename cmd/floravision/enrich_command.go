package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"floravision/internal/config"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var noWait bool

	cmd := &cobra.Command{
		Use:   "enrich <image>",
		Short: "Recognize flowers and extract metadata for one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if path, err = filepath.Abs(path); err != nil {
				return err
			}

			runCtx, cancel := signalContext(cmd)
			defer cancel()

			rt, err := ctx.openRuntime(runCtx, runtimeOptions{loadDetector: true, snapshot: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			rec, err := rt.enricher.Open(runCtx, path)
			if err != nil {
				return err
			}
			if !noWait && rec.Location.Pending() {
				if err := rt.enricher.Settle(runCtx); err != nil {
					return err
				}
				if settled, ok := rt.enricher.Get(runCtx, path); ok {
					rec = settled
				}
			}

			if asJSON {
				return writeJSON(cmd, rec)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRecord(rec))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Do not wait for address resolution")
	return cmd
}
