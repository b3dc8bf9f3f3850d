package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newGeocodeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "geocode <lat> <lon>",
		Short: "Resolve coordinates to an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, err := parseCoordinates(args)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, cancel := signalContext(cmd)
			defer cancel()

			addr, err := newResolver(cfg, logger).ResolveChecked(runCtx, lat, lon)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, addr)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %s\n", "Address:", addr.Formatted)
			fmt.Fprintf(out, "%-10s %s\n", "Source:", addr.Source)
			keys := make([]string, 0, len(addr.Components))
			for k := range addr.Components {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %-16s %s\n", k, addr.Components[k])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the address as JSON")
	return cmd
}
