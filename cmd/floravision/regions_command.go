package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"floravision/internal/geo"
)

func newRegionsCommand() *cobra.Command {
	regionsCmd := &cobra.Command{
		Use:         "regions",
		Short:       "Query the built-in region table",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	regionsCmd.AddCommand(newRegionsMatchCommand())
	return regionsCmd
}

func newRegionsMatchCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "match <lat> <lon>",
		Short: "Find the province, city and district containing a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lon, err := parseCoordinates(args)
			if err != nil {
				return err
			}
			region := geo.DefaultMatcher().Match(lat, lon)
			if asJSON {
				return writeJSON(cmd, region)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %s\n", "Province:", region.Province)
			fmt.Fprintf(out, "%-10s %s\n", "City:", region.City)
			fmt.Fprintf(out, "%-10s %s\n", "District:", region.District)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the region as JSON")
	return cmd
}

func parseCoordinates(args []string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", args[0])
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", args[1])
	}
	if err := geo.ValidateCoordinates(lat, lon); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}
