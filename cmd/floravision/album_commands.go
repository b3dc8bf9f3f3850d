package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"floravision/internal/album"
	"floravision/internal/config"
	"floravision/internal/photo"
)

func newAlbumCommand(ctx *commandContext) *cobra.Command {
	albumCmd := &cobra.Command{
		Use:   "album",
		Short: "Group stored records by flower or location",
	}
	albumCmd.AddCommand(newAlbumGroupCommand(ctx))
	albumCmd.AddCommand(newAlbumExportCommand(ctx))
	return albumCmd
}

func newAlbumGroupCommand(ctx *commandContext) *cobra.Command {
	var by string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Show how stored records group",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := album.ParseMode(by)
			if err != nil {
				return err
			}
			records, err := storedRecords(cmd, ctx)
			if err != nil {
				return err
			}
			groups := album.Classify(records, mode)
			if asJSON {
				return writeJSON(cmd, groups)
			}
			writeGroups(cmd.OutOrStdout(), groups)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", string(album.ModeFlower), "Grouping key (flower or location)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print groups as JSON")
	return cmd
}

func newAlbumExportCommand(ctx *commandContext) *cobra.Command {
	var by string
	var dest string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy stored images into per-group folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := album.ParseMode(by)
			if err != nil {
				return err
			}
			root, err := config.ExpandPath(dest)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			records, err := storedRecords(cmd, ctx)
			if err != nil {
				return err
			}

			runCtx, cancel := signalContext(cmd)
			defer cancel()

			result, err := album.NewExporter(root, logger).Export(runCtx, album.Classify(records, mode), mode)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exported %d images into %d folders under %s\n", result.Total, len(result.Categories), result.Root)
			for _, path := range result.Skipped {
				fmt.Fprintf(out, "  skipped %s (missing)\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", string(album.ModeFlower), "Grouping key (flower or location)")
	cmd.Flags().StringVar(&dest, "dest", ".", "Directory that receives the album")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the export summary as JSON")
	return cmd
}

func storedRecords(cmd *cobra.Command, ctx *commandContext) ([]*photo.Record, error) {
	st, err := ctx.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.List(cmd.Context())
}

func writeGroups(out io.Writer, groups []album.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(out, "No records to group")
		return
	}
	rows := make([][]string, 0, len(groups))
	total := 0
	for _, g := range groups {
		rows = append(rows, []string{g.Name, strconv.Itoa(len(g.Entries))})
		total += len(g.Entries)
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		headers: []string{"Group", "Images"},
		aligns:  []columnAlignment{alignLeft, alignRight},
		footer:  []string{"Total", strconv.Itoa(total)},
	}, rows))
}
