package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"floravision/internal/config"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persisted enrichment snapshot",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheShowCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "Snapshot is empty")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for i, rec := range records {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					rec.Path,
					topLabel(rec),
					locationSummary(rec),
				})
			}
			fmt.Fprintln(out, renderTable(tableSpec{
				headers: []string{"#", "Image", "Top flower", "Address"},
				aligns:  []columnAlignment{alignRight},
				footer:  []string{"", fmt.Sprintf("%d records", len(records))},
			}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func newCacheShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <image>",
		Short: "Show the stored record for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if path, err = filepath.Abs(path); err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rec, ok, err := st.Get(cmd.Context(), path)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no stored record for %s", path)
			}
			if asJSON {
				return writeJSON(cmd, rec)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRecord(rec))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "clear [image]",
		Short: "Remove one stored record, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if purge {
				return purgeSnapshot(ctx, out)
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				path, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				if path, err = filepath.Abs(path); err != nil {
					return err
				}
				removed, err := st.Delete(cmd.Context(), path)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no stored record for %s", path)
				}
				fmt.Fprintf(out, "Removed %s\n", path)
				return nil
			}

			n, err := st.Count(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Cleared %d records\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Delete the snapshot database files (use after a schema mismatch)")
	return cmd
}

func purgeSnapshot(ctx *commandContext, out io.Writer) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	var errs []error
	removed := 0
	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Remove(cfg.Cache.Path + suffix)
		switch {
		case err == nil:
			removed++
		case !errors.Is(err, os.ErrNotExist):
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	fmt.Fprintf(out, "Purged snapshot %s (%d files)\n", cfg.Cache.Path, removed)
	return nil
}
