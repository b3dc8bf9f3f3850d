package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"floravision/internal/config"
	"floravision/internal/recognition"
)

func newAnnotateCommand(ctx *commandContext) *cobra.Command {
	var output string
	var thickness int
	var fontScale float64

	cmd := &cobra.Command{
		Use:   "annotate <image>",
		Short: "Draw detection boxes and labels onto a copy of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if src, err = filepath.Abs(src); err != nil {
				return err
			}
			dst := strings.TrimSpace(output)
			if dst == "" {
				ext := filepath.Ext(src)
				dst = strings.TrimSuffix(src, ext) + "_annotated" + ext
			} else if dst, err = config.ExpandPath(dst); err != nil {
				return err
			}
			if filepath.Clean(dst) == src {
				return errors.New("output must differ from the source image")
			}

			runCtx, cancel := signalContext(cmd)
			defer cancel()

			rt, err := ctx.openRuntime(runCtx, runtimeOptions{loadDetector: true, snapshot: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			rec, err := rt.enricher.Open(runCtx, src)
			if err != nil {
				return err
			}
			if rec.RecognitionError != "" {
				return fmt.Errorf("recognition failed: %s", rec.RecognitionError)
			}

			opts := recognition.DefaultVisualizeOptions()
			if thickness > 0 {
				opts.Thickness = thickness
			}
			if fontScale > 0 {
				opts.FontScale = fontScale
			}
			if err := recognition.Annotate(src, dst, rec.Detections, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d detections)\n", dst, len(rec.Detections))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Annotated output path (default <image>_annotated.<ext>)")
	cmd.Flags().IntVar(&thickness, "thickness", 0, "Box line thickness in pixels")
	cmd.Flags().Float64Var(&fontScale, "font-scale", 0, "Label text scale")
	return cmd
}
