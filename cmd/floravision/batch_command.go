package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"floravision/internal/enrichment"
	"floravision/internal/logging"
	"floravision/internal/notifications"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var recursive bool

	cmd := &cobra.Command{
		Use:   "batch <dir|images...>",
		Short: "Enrich many images and resolve their addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := collectImages(args, recursive)
			if err != nil {
				return err
			}

			runCtx, cancel := signalContext(cmd)
			defer cancel()

			rt, err := ctx.openRuntime(runCtx, runtimeOptions{loadDetector: true, snapshot: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			progress := newProgressPrinter(cmd.ErrOrStderr())
			events, unsubscribe := rt.enricher.Subscribe(256)
			followDone := make(chan struct{})
			go func() {
				defer close(followDone)
				progress.follow(events)
			}()

			report, err := rt.enricher.Batch(runCtx, paths)
			unsubscribe()
			<-followDone
			progress.finish()
			if err != nil {
				publish(rt, notifications.EventTaskFailed, notifications.Payload{
					"category": "batch",
					"error":    err,
				})
				return err
			}

			publish(rt, notifications.EventBatchCompleted, notifications.Payload{
				"processed":    report.TotalProcessed,
				"withLocation": report.WithLocationCount,
				"resolved":     report.AddressResolvedCount,
				"failed":       len(report.Failures),
				"duration":     report.Elapsed,
			})

			if asJSON {
				return writeJSON(cmd, report)
			}
			writeBatchReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the batch report as JSON")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	return cmd
}

func writeBatchReport(out io.Writer, report enrichment.BatchReport) {
	rows := [][]string{
		{"Processed", strconv.Itoa(report.TotalProcessed)},
		{"With location", strconv.Itoa(report.WithLocationCount)},
		{"Address resolved", strconv.Itoa(report.AddressResolvedCount)},
		{"Failures", strconv.Itoa(len(report.Failures))},
		{"Elapsed", report.Elapsed.Round(time.Millisecond).String()},
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		title:   "Batch summary",
		headers: []string{"Metric", "Value"},
		aligns:  []columnAlignment{alignLeft, alignRight},
	}, rows))

	if len(report.Failures) == 0 {
		return
	}
	failures := make([][]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, []string{f.Path, f.Category, f.Kind, f.Error})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		title:   "Failures",
		headers: []string{"Image", "Stage", "Kind", "Error"},
	}, failures))
}

// publish sends a notification without letting delivery problems fail the command.
func publish(rt *runtime, event notifications.Event, payload notifications.Payload) {
	notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.notifier.Publish(notifyCtx, event, payload); err != nil {
		logging.WarnWithContext(rt.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no push notification was delivered"),
		)
	}
}
