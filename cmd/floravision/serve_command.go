package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"floravision/internal/api"
	"floravision/internal/enrichment"
	"floravision/internal/logging"
	"floravision/internal/notifications"
	"floravision/internal/preflight"
	"floravision/internal/scheduler"
	"floravision/internal/services"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signalContext(cmd)
			defer cancel()

			rt, err := ctx.openRuntime(runCtx, runtimeOptions{loadDetector: true, snapshot: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.store != nil {
				records, err := rt.store.List(runCtx)
				if err != nil {
					return err
				}
				if err := rt.enricher.Restore(runCtx, records); err != nil {
					return err
				}
				rt.logger.Info("snapshot restored",
					logging.String("path", rt.store.Path()),
					logging.Int("records", rt.enricher.Len(runCtx)),
				)
			}

			if bind == "" {
				bind = rt.cfg.Paths.APIBind
			}
			cfg := rt.cfg
			server := api.New(bind, rt.enricher, rt.logger,
				api.WithToken(cfg.Paths.APIToken),
				api.WithLogPath(cfg.LogPath()),
				api.WithChecks(func(checkCtx context.Context) []preflight.Result {
					return preflight.RunAll(checkCtx, cfg)
				}),
			)
			if err := server.Start(runCtx); err != nil {
				return err
			}
			defer server.Stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", server.Addr())

			events, unsubscribe := rt.enricher.Subscribe(64)
			defer unsubscribe()
			for {
				select {
				case <-runCtx.Done():
					rt.logger.Info("api server stopping")
					return nil
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					notifyEvent(rt, ev)
				}
			}
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override paths.api_bind")
	return cmd
}

// notifyEvent forwards batch completions and task failures to ntfy.
func notifyEvent(rt *runtime, ev scheduler.Event) {
	switch ev.Kind {
	case scheduler.EventFailed:
		if errors.Is(ev.Err, services.ErrSuperseded) {
			return
		}
		publish(rt, notifications.EventTaskFailed, notifications.Payload{
			"category": string(ev.Category),
			"path":     ev.Path,
			"error":    ev.Err,
		})
	case scheduler.EventCompleted:
		report, ok := ev.Result.(enrichment.BatchReport)
		if !ok || ev.Category != scheduler.CategoryBatch {
			return
		}
		publish(rt, notifications.EventBatchCompleted, notifications.Payload{
			"processed":    report.TotalProcessed,
			"withLocation": report.WithLocationCount,
			"resolved":     report.AddressResolvedCount,
			"failed":       len(report.Failures),
			"duration":     report.Elapsed,
		})
	}
}
