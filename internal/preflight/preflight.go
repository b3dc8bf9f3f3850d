package preflight

import (
	"context"
	"strings"

	"floravision/internal/config"
	"floravision/internal/recognition"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Failed counts results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if cfg.Detector.WeightsPath != "" {
		results = append(results, CheckWeights(cfg.Detector.WeightsPath))
	}

	det, err := recognition.NewDetector(cfg)
	if err != nil {
		results = append(results, Result{Name: "Detector", Detail: err.Error()})
	} else {
		results = append(results, CheckDetector(ctx, cfg.Detector.Backend, det, cfg.Detector.WeightsPath))
	}

	results = append(results, CheckGeocoding(ctx, cfg))
	if cfg.Cache.Persist {
		results = append(results, CheckSnapshot(cfg))
	}
	return results
}
