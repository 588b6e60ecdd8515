// Package etl drives a full crawl: every routable endpoint in the
// catalog is downloaded and converted by a bounded worker pool. Unit
// failures are logged and counted, never fatal, so one broken
// endpoint cannot sink the remaining hundreds.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opendata-br/govetl/internal/config"
	"github.com/opendata-br/govetl/internal/convert"
	"github.com/opendata-br/govetl/internal/logging"
	"github.com/opendata-br/govetl/internal/metrics"
	"github.com/opendata-br/govetl/internal/storage"
)

// Downloader fetches one URL into a local file and reports the bytes
// written. *fetch.Client is the production implementation.
type Downloader interface {
	Download(ctx context.Context, url, dest string) (int64, error)
}

// Unit is one endpoint to download and convert.
type Unit struct {
	Ref      storage.UnitRef
	URL      string
	RootPath string
}

// unitResult reports one processed unit back to the collector.
type unitResult struct {
	Unit    Unit
	Skipped bool
	Err     error
}

// Summary aggregates a finished run.
type Summary struct {
	Processed int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
}

// Runner executes a crawl over a catalog.
type Runner struct {
	cfg        config.Config
	catalog    *config.Catalog
	client     Downloader
	converter  *convert.Converter
	checkpoint CheckpointManager
	log        *slog.Logger
}

// NewRunner wires a runner from its collaborators.
func NewRunner(cfg config.Config, cat *config.Catalog, client Downloader, conv *convert.Converter, cp CheckpointManager) *Runner {
	return &Runner{
		cfg:        cfg,
		catalog:    cat,
		client:     client,
		converter:  conv,
		checkpoint: cp,
		log:        logging.Component("runner"),
	}
}

// Units expands the catalog into the list of processable endpoints.
// Routes with unresolved path placeholders (a literal '{') are left
// out; they need parameters the catalog does not carry.
func (r *Runner) Units() ([]Unit, int) {
	var units []Unit
	skipped := 0

	for apiName, api := range r.catalog.APIs {
		for groupName, group := range api.Endpoints {
			for key, route := range group.Routes {
				if strings.Contains(route, "{") {
					r.log.Debug("skipping parameterized route",
						"api", apiName, "group", groupName, "key", key, "route", route)
					skipped++
					continue
				}
				url, err := r.catalog.ResolveURL(apiName, groupName, key)
				if err != nil {
					// Units expands the same catalog ResolveURL reads;
					// a miss here means a concurrent mutation.
					continue
				}
				units = append(units, Unit{
					Ref:      storage.UnitRef{API: apiName, Group: groupName, Key: key},
					URL:      url,
					RootPath: group.RootPath,
				})
			}
		}
	}

	// Map iteration order is random; sort for stable logs and fair
	// checkpoint resume points.
	sort.Slice(units, func(i, j int) bool {
		return units[i].Ref.String() < units[j].Ref.String()
	})
	return units, skipped
}

// Run processes every unit and returns the run summary. Per-unit
// errors are recorded, not returned; the error return covers only
// context cancellation.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	runID := uuid.New().String()

	units, placeholderSkips := r.Units()
	log := r.log.With("run_id", runID)
	log.Info("starting run",
		"units", len(units),
		"parameterized_skipped", placeholderSkips,
		"workers", r.cfg.Perf.Workers,
	)

	workQueue := make(chan Unit)
	results := make(chan unitResult)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Perf.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.workerLoop(ctx, workerID, workQueue, results)
		}(i)
	}

	go func() {
		defer close(workQueue)
		for _, u := range units {
			select {
			case <-ctx.Done():
				return
			case workQueue <- u:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := Summary{Skipped: placeholderSkips}
	for res := range results {
		switch {
		case res.Err != nil:
			summary.Failed++
			log.Error("unit failed", "unit", res.Unit.Ref.String(), "error", res.Err)
		case res.Skipped:
			summary.Skipped++
		default:
			summary.Processed++
		}
	}
	summary.Elapsed = time.Since(started)

	log.Info("run finished",
		"processed", summary.Processed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"elapsed", summary.Elapsed.Round(time.Millisecond).String(),
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// workerLoop drains the queue, processing one unit at a time.
func (r *Runner) workerLoop(ctx context.Context, workerID int, queue <-chan Unit, results chan<- unitResult) {
	for unit := range queue {
		select {
		case <-ctx.Done():
			return
		default:
		}

		skipped, err := r.processUnit(ctx, workerID, unit)
		results <- unitResult{Unit: unit, Skipped: skipped, Err: err}
	}
}

// processUnit downloads one endpoint and converts it to parquet.
func (r *Runner) processUnit(ctx context.Context, workerID int, unit Unit) (skipped bool, err error) {
	correlationID := logging.GenerateCorrelationID()
	log := logging.UnitLogger(correlationID, unit.Ref.API, unit.Ref.Group, unit.Ref.Key).
		With("worker_id", workerID)
	labels := metrics.Labels{API: unit.Ref.API, Group: unit.Ref.Group}

	if r.checkpoint.Done(unit.Ref) {
		log.Info("skipping unit (checkpoint)")
		if m := metrics.Get(); m != nil {
			m.IncUnitsSkipped(labels)
		}
		return true, nil
	}

	log.Info("processing unit", "url", unit.URL)

	rawPath := filepath.Join(r.cfg.DataDir, unit.Ref.API, unit.Ref.Group, unit.Ref.RawName())

	downloadStart := time.Now()
	bytesIn, err := r.client.Download(ctx, unit.URL, rawPath)
	if err != nil {
		if m := metrics.Get(); m != nil {
			m.IncUnitsFailed(labels)
			m.IncStageErrors("download")
		}
		return false, fmt.Errorf("download: %w", err)
	}
	if m := metrics.Get(); m != nil {
		m.ObserveDownloadDuration(labels, time.Since(downloadStart).Seconds())
	}
	log.Debug("downloaded", "bytes", bytesIn, "duration_ms", time.Since(downloadStart).Milliseconds())

	opts := convert.Options{
		RootPath:    unit.RootPath,
		Compression: r.cfg.Convert.Compression,
		Statistics:  r.cfg.Convert.Statistics,
		SampleSize:  r.cfg.Convert.SampleSize,
		SourceURL:   unit.URL,
	}

	convertStart := time.Now()
	result, err := r.converter.Convert(ctx, rawPath, unit.Ref, opts)
	if err != nil {
		if m := metrics.Get(); m != nil {
			m.IncUnitsFailed(labels)
			m.IncStageErrors("convert")
		}
		return false, fmt.Errorf("convert: %w", err)
	}
	elapsed := time.Since(convertStart)

	if m := metrics.Get(); m != nil {
		m.ObserveConvertDuration(labels, elapsed.Seconds())
	}

	if !result.Written {
		// Empty payload: nothing to publish, raw file kept for
		// inspection. Counted as skipped, and deliberately not
		// checkpointed so a re-run retries the endpoint.
		log.Warn("unit produced no rows, keeping raw file")
		if m := metrics.Get(); m != nil {
			m.IncUnitsSkipped(labels)
		}
		return true, nil
	}

	if m := metrics.Get(); m != nil {
		m.IncUnitsProcessed(labels)
		m.AddRowsWritten(labels, float64(result.Shape.Rows))
		m.AddBytesWritten(labels, float64(result.Bytes))
	}

	if err := r.checkpoint.MarkDone(unit.Ref); err != nil {
		log.Warn("failed to save checkpoint", "error", err)
	}

	log.Info("unit converted",
		"rows", result.Shape.Rows,
		"cols", result.Shape.Cols,
		"bytes", result.Bytes,
		"checksum", result.Checksum,
		"duration_ms", elapsed.Milliseconds(),
	)
	return false, nil
}
