// Package main runs a headless simulation session: N ticks, optional
// forced rug pull, then a Markdown report plus CSV exports.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/root-daemon/saveme/internal/market"
	"github.com/root-daemon/saveme/internal/reporting"
)

func main() {
	ticks := flag.Int("ticks", 250, "Number of ticks to simulate")
	seed := flag.Int64("seed", 0, "Random seed (0 = time-based)")
	initialPrice := flag.Float64("initial-price", 1784.57, "Starting token price")
	rugPullAt := flag.Int("rug-pull-at", -1, "Tick at which to force a rug pull (-1 = never)")
	outputDir := flag.String("output-dir", "simulate-output", "Directory for report and CSV files")

	flag.Parse()

	logger := log.New(os.Stdout, "[simulate] ", log.LstdFlags)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	logger.Printf("Running %d ticks with seed %d", *ticks, *seed)

	cfg := market.DefaultConfig(*initialPrice)
	cfg.AutoRugPull = false
	cfg.Rand = rand.New(rand.NewSource(*seed))
	cfg.Logger = logger

	sim := market.New(cfg)
	sim.Start(nil)

	sessionID := fmt.Sprintf("sim-%d", *seed)
	collector := reporting.NewCollector(sessionID)

	for i := 0; i < *ticks; i++ {
		if i == *rugPullAt {
			price := sim.Snapshot().CurrentPrice
			if sim.TriggerRugPull() {
				collector.ObserveRugPull("manual", price)
				logger.Printf("Rug pull forced at tick %d, price %.6f", i, price)
			}
		}
		collector.ObserveTick(sim.Tick())
	}

	snap := sim.Snapshot()
	report := collector.Build(snap, time.Now())

	if err := writeOutputs(*outputDir, report, snap); err != nil {
		logger.Fatalf("Failed to write outputs: %v", err)
	}

	logger.Printf("Done: %d trades, close %.6f, %d rug pulls, outputs in %s",
		report.Summary.TradeCount, report.Summary.ClosePrice, len(report.RugPulls), *outputDir)
}

func writeOutputs(dir string, report *reporting.Report, snap market.Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := map[string]string{
		"report.md":   reporting.RenderMarkdown(report),
		"candles.csv": reporting.RenderCandlesCSV(snap.Candles),
		"agents.csv":  reporting.RenderAgentsCSV(report.Agents),
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
