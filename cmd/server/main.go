// Package main runs the live market simulator:
// - Simulation (continuous): agent trading, candles, rug-pull scheduler
// - Stream: WebSocket fan-out of per-tick market updates
// - HTTP API: token registry, reference prices, status, metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
	"github.com/root-daemon/saveme/internal/market"
	"github.com/root-daemon/saveme/internal/observability"
	"github.com/root-daemon/saveme/internal/pricefeed"
	"github.com/root-daemon/saveme/internal/storage"
	chstore "github.com/root-daemon/saveme/internal/storage/clickhouse"
	"github.com/root-daemon/saveme/internal/storage/memory"
	"github.com/root-daemon/saveme/internal/storage/migrations"
	pgstore "github.com/root-daemon/saveme/internal/storage/postgres"
	"github.com/root-daemon/saveme/internal/stream"
)

// archiveEvery is how many ticks pass between candle archive flushes.
const archiveEvery = 100

// Server holds all components of the service.
type Server struct {
	sim     *market.Simulation
	hub     *stream.Hub
	feed    *pricefeed.Feed
	stores  *allStores
	metrics *observability.Metrics
	logger  *log.Logger

	sessionID    string
	tickInterval time.Duration

	// State
	mu            sync.Mutex
	startedAt     time.Time
	ticks         int
	lastPhase     domain.RugPullPhase
	manualTrigger bool
	pending       []domain.Candle
}

// allStores holds all storage implementations.
type allStores struct {
	tokenStore  storage.TokenStore
	candleStore storage.CandleStore
}

func main() {
	loadEnvFile()

	addr := flag.String("addr", envOr("SERVER_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	tickInterval := flag.Duration("tick-interval", 2*time.Second, "Wall-clock time between simulation ticks")
	initialPrice := flag.Float64("initial-price", 1784.57, "Starting token price")
	cmcAPIKey := flag.String("cmc-api-key", os.Getenv("COIN_BACK_API_KEY"), "CoinMarketCap API key for reference prices")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	sim := market.New(market.DefaultConfig(*initialPrice))
	hub := stream.NewHub(log.New(os.Stdout, "[stream] ", log.LstdFlags))
	feed := pricefeed.NewFeed(
		pricefeed.NewClient(*cmcAPIKey),
		pricefeed.WithLogger(log.New(os.Stdout, "[pricefeed] ", log.LstdFlags)),
		pricefeed.WithRefreshHook(func(outcome string) {
			metrics.QuoteRefreshes.WithLabelValues(outcome).Inc()
		}),
	)

	server := &Server{
		sim:          sim,
		hub:          hub,
		feed:         feed,
		stores:       stores,
		metrics:      metrics,
		logger:       logger,
		sessionID:    fmt.Sprintf("session-%d", time.Now().UnixMilli()),
		tickInterval: *tickInterval,
		startedAt:    time.Now(),
		lastPhase:    domain.RugPullIdle,
	}

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go hub.Run(ctx)
	sim.Start(ctx)
	logger.Printf("Simulation %s started at price %.2f", server.sessionID, *initialPrice)

	go server.runTickLoop(ctx)

	httpSrv := &http.Server{Addr: *addr, Handler: server.routes()}
	go func() {
		logger.Printf("Starting HTTP server on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown error: %v", err)
	}

	server.flushArchive(shutdownCtx)
	close(done)
	logger.Println("Shutdown complete")
}

// createStores creates the token registry and candle archive backends.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			tokenStore:  memory.NewTokenStore(),
			candleStore: memory.NewCandleStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	stores := &allStores{
		tokenStore:  pgstore.NewTokenStore(pool),
		candleStore: chstore.NewCandleStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// runTickLoop advances the simulation on a wall-clock ticker and fans
// each result out to metrics, the stream hub, and the candle archive.
func (s *Server) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Server) tick(ctx context.Context) {
	res := s.sim.Tick()

	s.metrics.RecordTick(res.NewPrice, res.Candle.Volume)
	for _, t := range res.NewTrades {
		s.metrics.RecordTrade(string(t.Side))
	}
	s.metrics.StreamClients.Set(float64(s.hub.ClientCount()))

	snap := s.sim.Snapshot()

	s.mu.Lock()
	s.ticks++
	s.pending = append(s.pending, res.Candle)
	flush := len(s.pending) >= archiveEvery

	msgType := "tick"
	if res.Phase != s.lastPhase && res.Phase == domain.RugPullSequence {
		msgType = "rugpull"
		source := "scheduled"
		if s.manualTrigger {
			source = "manual"
		}
		s.metrics.RecordRugPull(source)
		s.logger.Printf("Rug pull running (%s) at price %.6f", source, res.NewPrice)
	}
	if res.Phase == domain.RugPullIdle {
		s.manualTrigger = false
	}
	s.lastPhase = res.Phase
	s.mu.Unlock()

	s.hub.Broadcast(stream.Update{
		Type:        msgType,
		Price:       res.NewPrice,
		PriceChange: res.PriceChange,
		Volume:      res.Candle.Volume,
		Phase:       res.Phase,
		Countdown:   snap.Countdown,
		Candle:      &res.Candle,
		Trades:      res.NewTrades,
	})

	if flush {
		s.flushArchive(ctx)
	}
}

// flushArchive writes buffered candles to the candle store.
func (s *Server) flushArchive(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	candles := make([]*domain.Candle, len(batch))
	for i := range batch {
		candles[i] = &batch[i]
	}
	if err := s.stores.candleStore.InsertBulk(ctx, s.sessionID, candles); err != nil {
		s.logger.Printf("Candle archive flush failed: %v", err)
		return
	}
	s.metrics.CandlesArchived.Add(float64(len(candles)))
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
