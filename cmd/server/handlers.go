package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
	"github.com/root-daemon/saveme/internal/observability"
	"github.com/root-daemon/saveme/internal/storage"
)

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.hub.ServeWS)

	mux.HandleFunc("/api/market", s.handleMarket)
	mux.HandleFunc("/api/candles", s.handleCandles)
	mux.HandleFunc("/api/prices", s.handlePrices)
	mux.HandleFunc("/api/tokens", s.handleTokens)
	mux.HandleFunc("/api/tokens/", s.handleTokenByAddress)
	mux.HandleFunc("/api/rugpull", s.handleRugPull)
	mux.HandleFunc("/api/agents/toggle", s.handleToggleAgent)

	return mux
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status    string              `json:"status"`
	SessionID string              `json:"session_id"`
	Uptime    string              `json:"uptime"`
	Ticks     int                 `json:"ticks"`
	Price     float64             `json:"price"`
	Phase     domain.RugPullPhase `json:"phase"`
	Countdown *int                `json:"countdown,omitempty"`
	Clients   int                 `json:"stream_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.sim.Snapshot()

	s.mu.Lock()
	resp := StatusResponse{
		Status:    "running",
		SessionID: s.sessionID,
		Uptime:    time.Since(s.startedAt).String(),
		Ticks:     s.ticks,
		Price:     snap.CurrentPrice,
		Phase:     snap.Phase,
		Countdown: snap.Countdown,
		Clients:   s.hub.ClientCount(),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// MarketResponse is the JSON response for the /api/market endpoint.
type MarketResponse struct {
	Price     float64             `json:"price"`
	Phase     domain.RugPullPhase `json:"phase"`
	Countdown *int                `json:"countdown,omitempty"`
	Agents    []agentPayload      `json:"agents"`
	Trades    []tradePayload      `json:"trades"`
	Candles   []candlePayload     `json:"candles"`
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.sim.Snapshot()

	resp := MarketResponse{
		Price:     snap.CurrentPrice,
		Phase:     snap.Phase,
		Countdown: snap.Countdown,
		Agents:    make([]agentPayload, 0, len(snap.Agents)),
		Trades:    make([]tradePayload, 0, len(snap.Trades)),
		Candles:   make([]candlePayload, 0, len(snap.Candles)),
	}
	for _, a := range snap.Agents {
		resp.Agents = append(resp.Agents, agentPayload{
			ID:             a.ID,
			Name:           a.Name,
			Type:           string(a.Type),
			Strategy:       string(a.Strategy),
			Aggressiveness: a.Aggressiveness,
			Balance:        a.Balance,
			Tokens:         a.Tokens,
			Active:         a.Active,
		})
	}
	for _, t := range snap.Trades {
		resp.Trades = append(resp.Trades, tradePayload{
			ID:          t.TradeID,
			Side:        string(t.Side),
			Amount:      t.Amount,
			Price:       t.Price,
			TimestampMs: t.TimestampMs,
			AgentName:   t.AgentName,
		})
	}
	for _, c := range snap.Candles {
		resp.Candles = append(resp.Candles, candlePayload{
			Date:   c.Date.Format("2006-01-02"),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type agentPayload struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Strategy       string  `json:"strategy"`
	Aggressiveness int     `json:"aggressiveness"`
	Balance        float64 `json:"balance"`
	Tokens         float64 `json:"tokens"`
	Active         bool    `json:"active"`
}

type tradePayload struct {
	ID          string  `json:"id"`
	Side        string  `json:"side"`
	Amount      float64 `json:"amount"`
	Price       float64 `json:"price"`
	TimestampMs int64   `json:"timestamp_ms"`
	AgentName   string  `json:"agent_name"`
}

type candlePayload struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// handleCandles serves archived candles for a session. Accepts optional
// start/end query parameters in YYYY-MM-DD form; session defaults to
// the live one.
func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = s.sessionID
	}

	var (
		candles []*domain.Candle
		err     error
	)
	startStr, endStr := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if startStr != "" || endStr != "" {
		start, perr := time.Parse("2006-01-02", startStr)
		if perr != nil {
			http.Error(w, "invalid start date", http.StatusBadRequest)
			return
		}
		end, perr := time.Parse("2006-01-02", endStr)
		if perr != nil {
			http.Error(w, "invalid end date", http.StatusBadRequest)
			return
		}
		candles, err = s.stores.candleStore.GetByDateRange(r.Context(), sessionID, start, end)
	} else {
		candles, err = s.stores.candleStore.GetBySession(r.Context(), sessionID)
	}
	if err != nil {
		s.logger.Printf("Candle archive query failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]candlePayload, 0, len(candles))
	for _, c := range candles {
		out = append(out, candlePayload{
			Date:   c.Date.Format("2006-01-02"),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sessionID, "data": out})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.feed.Quotes(r.Context())})
}

// tokenPayload is the wire format for token registry records.
type tokenPayload struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	Supply      string `json:"supply"`
	ImageURL    string `json:"image_url,omitempty"`
	Creator     string `json:"creator"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

func toPayload(t *domain.TokenRecord) tokenPayload {
	return tokenPayload{
		Address:     t.Address,
		Name:        t.Name,
		Symbol:      t.Symbol,
		Decimals:    t.Decimals,
		Supply:      t.Supply,
		ImageURL:    t.ImageURL,
		Creator:     t.Creator,
		CreatedAtMs: t.CreatedAtMs,
	}
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tokens, err := s.stores.tokenStore.List(r.Context())
		if err != nil {
			s.logger.Printf("List tokens failed: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]tokenPayload, 0, len(tokens))
		for _, t := range tokens {
			out = append(out, toPayload(t))
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": out})

	case http.MethodPost:
		var in tokenPayload
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rec := &domain.TokenRecord{
			Address:     in.Address,
			Name:        in.Name,
			Symbol:      in.Symbol,
			Decimals:    in.Decimals,
			Supply:      in.Supply,
			ImageURL:    in.ImageURL,
			Creator:     in.Creator,
			CreatedAtMs: time.Now().UnixMilli(),
		}
		err := s.stores.tokenStore.Insert(r.Context(), rec)
		switch {
		case errors.Is(err, storage.ErrInvalidInput):
			http.Error(w, "address is required", http.StatusBadRequest)
		case errors.Is(err, storage.ErrDuplicateKey):
			http.Error(w, "token already exists", http.StatusConflict)
		case err != nil:
			s.logger.Printf("Insert token failed: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		default:
			s.metrics.TokensCreated.Inc()
			writeJSON(w, http.StatusCreated, toPayload(rec))
		}

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTokenByAddress(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimPrefix(r.URL.Path, "/api/tokens/")
	if address == "" || strings.Contains(address, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := s.stores.tokenStore.GetByAddress(r.Context(), address)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			s.logger.Printf("Get token failed: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toPayload(t))

	case http.MethodPatch:
		var in struct {
			ImageURL string `json:"image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		err := s.stores.tokenStore.UpdateImageURL(r.Context(), address, in.ImageURL)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			s.logger.Printf("Update token image failed: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRugPull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Flag set before the trigger so the tick loop attributes the phase
	// transition correctly. The loop clears it once the market is idle
	// again, so a refused trigger leaves no stale state behind.
	s.mu.Lock()
	s.manualTrigger = true
	s.mu.Unlock()

	if !s.sim.TriggerRugPull() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "rug pull already in progress"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (s *Server) handleToggleAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if !s.sim.ToggleAgent(in.AgentID) {
		http.Error(w, "unknown agent", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
