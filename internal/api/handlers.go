package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jtlacci/hip3-dashboard/internal/config"
	"github.com/jtlacci/hip3-dashboard/internal/markets"
	"github.com/jtlacci/hip3-dashboard/internal/store"
	"github.com/jtlacci/hip3-dashboard/internal/ws"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TableSource yields the most recent aggregated table, nil before the first
// refresh lands.
type TableSource interface {
	Latest() *markets.Table
}

// MetricsInterface defines the interface for metrics recording
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

type Handler struct {
	tables  TableSource
	cache   *store.Cache
	config  *config.Config
	logger  *zap.SugaredLogger
	metrics MetricsInterface
	hub     *ws.Hub
}

func NewHandler(tables TableSource, cache *store.Cache, config *config.Config, logger *zap.SugaredLogger, metrics MetricsInterface, hub *ws.Hub) *Handler {
	return &Handler{
		tables:  tables,
		cache:   cache,
		config:  config,
		logger:  logger,
		metrics: metrics,
		hub:     hub,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthDTO{Status: "ok"})
}

// Readyz reports ready once the first aggregation cycle has produced a
// table. An empty table still counts as ready: "no data" is a valid state.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.tables.Latest() == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, HealthDTO{Status: "starting"})
		return
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE", err.Error())
			return
		}
	}
	h.writeJSON(w, http.StatusOK, HealthDTO{Status: "ok"})
}

// ListMarkets handles GET /v1/markets. The optional dex query parameter
// filters by venue id or display name, mirroring the dashboard's filter.
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, http.StatusOK, time.Since(start))
	}()

	table := h.tables.Latest()
	if table == nil {
		h.writeJSON(w, http.StatusOK, MarketsResponse{Data: []markets.Row{}})
		return
	}

	rows := table.Rows
	if dex := r.URL.Query().Get("dex"); dex != "" {
		filtered := make([]markets.Row, 0, len(rows))
		for _, row := range rows {
			if row.Dex == dex || row.DexFullName == dex {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	h.writeJSON(w, http.StatusOK, MarketsResponse{Data: rows, AsOf: table.AsOf.Unix()})
}

// NewestMarkets handles GET /v1/markets/newest: rows with a known listing
// date, newest first.
func (h *Handler) NewestMarkets(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, http.StatusOK, time.Since(start))
	}()

	limit := 5
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	table := h.tables.Latest()
	if table == nil {
		h.writeJSON(w, http.StatusOK, MarketsResponse{Data: []markets.Row{}})
		return
	}

	listed := make([]markets.Row, 0, len(table.Rows))
	for _, row := range table.Rows {
		if row.ListingDate != nil {
			listed = append(listed, row)
		}
	}
	sort.SliceStable(listed, func(i, j int) bool {
		return listed[i].ListingDate.After(*listed[j].ListingDate)
	})
	if len(listed) > limit {
		listed = listed[:limit]
	}

	h.writeJSON(w, http.StatusOK, MarketsResponse{Data: listed, AsOf: table.AsOf.Unix()})
}

// ListDexes handles GET /v1/dexes: the venue list with per-venue rollups.
func (h *Handler) ListDexes(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, http.StatusOK, time.Since(start))
	}()

	table := h.tables.Latest()
	if table == nil {
		h.writeJSON(w, http.StatusOK, DexesResponse{Data: []DexDTO{}})
		return
	}

	type rollup struct {
		markets int
		volume  decimal.Decimal
		oiUSD   decimal.Decimal
	}
	rollups := make(map[string]*rollup, len(table.Dexes))
	for _, row := range table.Rows {
		ru := rollups[row.Dex]
		if ru == nil {
			ru = &rollup{}
			rollups[row.Dex] = ru
		}
		ru.markets++
		if row.DayNtlVlm != nil {
			ru.volume = ru.volume.Add(*row.DayNtlVlm)
		}
		ru.oiUSD = ru.oiUSD.Add(row.OpenInterestUSD)
	}

	dtos := make([]DexDTO, 0, len(table.Dexes))
	for _, dex := range table.Dexes {
		fullName := dex.FullName
		if fullName == "" {
			fullName = dex.Name
		}
		dto := DexDTO{
			Name:     dex.Name,
			FullName: fullName,
			Deployer: dex.Deployer,
		}
		if ru := rollups[dex.Name]; ru != nil {
			dto.Markets = ru.markets
			dto.DayNtlVlm = ru.volume
			dto.OpenInterestUSD = ru.oiUSD
		}
		dtos = append(dtos, dto)
	}

	h.writeJSON(w, http.StatusOK, DexesResponse{Data: dtos, AsOf: table.AsOf.Unix()})
}

// GetSummary handles GET /v1/summary: the dashboard's headline numbers.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, http.StatusOK, time.Since(start))
	}()

	table := h.tables.Latest()
	if table == nil {
		h.writeJSON(w, http.StatusOK, SummaryDTO{})
		return
	}

	seen := make(map[string]struct{})
	var volume, oiUSD decimal.Decimal
	for _, row := range table.Rows {
		seen[row.Dex] = struct{}{}
		if row.DayNtlVlm != nil {
			volume = volume.Add(*row.DayNtlVlm)
		}
		oiUSD = oiUSD.Add(row.OpenInterestUSD)
	}

	h.writeJSON(w, http.StatusOK, SummaryDTO{
		TotalDexes:           len(seen),
		TotalMarkets:         len(table.Rows),
		TotalDayNtlVlm:       volume,
		TotalOpenInterestUSD: oiUSD,
		AsOf:                 table.AsOf.Unix(),
	})
}

// HandleWebSocket handles GET /v1/ws: a one-way stream of refreshed tables.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := ErrorResponse{
		Code:    code,
		Message: message,
	}
	json.NewEncoder(w).Encode(err)
}
