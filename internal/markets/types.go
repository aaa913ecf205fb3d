package markets

import (
	"strings"
	"time"

	"github.com/jtlacci/hip3-dashboard/internal/hyperliquid"
	"github.com/shopspring/decimal"
)

// Market is one tradable asset on one DEX as fetched, before enrichment.
// Absent numeric fields stay nil; nothing is coerced to zero at this stage.
type Market struct {
	Asset                string
	MaxLeverage          *int64
	GrowthMode           *bool
	LastGrowthModeChange string
	Funding              *decimal.Decimal
	OpenInterest         *decimal.Decimal
	PrevDayPx            *decimal.Decimal
	DayNtlVlm            *decimal.Decimal
	MarkPx               *decimal.Decimal
	OraclePx             *decimal.Decimal
}

// Row is a Market joined with its DEX metadata and the derived fields the
// dashboard renders.
type Row struct {
	Dex             string           `json:"dex"`
	DexFullName     string           `json:"dex_full_name"`
	Deployer        string           `json:"deployer"`
	Asset           string           `json:"asset"`
	Ticker          string           `json:"ticker"`
	MarkPx          *decimal.Decimal `json:"mark_px"`
	OraclePx        *decimal.Decimal `json:"oracle_px"`
	PrevDayPx       *decimal.Decimal `json:"prev_day_px"`
	DayNtlVlm       *decimal.Decimal `json:"day_ntl_vlm"`
	OpenInterest    *decimal.Decimal `json:"open_interest"`
	OpenInterestUSD decimal.Decimal  `json:"open_interest_usd"`
	OiCap           *decimal.Decimal `json:"oi_cap,omitempty"`
	OiCapPct        *decimal.Decimal `json:"oi_cap_pct,omitempty"`
	Funding         *decimal.Decimal `json:"funding"`
	MaxLeverage     *int64           `json:"max_leverage"`
	GrowthMode      *bool            `json:"growth_mode"`
	ListingDate     *time.Time       `json:"listing_date,omitempty"`
	MarketAgeDays   *int64           `json:"market_age_days,omitempty"`
}

// Table is one aggregation cycle's output: the flat ordered row set plus the
// raw venue list for deployer/name lookups.
type Table struct {
	Rows  []Row                 `json:"rows"`
	Dexes []hyperliquid.PerpDex `json:"dexes"`
	AsOf  time.Time             `json:"as_of"`
}

// parseDecimal is the single parse-or-absent combinator: empty or
// unparseable numeric strings degrade to nil instead of raising.
func parseDecimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// tickerOf strips the DEX prefix from a namespaced asset id ("dex:COIN").
func tickerOf(asset string) string {
	if idx := strings.LastIndex(asset, ":"); idx >= 0 {
		return asset[idx+1:]
	}
	return asset
}
