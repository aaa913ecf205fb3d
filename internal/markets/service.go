package markets

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jtlacci/hip3-dashboard/internal/hyperliquid"
	"github.com/jtlacci/hip3-dashboard/internal/listing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var oneHundred = decimal.NewFromInt(100)

// Service aggregates every market across every builder-deployed DEX into one
// flat table. Venue and market data are re-fetched in full on every call;
// only the listing-date resolver carries state between cycles.
type Service struct {
	client   *hyperliquid.Client
	resolver *listing.Resolver
	logger   *zap.SugaredLogger
}

func NewService(client *hyperliquid.Client, resolver *listing.Resolver, logger *zap.SugaredLogger) *Service {
	return &Service{
		client:   client,
		resolver: resolver,
		logger:   logger,
	}
}

// Aggregate discovers all DEXes, fetches each one's market set in parallel,
// derives the USD fields, merges in listing dates and sorts the result. A
// venue whose fetch fails contributes zero rows; zero venues or all fetches
// failing yields an empty table, not an error.
func (s *Service) Aggregate(ctx context.Context) (*Table, error) {
	now := time.Now().UTC()

	dexes, err := s.client.PerpDexs(ctx)
	if err != nil {
		return nil, err
	}
	if len(dexes) == 0 {
		return &Table{Rows: []Row{}, Dexes: dexes, AsOf: now}, nil
	}

	capLookup := buildCapLookup(dexes)

	type rawRow struct {
		row      Row
		fallback string
	}

	var (
		mu   sync.Mutex
		raws []rawRow
		wg   sync.WaitGroup
	)

	// One task per venue; collection order across venues is arrival order.
	for _, dex := range dexes {
		wg.Add(1)
		go func(dex hyperliquid.PerpDex) {
			defer wg.Done()

			mkts, err := s.fetchMarkets(ctx, dex.Name)
			if err != nil {
				s.logger.Warnw("Market fetch failed, venue contributes no rows",
					"dex", dex.Name,
					"error", err,
				)
				return
			}

			built := make([]rawRow, 0, len(mkts))
			for _, m := range mkts {
				built = append(built, rawRow{
					row:      buildRow(dex, m, capLookup),
					fallback: m.LastGrowthModeChange,
				})
			}

			mu.Lock()
			raws = append(raws, built...)
			mu.Unlock()
		}(dex)
	}
	wg.Wait()

	if len(raws) == 0 {
		return &Table{Rows: []Row{}, Dexes: dexes, AsOf: now}, nil
	}

	reqs := make([]listing.Request, 0, len(raws))
	for _, rr := range raws {
		reqs = append(reqs, listing.Request{Asset: rr.row.Asset, FallbackISO: rr.fallback})
	}
	dates := s.resolver.ResolveAll(ctx, reqs)

	rows := make([]Row, 0, len(raws))
	for _, rr := range raws {
		row := rr.row
		if ts := dates[row.Asset]; ts != nil {
			row.ListingDate = ts
			age := int64(now.Sub(*ts) / (24 * time.Hour))
			row.MarketAgeDays = &age
		}
		rows = append(rows, row)
	}

	sortRows(rows)
	return &Table{Rows: rows, Dexes: dexes, AsOf: now}, nil
}

// fetchMarkets zips the universe and pricing contexts of one venue strictly
// by index. A missing or null context is an all-absent context, not an
// error; delisted assets are dropped.
func (s *Service) fetchMarkets(ctx context.Context, dex string) ([]Market, error) {
	res, err := s.client.MetaAndAssetCtxs(ctx, dex)
	if err != nil {
		return nil, err
	}

	mkts := make([]Market, 0, len(res.Universe))
	for i, meta := range res.Universe {
		if meta.IsDelisted {
			continue
		}

		var actx hyperliquid.AssetCtx
		if i < len(res.AssetCtxs) && res.AssetCtxs[i] != nil {
			actx = *res.AssetCtxs[i]
		}

		mkts = append(mkts, Market{
			Asset:                meta.Name,
			MaxLeverage:          meta.MaxLeverage,
			GrowthMode:           meta.GrowthMode,
			LastGrowthModeChange: meta.LastGrowthModeChangeTime,
			Funding:              parseDecimal(actx.Funding),
			OpenInterest:         parseDecimal(actx.OpenInterest),
			PrevDayPx:            parseDecimal(actx.PrevDayPx),
			DayNtlVlm:            parseDecimal(actx.DayNtlVlm),
			MarkPx:               parseDecimal(actx.MarkPx),
			OraclePx:             parseDecimal(actx.OraclePx),
		})
	}
	return mkts, nil
}

// buildCapLookup flattens every venue's cap-pair list into one asset-id
// lookup. Short pairs and non-numeric caps are skipped silently.
func buildCapLookup(dexes []hyperliquid.PerpDex) map[string]decimal.Decimal {
	caps := make(map[string]decimal.Decimal)
	for _, dex := range dexes {
		for _, pair := range dex.AssetToStreamingOiCap {
			if pair.Asset == "" {
				continue
			}
			if d := parseDecimal(pair.Cap); d != nil {
				caps[pair.Asset] = *d
			}
		}
	}
	return caps
}

func buildRow(dex hyperliquid.PerpDex, m Market, caps map[string]decimal.Decimal) Row {
	// USD open interest treats absent inputs as zero for this one derived
	// field; the underlying fields stay absent.
	oi := decimal.Zero
	if m.OpenInterest != nil {
		oi = *m.OpenInterest
	}
	mark := decimal.Zero
	if m.MarkPx != nil {
		mark = *m.MarkPx
	}
	oiUSD := oi.Mul(mark)

	fullName := dex.FullName
	if fullName == "" {
		fullName = dex.Name
	}

	row := Row{
		Dex:             dex.Name,
		DexFullName:     fullName,
		Deployer:        dex.Deployer,
		Asset:           m.Asset,
		Ticker:          tickerOf(m.Asset),
		MarkPx:          m.MarkPx,
		OraclePx:        m.OraclePx,
		PrevDayPx:       m.PrevDayPx,
		DayNtlVlm:       m.DayNtlVlm,
		OpenInterest:    m.OpenInterest,
		OpenInterestUSD: oiUSD,
		Funding:         m.Funding,
		MaxLeverage:     m.MaxLeverage,
		GrowthMode:      m.GrowthMode,
	}

	if c, ok := caps[m.Asset]; ok {
		capVal := c
		row.OiCap = &capVal
		if capVal.IsPositive() {
			pct := oiUSD.Div(capVal).Mul(oneHundred)
			row.OiCapPct = &pct
		}
	}
	return row
}

// sortRows orders by venue id ascending, then 24h notional volume
// descending. The sort is stable so ties keep original fetch order; rows
// with unknown volume sink to the bottom of their venue.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Dex != rows[j].Dex {
			return rows[i].Dex < rows[j].Dex
		}
		a, b := rows[i].DayNtlVlm, rows[j].DayNtlVlm
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.GreaterThan(*b)
	})
}
