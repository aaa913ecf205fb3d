package hyperliquid

import (
	"bytes"
	"encoding/json"
)

// PerpDex describes one builder-deployed market venue.
type PerpDex struct {
	Name                  string      `json:"name"`
	FullName              string      `json:"fullName"`
	Deployer              string      `json:"deployer"`
	AssetToStreamingOiCap []OiCapPair `json:"assetToStreamingOiCap"`
}

// OiCapPair is the wire form ["asset", cap]. Caps arrive as strings or bare
// numbers depending on deployment age; short or malformed pairs decode to a
// zero value and are skipped by consumers.
type OiCapPair struct {
	Asset string
	Cap   string
}

func (p *OiCapPair) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) < 2 {
		return nil
	}
	if err := json.Unmarshal(parts[0], &p.Asset); err != nil {
		return nil
	}
	var capStr string
	if err := json.Unmarshal(parts[1], &capStr); err == nil {
		p.Cap = capStr
		return nil
	}
	p.Cap = string(bytes.TrimSpace(parts[1]))
	return nil
}

// AssetMeta is the universe entry for one tradable asset.
type AssetMeta struct {
	Name                     string `json:"name"`
	MaxLeverage              *int64 `json:"maxLeverage"`
	GrowthMode               *bool  `json:"growthMode"`
	LastGrowthModeChangeTime string `json:"lastGrowthModeChangeTime"`
	IsDelisted               bool   `json:"isDelisted"`
}

// AssetCtx is the pricing context for one asset. All numeric fields are wire
// strings; absence is preserved as "".
type AssetCtx struct {
	Funding      string `json:"funding"`
	OpenInterest string `json:"openInterest"`
	PrevDayPx    string `json:"prevDayPx"`
	DayNtlVlm    string `json:"dayNtlVlm"`
	MarkPx       string `json:"markPx"`
	OraclePx     string `json:"oraclePx"`
}

// MetaAndAssetCtxs is the positional two-element response of the
// metaAndAssetCtxs operation: [{"universe": [...]}, [ctx, ...]].
type MetaAndAssetCtxs struct {
	Universe  []AssetMeta
	AssetCtxs []*AssetCtx
}

func (m *MetaAndAssetCtxs) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) > 0 {
		var meta struct {
			Universe []AssetMeta `json:"universe"`
		}
		// A non-object meta slot is treated as an empty universe.
		if err := json.Unmarshal(parts[0], &meta); err == nil {
			m.Universe = meta.Universe
		}
	}
	if len(parts) > 1 {
		if err := json.Unmarshal(parts[1], &m.AssetCtxs); err != nil {
			m.AssetCtxs = nil
		}
	}
	return nil
}

// Candle is one OHLCV bar. Open time is milliseconds since epoch, UTC.
type Candle struct {
	OpenTimeMs  int64  `json:"t"`
	CloseTimeMs int64  `json:"T"`
	Symbol      string `json:"s"`
	Interval    string `json:"i"`
	Open        string `json:"o"`
	Close       string `json:"c"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Volume      string `json:"v"`
	Trades      int64  `json:"n"`
}
