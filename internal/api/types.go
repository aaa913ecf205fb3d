package api

import (
	"github.com/jtlacci/hip3-dashboard/internal/markets"
	"github.com/shopspring/decimal"
)

type MarketsResponse struct {
	Data []markets.Row `json:"data"`
	AsOf int64         `json:"as_of"`
}

type SummaryDTO struct {
	TotalDexes           int             `json:"total_dexes"`
	TotalMarkets         int             `json:"total_markets"`
	TotalDayNtlVlm       decimal.Decimal `json:"total_day_ntl_vlm"`
	TotalOpenInterestUSD decimal.Decimal `json:"total_open_interest_usd"`
	AsOf                 int64           `json:"as_of"`
}

type DexDTO struct {
	Name            string          `json:"name"`
	FullName        string          `json:"full_name"`
	Deployer        string          `json:"deployer"`
	Markets         int             `json:"markets"`
	DayNtlVlm       decimal.Decimal `json:"day_ntl_vlm"`
	OpenInterestUSD decimal.Decimal `json:"open_interest_usd"`
}

type DexesResponse struct {
	Data []DexDTO `json:"data"`
	AsOf int64    `json:"as_of"`
}

type HealthDTO struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
