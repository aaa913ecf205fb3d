package hyperliquid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOiCapPairDecodesStringCap(t *testing.T) {
	var p OiCapPair
	require.NoError(t, json.Unmarshal([]byte(`["vntls:SPACEX", "1000000"]`), &p))
	assert.Equal(t, "vntls:SPACEX", p.Asset)
	assert.Equal(t, "1000000", p.Cap)
}

func TestOiCapPairDecodesNumericCap(t *testing.T) {
	var p OiCapPair
	require.NoError(t, json.Unmarshal([]byte(`["vntls:SPACEX", 1000000]`), &p))
	assert.Equal(t, "vntls:SPACEX", p.Asset)
	assert.Equal(t, "1000000", p.Cap)
}

func TestOiCapPairShortPairIsZeroValue(t *testing.T) {
	var p OiCapPair
	require.NoError(t, json.Unmarshal([]byte(`["lonely"]`), &p))
	assert.Empty(t, p.Asset)
	assert.Empty(t, p.Cap)
}

func TestMetaAndAssetCtxsPositionalDecode(t *testing.T) {
	raw := `[
		{"universe": [
			{"name": "vntls:SPACEX", "maxLeverage": 3, "growthMode": true},
			{"name": "vntls:OLD", "isDelisted": true}
		]},
		[
			{"markPx": "100", "dayNtlVlm": "5000"},
			{"markPx": "1"}
		]
	]`

	var out MetaAndAssetCtxs
	require.NoError(t, json.Unmarshal([]byte(raw), &out))

	require.Len(t, out.Universe, 2)
	assert.Equal(t, "vntls:SPACEX", out.Universe[0].Name)
	require.NotNil(t, out.Universe[0].GrowthMode)
	assert.True(t, *out.Universe[0].GrowthMode)
	require.NotNil(t, out.Universe[0].MaxLeverage)
	assert.Equal(t, int64(3), *out.Universe[0].MaxLeverage)
	assert.True(t, out.Universe[1].IsDelisted)

	require.Len(t, out.AssetCtxs, 2)
	assert.Equal(t, "5000", out.AssetCtxs[0].DayNtlVlm)
}

func TestMetaAndAssetCtxsNonObjectMetaSlot(t *testing.T) {
	var out MetaAndAssetCtxs
	require.NoError(t, json.Unmarshal([]byte(`["oops", [{"markPx": "1"}]]`), &out))
	assert.Empty(t, out.Universe)
	require.Len(t, out.AssetCtxs, 1)
}

func TestMetaAndAssetCtxsMissingCtxSlot(t *testing.T) {
	var out MetaAndAssetCtxs
	require.NoError(t, json.Unmarshal([]byte(`[{"universe": [{"name": "a:X"}]}]`), &out))
	require.Len(t, out.Universe, 1)
	assert.Nil(t, out.AssetCtxs)
}

func TestAssetMetaAbsentOptionalFields(t *testing.T) {
	var m AssetMeta
	require.NoError(t, json.Unmarshal([]byte(`{"name": "a:X"}`), &m))
	assert.Nil(t, m.MaxLeverage)
	assert.Nil(t, m.GrowthMode)
	assert.False(t, m.IsDelisted)
}
