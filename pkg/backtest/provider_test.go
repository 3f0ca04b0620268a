package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/backsim/pkg/core"
	"github.com/raykavin/backsim/pkg/logger"
)

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVProviderWithHeader(t *testing.T) {
	path := writeTestFile(t, "timestamp,open,high,low,close,volume\n"+
		"1600000000,100,101,99,100.5,1200\n"+
		"1600003600,100.5,102,100,101.5,900\n")

	provider := NewCSVProvider("BTC/USDT", nil, logger.Nop())
	data, err := provider.Load(path)
	require.NoError(t, err)
	require.Len(t, data, 2)

	assert.Equal(t, "BTC/USDT", data[0].Symbol)
	assert.Equal(t, int64(1_600_000_000), data[0].Timestamp)
	assert.InDelta(t, 100.5, data[0].Close, 1e-12)
	assert.InDelta(t, 101.0, data[0].High, 1e-12)
	assert.InDelta(t, 900.0, data[1].Volume, 1e-12)
}

func TestCSVProviderHeaderless(t *testing.T) {
	path := writeTestFile(t, "1600000000,100,101,99,100.5,1200\n")

	data, err := NewCSVProvider("BTC/USDT", nil, logger.Nop()).Load(path)
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.InDelta(t, 100.5, data[0].Close, 1e-12)
}

func TestCSVProviderCloseOnly(t *testing.T) {
	path := writeTestFile(t, "time,close\n1600000000,250\n")

	data, err := NewCSVProvider("ETH/USDT", nil, logger.Nop()).Load(path)
	require.NoError(t, err)
	require.Len(t, data, 1)

	// Missing OHLC columns collapse to the close price.
	assert.InDelta(t, 250.0, data[0].Open, 1e-12)
	assert.InDelta(t, 250.0, data[0].High, 1e-12)
	assert.InDelta(t, 250.0, data[0].Low, 1e-12)
	assert.Zero(t, data[0].Volume)
}

func TestCSVProviderMalformed(t *testing.T) {
	provider := NewCSVProvider("BTC/USDT", nil, logger.Nop())

	path := writeTestFile(t, "timestamp,open\n1600000000,100\n")
	_, err := provider.Load(path)
	assert.ErrorIs(t, err, core.ErrMalformedData)

	path = writeTestFile(t, "timestamp,close\nnotanumber,100\n")
	_, err = provider.Load(path)
	assert.ErrorIs(t, err, core.ErrMalformedData)
}

func TestCSVProviderMissingFile(t *testing.T) {
	_, err := NewCSVProvider("BTC/USDT", nil, logger.Nop()).Load("/does/not/exist.csv")
	assert.Error(t, err)
}

func TestTickCSVProvider(t *testing.T) {
	path := writeTestFile(t, "timestamp,price,qty\n"+
		"1600000000,100.25,0.5\n"+
		"1600000001,100.30,1.5\n")

	data, err := NewTickCSVProvider("BTC/USDT", nil, logger.Nop()).Load(path)
	require.NoError(t, err)
	require.Len(t, data, 2)

	// Ticks collapse OHLC to the trade price and carry qty as volume.
	assert.InDelta(t, 100.25, data[0].Open, 1e-12)
	assert.InDelta(t, 100.25, data[0].Close, 1e-12)
	assert.InDelta(t, 0.5, data[0].Volume, 1e-12)
	assert.Equal(t, int64(1_600_000_001), data[1].Timestamp)
}

func TestTickCSVProviderMalformed(t *testing.T) {
	path := writeTestFile(t, "1600000000,100.25\n")
	_, err := NewTickCSVProvider("BTC/USDT", nil, logger.Nop()).Load(path)
	assert.ErrorIs(t, err, core.ErrMalformedData)
}

func TestProviderRawCacheAvoidsReread(t *testing.T) {
	cache := openTestCache(t)
	path := writeTestFile(t, "timestamp,close\n1600000000,100\n")

	provider := NewCSVProvider("BTC/USDT", cache, logger.Nop())
	first, err := provider.Load(path)
	require.NoError(t, err)

	// Replace the file on disk: the path-keyed raw tier still serves the
	// original bytes.
	require.NoError(t, os.WriteFile(path, []byte("timestamp,close\n1600000000,999\n"), 0o644))

	second, err := provider.Load(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProviderNoCacheEnvBypassesRawTier(t *testing.T) {
	cache := openTestCache(t)
	path := writeTestFile(t, "timestamp,close\n1600000000,100\n")

	provider := NewCSVProvider("BTC/USDT", cache, logger.Nop())
	_, err := provider.Load(path)
	require.NoError(t, err)

	t.Setenv(NoCacheEnv, "1")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,close\n1600000000,999\n"), 0o644))

	data, err := provider.Load(path)
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.InDelta(t, 999.0, data[0].Close, 1e-12)
}

func TestSliceProviderReturnsCopy(t *testing.T) {
	orig := []core.MarketData{{Symbol: "BTC/USDT", Timestamp: 1, Close: 100}}
	provider := NewSliceProvider(orig)

	data, err := provider.Load("ignored")
	require.NoError(t, err)
	data[0].Close = 1

	again, err := provider.Load("ignored")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, again[0].Close, 1e-12)
}
