package backtest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/raykavin/backsim/pkg/core"
	"github.com/raykavin/backsim/pkg/logger"
)

var defaultHeaderMap = map[string]int{
	"timestamp": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5,
}

// CSVProvider loads OHLCV bars from a CSV file. Loaded bytes are cached in
// the raw tier keyed by the file path so unchanged files are not re-read;
// the NoCacheEnv environment variable bypasses the tier entirely.
type CSVProvider struct {
	symbol string
	cache  *Cache
	log    logger.Logger
}

func NewCSVProvider(symbol string, cache *Cache, log logger.Logger) *CSVProvider {
	return &CSVProvider{symbol: symbol, cache: cache, log: log}
}

// Load implements core.DataProvider.
func (p *CSVProvider) Load(path string) ([]core.MarketData, error) {
	data, err := readSourceCached(p.cache, p.log, "barcsv", path)
	if err != nil {
		return nil, err
	}
	return parseBars(data, p.symbol)
}

// TickCSVProvider loads tick rows (timestamp,price,qty) and surfaces each
// tick as a market sample with OHLC collapsed to the tick price.
type TickCSVProvider struct {
	symbol string
	cache  *Cache
	log    logger.Logger
}

func NewTickCSVProvider(symbol string, cache *Cache, log logger.Logger) *TickCSVProvider {
	return &TickCSVProvider{symbol: symbol, cache: cache, log: log}
}

// Load implements core.DataProvider.
func (p *TickCSVProvider) Load(path string) ([]core.MarketData, error) {
	data, err := readSourceCached(p.cache, p.log, "tickcsv", path)
	if err != nil {
		return nil, err
	}
	return parseTicks(data, p.symbol)
}

// SliceProvider serves an already-materialized series, used by the
// walk-forward harness for per-window test slices.
type SliceProvider struct {
	data []core.MarketData
}

func NewSliceProvider(data []core.MarketData) *SliceProvider {
	return &SliceProvider{data: data}
}

// Load implements core.DataProvider. The path argument is ignored.
func (p *SliceProvider) Load(_ string) ([]core.MarketData, error) {
	out := make([]core.MarketData, len(p.data))
	copy(out, p.data)
	return out, nil
}

// readSourceCached reads a source file through the raw-bytes cache tier.
// Cache failures degrade to a plain file read; they are logged, never
// propagated.
func readSourceCached(cache *Cache, log logger.Logger, sourceKind, path string) ([]byte, error) {
	useCache := cache != nil && os.Getenv(NoCacheEnv) == ""

	var key string
	if useCache {
		key = RawKey(sourceKind, path)
		data, err := cache.GetRaw(key)
		if err != nil {
			log.WithError(err).Warnf("raw cache read failed for %s", path)
		} else if data != nil {
			return data, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if useCache {
		if err := cache.PutRaw(key, data); err != nil {
			log.WithError(err).Warnf("raw cache write failed for %s", path)
		}
	}
	return data, nil
}

// parseBars decodes CSV bar rows. A header row with named columns is
// honored; a file starting directly with a numeric timestamp falls back to
// the default timestamp,open,high,low,close,volume order. Only close is
// required.
func parseBars(data []byte, symbol string) ([]core.MarketData, error) {
	lines, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: csv read error: %v", core.ErrMalformedData, err)
	}
	if len(lines) == 0 {
		return nil, core.ErrNoData
	}

	headerMap := defaultHeaderMap
	if _, err := strconv.ParseInt(lines[0][0], 10, 64); err != nil {
		headerMap = make(map[string]int)
		for i, name := range lines[0] {
			if name == "time" {
				name = "timestamp"
			}
			headerMap[name] = i
		}
		lines = lines[1:]
	}
	if _, ok := headerMap["close"]; !ok {
		return nil, fmt.Errorf("%w: missing close column", core.ErrMalformedData)
	}

	out := make([]core.MarketData, 0, len(lines))
	for _, line := range lines {
		tsCol, ok := headerMap["timestamp"]
		if !ok || tsCol >= len(line) {
			return nil, fmt.Errorf("%w: missing timestamp column", core.ErrMalformedData)
		}
		ts, err := strconv.ParseInt(line[tsCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q", core.ErrMalformedData, line[tsCol])
		}

		md := core.MarketData{Symbol: symbol, Timestamp: ts}
		if md.Close, err = parseColumn(line, headerMap, "close"); err != nil {
			return nil, err
		}
		// Optional columns fall back to the close price (or zero volume).
		md.Open = columnOrDefault(line, headerMap, "open", md.Close)
		md.High = columnOrDefault(line, headerMap, "high", md.Close)
		md.Low = columnOrDefault(line, headerMap, "low", md.Close)
		md.Volume = columnOrDefault(line, headerMap, "volume", 0)

		out = append(out, md)
	}
	return out, nil
}

// parseTicks decodes timestamp,price,qty rows, skipping a header row when
// present.
func parseTicks(data []byte, symbol string) ([]core.MarketData, error) {
	lines, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: csv read error: %v", core.ErrMalformedData, err)
	}
	if len(lines) == 0 {
		return nil, core.ErrNoData
	}
	if _, err := strconv.ParseInt(lines[0][0], 10, 64); err != nil {
		lines = lines[1:]
	}

	out := make([]core.MarketData, 0, len(lines))
	for _, line := range lines {
		if len(line) < 3 {
			return nil, fmt.Errorf("%w: tick row needs timestamp,price,qty", core.ErrMalformedData)
		}
		ts, err := strconv.ParseInt(line[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q", core.ErrMalformedData, line[0])
		}
		price, err := strconv.ParseFloat(line[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad price %q", core.ErrMalformedData, line[1])
		}
		qty, err := strconv.ParseFloat(line[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad qty %q", core.ErrMalformedData, line[2])
		}

		out = append(out, core.MarketData{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    qty,
		})
	}
	return out, nil
}

func parseColumn(line []string, headerMap map[string]int, name string) (float64, error) {
	col, ok := headerMap[name]
	if !ok || col >= len(line) {
		return 0, fmt.Errorf("%w: missing %s column", core.ErrMalformedData, name)
	}
	v, err := strconv.ParseFloat(line[col], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s value %q", core.ErrMalformedData, name, line[col])
	}
	return v, nil
}

func columnOrDefault(line []string, headerMap map[string]int, name string, fallback float64) float64 {
	col, ok := headerMap[name]
	if !ok || col >= len(line) {
		return fallback
	}
	v, err := strconv.ParseFloat(line[col], 64)
	if err != nil {
		return fallback
	}
	return v
}
