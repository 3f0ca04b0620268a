package backtest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/raykavin/backsim/pkg/core"
	"github.com/tidwall/buntdb"
)

// reportEncodingVersion prefixes every report-tier value. Entries written
// with a different version decode as cache misses, never as corruption.
const reportEncodingVersion = "v1"

const (
	reportKeyPrefix = "report:"
	rawKeyPrefix    = "raw:"
)

// NoCacheEnv disables the raw-bytes tier for a run when set to any
// non-empty value, forcing fresh reads of source files.
const NoCacheEnv = "BACKSIM_NO_CACHE"

// Cache is the content-addressed backtest cache, backed by a single
// embedded key/value store with two independent tiers: zstd-compressed raw
// source bytes keyed by (source kind, file path), and serialized reports
// keyed by (strategy, symbol, timeframe, start, end). The handle is safe to
// share across goroutines within one process.
type Cache struct {
	db      *buntdb.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// OpenCache opens (or creates) the cache store at path. Use ":memory:" for
// an ephemeral store in tests.
func OpenCache(path string) (*Cache, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cache open error: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{SyncPolicy: buntdb.EverySecond}); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache config error: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache compressor error: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache decompressor error: %w", err)
	}

	return &Cache{db: db, encoder: encoder, decoder: decoder}, nil
}

func (c *Cache) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return c.db.Close()
}

// reportKey derives the deterministic report-tier key. Two keys are equal
// iff every component is equal.
func reportKey(strategy, symbol, timeframe string, startTS, endTS int64) string {
	return fmt.Sprintf("%s%s:%s:%s:%d:%d", reportKeyPrefix, strategy, symbol, timeframe, startTS, endTS)
}

// RawKey derives the raw-tier key for a source file: a fixed-width hash of
// "{sourceKind}|{path}". The kind component keeps different providers
// reading the same path from colliding.
func RawKey(sourceKind, path string) string {
	sum := sha256.Sum256([]byte(sourceKind + "|" + path))
	return rawKeyPrefix + hex.EncodeToString(sum[:])
}

// GetReport retrieves a cached report, returning nil on a miss. A value
// written under a foreign encoding version is a miss; a same-version value
// that fails to decode is a hard error.
func (c *Cache) GetReport(strategy, symbol, timeframe string, startTS, endTS int64) (*Report, error) {
	key := reportKey(strategy, symbol, timeframe, startTS, endTS)

	var value string
	err := c.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read error: %w", err)
	}

	payload, ok := strings.CutPrefix(value, reportEncodingVersion+"|")
	if !ok {
		// Entry from an older encoding; treat as a miss.
		return nil, nil
	}

	var report Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrCacheCorrupted, key, err)
	}
	return &report, nil
}

// PutReport stores a report under the five-tuple key.
func (c *Cache) PutReport(strategy, symbol, timeframe string, startTS, endTS int64, report *Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("cache serialize error: %w", err)
	}

	key := reportKey(strategy, symbol, timeframe, startTS, endTS)
	value := reportEncodingVersion + "|" + string(payload)

	err = c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, value, nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}
	return nil
}

// PutRaw compresses and stores a raw source blob.
func (c *Cache) PutRaw(key string, data []byte) error {
	compressed := c.encoder.EncodeAll(data, nil)
	err := c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(compressed), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}
	return nil
}

// GetRaw retrieves and decompresses a raw source blob, returning nil on a
// miss.
func (c *Cache) GetRaw(key string) ([]byte, error) {
	var value string
	err := c.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read error: %w", err)
	}

	data, err := c.decoder.DecodeAll([]byte(value), nil)
	if err != nil {
		return nil, fmt.Errorf("cache decompress error: %w", err)
	}
	return data, nil
}
