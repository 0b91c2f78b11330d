package storage

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic key derivation
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Package storage keeps a local ledger of recently captured URLs.

// Store tracks which URLs were captured recently enough to skip.
type Store interface {
	Close() error
	RecentlyCaptured(url string) (bool, error)
	CapturedAt(url string) (time.Time, bool, error)
	MarkCaptured(url string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	CaptureTTL      time.Duration
	CleanupInterval time.Duration
}

const (
	defaultCaptureTTL      = 24 * time.Hour
	defaultCleanupInterval = 6 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.CaptureTTL <= 0 {
		opts.CaptureTTL = defaultCaptureTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// urlKey derives the ledger key; trailing slashes and surrounding space do not matter.
func urlKey(u string) []byte {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	sum := sha1.Sum([]byte(u))
	return []byte(hex.EncodeToString(sum[:]))
}

type noopStore struct{}

func (noopStore) Close() error                          { return nil }
func (noopStore) RecentlyCaptured(string) (bool, error) { return false, nil }
func (noopStore) MarkCaptured(string) error             { return nil }
func (noopStore) CapturedAt(string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
