// Package config is the process-wide settings store: CaptureConfig,
// RetentionConfig, and OcrConfig persisted as key/value rows in the
// catalog's settings table, with change notification so a running
// component can react without a restart. Grounded in catalog's own
// sqlite-backed persistence (pkg/catalog/catalog.go), the same
// single-writer-connection database waddle's session manager used for
// every other durable record.
package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/eequaled/recall/pkg/capture"
	"github.com/eequaled/recall/pkg/catalog"
	"github.com/eequaled/recall/pkg/ocrqueue"
	"github.com/eequaled/recall/pkg/retention"
)

const (
	keyCapture   = "capture_config"
	keyRetention = "retention_config"
	keyOcr       = "ocr_config"
)

// Store is the settings store, backed by the catalog's settings table.
type Store struct {
	cat *catalog.Catalog

	mu        sync.Mutex
	listeners map[string][]func()
}

// New constructs a Store over cat.
func New(cat *catalog.Catalog) *Store {
	return &Store{cat: cat, listeners: make(map[string][]func())}
}

// OnChange registers fn to be called whenever key is saved. Multiple
// registrations for the same key all fire, in registration order.
func (s *Store) OnChange(key string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[key] = append(s.listeners[key], fn)
}

func (s *Store) notify(key string) {
	s.mu.Lock()
	fns := append([]func(){}, s.listeners[key]...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Store) load(key string, dst interface{}) (bool, error) {
	raw, ok, err := s.cat.GetSetting(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("config: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) save(key string, src interface{}) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("config: encode %s: %w", key, err)
	}
	if err := s.cat.SetSetting(key, string(raw)); err != nil {
		return err
	}
	s.notify(key)
	return nil
}

// LoadCaptureConfig returns the stored CaptureConfig, or def if none was
// ever saved. A ConfigurationInvalid decode failure falls back to def
// rather than blocking startup, per the settings-store error contract.
func (s *Store) LoadCaptureConfig(def capture.Config) capture.Config {
	var cfg capture.Config
	if ok, err := s.load(keyCapture, &cfg); err != nil || !ok {
		return def
	}
	return cfg
}

// SaveCaptureConfig persists cfg and notifies listeners.
func (s *Store) SaveCaptureConfig(cfg capture.Config) error {
	return s.save(keyCapture, cfg)
}

// LoadRetentionConfig returns the stored retention.Config, or def if none
// was ever saved.
func (s *Store) LoadRetentionConfig(def retention.Config) retention.Config {
	var cfg retention.Config
	if ok, err := s.load(keyRetention, &cfg); err != nil || !ok {
		return def
	}
	return cfg
}

// SaveRetentionConfig persists cfg and notifies listeners.
func (s *Store) SaveRetentionConfig(cfg retention.Config) error {
	return s.save(keyRetention, cfg)
}

// OcrConfig is the persisted subset of ocrqueue.Config an operator may
// tune without a restart; PollInterval and MaxDepth are process wiring,
// not user-facing settings.
type OcrConfig struct {
	Workers    int
	MaxRetries int
}

// LoadOcrConfig returns the stored OcrConfig, or def if none was ever
// saved.
func (s *Store) LoadOcrConfig(def OcrConfig) OcrConfig {
	var cfg OcrConfig
	if ok, err := s.load(keyOcr, &cfg); err != nil || !ok {
		return def
	}
	return cfg
}

// SaveOcrConfig persists cfg and notifies listeners.
func (s *Store) SaveOcrConfig(cfg OcrConfig) error {
	return s.save(keyOcr, cfg)
}

// ApplyOcrConfig folds an OcrConfig into a base ocrqueue.Config.
func ApplyOcrConfig(base ocrqueue.Config, oc OcrConfig) ocrqueue.Config {
	base.Workers = oc.Workers
	base.MaxRetries = oc.MaxRetries
	return base
}
