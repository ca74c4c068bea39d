// Package ratelimit implements keyed update-rate limiting with hourly
// and daily windows, persisted across restarts in bbolt.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRateLimits = []byte("rate_limits")

// Level represents the level of rate limiting.
type Level string

const (
	LevelGlobal Level = "global"
	LevelToken  Level = "token"
	LevelIP     Level = "ip"
)

// Config contains rate limit configuration.
type Config struct {
	// Global limits for the whole proxy
	Global *LimitConfig `yaml:"global,omitempty"`

	// Default limits per token
	DefaultToken *LimitConfig `yaml:"default_token,omitempty"`

	// Default limits per source IP
	DefaultIP *LimitConfig `yaml:"default_ip,omitempty"`

	// Persistence settings
	FlushInterval time.Duration `yaml:"flush_interval,omitempty"`
}

// LimitConfig contains rate limit values.
type LimitConfig struct {
	UpdatesPerHour int `yaml:"updates_per_hour" json:"updates_per_hour"`
	UpdatesPerDay  int `yaml:"updates_per_day" json:"updates_per_day"`
}

// Counter tracks rate limit counters.
type Counter struct {
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// Limiter implements rate limiting with multiple levels. Checks never
// block: a limited request is rejected immediately with a retry hint.
type Limiter struct {
	db       *bolt.DB
	config   *Config
	counters map[string]*Counter // key -> counter
	mu       sync.RWMutex
	stopCh   chan struct{}
}

// NewLimiter creates a new rate limiter sharing the given bolt handle.
func NewLimiter(db *bolt.DB, cfg *Config) (*Limiter, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRateLimits)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limits bucket: %w", err)
	}

	l := &Limiter{
		db:       db,
		config:   cfg,
		counters: make(map[string]*Counter),
		stopCh:   make(chan struct{}),
	}

	if err := l.loadCounters(); err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}

	go l.persistLoop()

	return l, nil
}

// Request identifies the actors being counted for one update attempt.
type Request struct {
	TokenID string // authenticated token (if any)
	IP      string // client IP
}

// Result contains the rate limit check result.
type Result struct {
	Allowed    bool
	DeniedBy   Level
	DeniedKey  string
	RetryAfter time.Duration
}

// Allow checks if the update is allowed and increments counters.
func (l *Limiter) Allow(ctx context.Context, req *Request) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := &Result{Allowed: true}
	now := time.Now()
	checks := l.getChecks(req)

	for _, check := range checks {
		counter := l.getOrCreateCounter(check.key, now)
		l.resetExpiredCounters(counter, now)

		if check.limit.UpdatesPerHour > 0 && counter.HourlyCount >= check.limit.UpdatesPerHour {
			result.Allowed = false
			result.DeniedBy = check.level
			result.DeniedKey = check.key
			result.RetryAfter = counter.HourStart.Add(time.Hour).Sub(now)
			return result, nil
		}

		if check.limit.UpdatesPerDay > 0 && counter.DailyCount >= check.limit.UpdatesPerDay {
			result.Allowed = false
			result.DeniedBy = check.level
			result.DeniedKey = check.key
			result.RetryAfter = counter.DayStart.Add(24 * time.Hour).Sub(now)
			return result, nil
		}
	}

	// Increment all counters only when every level allowed the request.
	for _, check := range checks {
		counter := l.counters[check.key]
		counter.HourlyCount++
		counter.DailyCount++
	}

	return result, nil
}

// Check checks whether the update would be allowed without counting it.
func (l *Limiter) Check(ctx context.Context, req *Request) (*Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := &Result{Allowed: true}
	now := time.Now()

	for _, check := range l.getChecks(req) {
		counter, exists := l.counters[check.key]
		if !exists {
			continue
		}

		hourlyCount := counter.HourlyCount
		dailyCount := counter.DailyCount
		if now.Sub(counter.HourStart) >= time.Hour {
			hourlyCount = 0
		}
		if now.Sub(counter.DayStart) >= 24*time.Hour {
			dailyCount = 0
		}

		if check.limit.UpdatesPerHour > 0 && hourlyCount >= check.limit.UpdatesPerHour {
			result.Allowed = false
			result.DeniedBy = check.level
			result.DeniedKey = check.key
			result.RetryAfter = counter.HourStart.Add(time.Hour).Sub(now)
			return result, nil
		}

		if check.limit.UpdatesPerDay > 0 && dailyCount >= check.limit.UpdatesPerDay {
			result.Allowed = false
			result.DeniedBy = check.level
			result.DeniedKey = check.key
			result.RetryAfter = counter.DayStart.Add(24 * time.Hour).Sub(now)
			return result, nil
		}
	}

	return result, nil
}

// Stop stops the rate limiter and persists counters.
func (l *Limiter) Stop() error {
	close(l.stopCh)
	return l.persistCounters()
}

type limitCheck struct {
	level Level
	key   string
	limit *LimitConfig
}

func (l *Limiter) getChecks(req *Request) []limitCheck {
	var checks []limitCheck

	if l.config.Global != nil {
		checks = append(checks, limitCheck{
			level: LevelGlobal,
			key:   makeKey(LevelGlobal, "global"),
			limit: l.config.Global,
		})
	}

	if req.TokenID != "" && l.config.DefaultToken != nil {
		checks = append(checks, limitCheck{
			level: LevelToken,
			key:   makeKey(LevelToken, req.TokenID),
			limit: l.config.DefaultToken,
		})
	}

	if req.IP != "" && l.config.DefaultIP != nil {
		checks = append(checks, limitCheck{
			level: LevelIP,
			key:   makeKey(LevelIP, req.IP),
			limit: l.config.DefaultIP,
		})
	}

	return checks
}

func (l *Limiter) getOrCreateCounter(key string, now time.Time) *Counter {
	counter, exists := l.counters[key]
	if !exists {
		counter = &Counter{
			HourStart: now,
			DayStart:  now,
		}
		l.counters[key] = counter
	}
	return counter
}

func (l *Limiter) resetExpiredCounters(counter *Counter, now time.Time) {
	if now.Sub(counter.HourStart) >= time.Hour {
		counter.HourlyCount = 0
		counter.HourStart = now
	}
	if now.Sub(counter.DayStart) >= 24*time.Hour {
		counter.DailyCount = 0
		counter.DayStart = now
	}
}

func (l *Limiter) loadCounters() error {
	return l.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var counter Counter
			if err := json.Unmarshal(v, &counter); err != nil {
				return nil // Skip invalid entries
			}
			l.counters[string(k)] = &counter
			return nil
		})
	})
}

func (l *Limiter) persistCounters() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket == nil {
			return nil
		}

		for key, counter := range l.counters {
			data, err := json.Marshal(counter)
			if err != nil {
				continue
			}
			if err := bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Limiter) persistLoop() {
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.persistCounters()
		}
	}
}

func makeKey(level Level, key string) string {
	return string(level) + ":" + key
}
