package database

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ocx/paygate/internal/fraud"
)

// FraudConfigCache serves orchestrator.FraudConfigLookup from an
// in-memory snapshot of the fraud_configs table, refreshed on an
// interval: the lookup itself is called on every Handle and must never
// block on a network round trip or carry an error return, so it reads
// from memory and a background goroutine keeps that memory current.
type FraudConfigCache struct {
	sc *SupabaseClient

	mu    sync.RWMutex
	byTenant map[string]fraud.TenantConfig

	logger *log.Logger
}

// NewFraudConfigCache returns an empty cache; call Refresh once before
// serving traffic and Start to keep it current.
func NewFraudConfigCache(sc *SupabaseClient) *FraudConfigCache {
	return &FraudConfigCache{
		sc:       sc,
		byTenant: make(map[string]fraud.TenantConfig),
		logger:   log.New(os.Stdout, "[FRAUD-CONFIG] ", log.LstdFlags),
	}
}

// Get returns tenantID's cached TenantConfig, or a zero-value TenantConfig
// (fraud package defaults) when nothing has been configured for it.
func (c *FraudConfigCache) Get(tenantID string) fraud.TenantConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byTenant[tenantID]
}

// Refresh reloads every row in fraud_configs. Only tables with a handful
// of tenant rows are expected, so a full table scan per refresh is
// cheaper than a change-feed.
func (c *FraudConfigCache) Refresh(ctx context.Context) error {
	var rows []FraudConfigRow
	_, err := c.sc.client.From("fraud_configs").Select("*", "", false).ExecuteTo(&rows)
	if err != nil {
		return err
	}

	next := make(map[string]fraud.TenantConfig, len(rows))
	for _, row := range rows {
		cfg := fraud.TenantConfig{
			Deadline:                 time.Duration(row.DeadlineMillis) * time.Millisecond,
			ClearingPaymentTypes:     row.ClearingPaymentTypes,
			ClearingLocalInstruments: row.ClearingLocalInstruments,
		}
		if len(row.RequestTemplate) > 0 {
			var tmpl fraud.Template
			if err := json.Unmarshal(row.RequestTemplate, &tmpl); err != nil {
				c.logger.Printf("skipping malformed request template tenant=%s: %v", row.TenantID, err)
			} else {
				cfg.RequestTemplate = tmpl
			}
		}
		next[row.TenantID] = cfg
	}

	c.mu.Lock()
	c.byTenant = next
	c.mu.Unlock()
	return nil
}

// Start runs Refresh on interval until ctx is cancelled.
func (c *FraudConfigCache) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil {
					c.logger.Printf("refresh failed: %v", err)
				}
			}
		}
	}()
}
