package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/tdnguyen/outcall/internal/core/resilience"
)

// TenantClient is a typed wrapper over Client for a tenant-scoped upstream.
// Calls are keyed per entity (category:org) so one misbehaving tenant
// upstream trips only its own breaker.
type TenantClient struct {
	api      *Client
	category string
	orgID    string
}

// TenantPolicy is the tuned budget for tenant calls: a larger attempt
// budget with tighter backoff bounds than the default.
func TenantPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts: 5,
		Multiplier:  2 * time.Second,
		MinWait:     1 * time.Second,
		MaxWait:     20 * time.Second,
	}
}

// NewTenantClient creates a tenant-scoped client over api.
func NewTenantClient(api *Client, category, orgID string) *TenantClient {
	return &TenantClient{api: api, category: category, orgID: orgID}
}

// BreakerKey returns the per-entity breaker key.
func (t *TenantClient) BreakerKey() string {
	return fmt.Sprintf("%s:%s", t.category, t.orgID)
}

// TenantInfo fetches details for a single tenant.
func (t *TenantClient) TenantInfo(ctx context.Context, tenantID string) (map[string]any, error) {
	res, err := t.api.Get(ctx, "/tenants/"+tenantID,
		WithCallPolicy(TenantPolicy()),
		WithBreakerKey(t.BreakerKey()),
	)
	if err != nil {
		return nil, err
	}

	var info map[string]any
	if err := res.Decode(&info); err != nil {
		return nil, err
	}
	return info, nil
}
