// Package tenancy carries the resolved tenant through request contexts.
package tenancy

import "context"

type tenantKey struct{}

// WithTenant returns a copy of ctx scoped to tenantID.
func WithTenant(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// FromContext returns the tenant stored by WithTenant.
func FromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(tenantKey{}).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}
