package services

import (
	"context"
	"strings"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// ListOptions bounds list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) normalise() ListOptions {
	if o.Limit <= 0 || o.Limit > maxPageSize {
		o.Limit = defaultPageSize
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
