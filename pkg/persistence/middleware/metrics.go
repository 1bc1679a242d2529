package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/minutes/pkg/domain"
	"github.com/aretw0/minutes/pkg/observability"
	"github.com/aretw0/minutes/pkg/ports"
)

type metricsMiddleware struct {
	next    ports.SessionStore
	metrics *observability.Metrics
}

// NewMetricsMiddleware records latency and failures of every store call.
// A missing session on Load is not counted as a failure.
func NewMetricsMiddleware(m *observability.Metrics) Middleware {
	return func(next ports.SessionStore) ports.SessionStore {
		return &metricsMiddleware{next: next, metrics: m}
	}
}

func (m *metricsMiddleware) Save(ctx context.Context, session *domain.Session) error {
	start := time.Now()
	err := m.next.Save(ctx, session)
	m.metrics.ObserveStore("save", start, err)
	return err
}

func (m *metricsMiddleware) Load(ctx context.Context, userID int64) (*domain.Session, error) {
	start := time.Now()
	s, err := m.next.Load(ctx, userID)
	if errors.Is(err, domain.ErrNoActiveSession) {
		m.metrics.ObserveStore("load", start, nil)
	} else {
		m.metrics.ObserveStore("load", start, err)
	}
	return s, err
}

func (m *metricsMiddleware) Delete(ctx context.Context, userID int64) error {
	start := time.Now()
	err := m.next.Delete(ctx, userID)
	m.metrics.ObserveStore("delete", start, err)
	return err
}

func (m *metricsMiddleware) List(ctx context.Context) ([]int64, error) {
	start := time.Now()
	ids, err := m.next.List(ctx)
	m.metrics.ObserveStore("list", start, err)
	return ids, err
}
