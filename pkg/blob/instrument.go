package blob

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentedStore counts every operation against a wrapped Store. The
// counter is labeled (operation, status) to match the server's metric
// conventions; the caller supplies it so registration stays in one place.
type InstrumentedStore struct {
	inner Store
	ops   *prometheus.CounterVec
}

// NewInstrumentedStore wraps inner with operation counting.
func NewInstrumentedStore(inner Store, ops *prometheus.CounterVec) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, ops: ops}
}

func (s *InstrumentedStore) count(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.ops.WithLabelValues(operation, status).Inc()
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	err := s.inner.Put(ctx, key, data, contentType)
	s.count("put", err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.inner.Get(ctx, key)
	s.count("get", err)
	return data, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	err := s.inner.Delete(ctx, key)
	s.count("delete", err)
	return err
}

func (s *InstrumentedStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects, err := s.inner.List(ctx, prefix)
	s.count("list", err)
	return objects, err
}
