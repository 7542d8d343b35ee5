package budget

import (
	"context"

	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// Unit costs the hosting environment charges per record operation.
const (
	CostSearch = 10
	CostLoad   = 5
	CostCreate = 20
	CostSave   = 20
)

// MeteredStore decorates a record store client, charging the run's meter for
// every remote operation.
type MeteredStore struct {
	inner recordstore.Client
	meter *UsageMeter
}

// NewMeteredStore wraps a client with usage metering.
func NewMeteredStore(inner recordstore.Client, meter *UsageMeter) *MeteredStore {
	return &MeteredStore{inner: inner, meter: meter}
}

func (m *MeteredStore) Search(ctx context.Context, recordType string, filters []recordstore.Filter, columns []string) ([]recordstore.Record, error) {
	m.meter.Consume(CostSearch)
	return m.inner.Search(ctx, recordType, filters, columns)
}

func (m *MeteredStore) Create(ctx context.Context, recordType string, fields map[string]any) (string, error) {
	m.meter.Consume(CostCreate)
	return m.inner.Create(ctx, recordType, fields)
}

func (m *MeteredStore) Load(ctx context.Context, recordType, id string, columns []string) (recordstore.Record, error) {
	m.meter.Consume(CostLoad)
	return m.inner.Load(ctx, recordType, id, columns)
}

func (m *MeteredStore) Save(ctx context.Context, recordType, id string, fields map[string]any) error {
	m.meter.Consume(CostSave)
	return m.inner.Save(ctx, recordType, id, fields)
}
