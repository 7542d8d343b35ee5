package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// memStore is an in-memory recordstore.Client for engine tests. Records are
// matched against filters by stringified equality, which is close enough to
// how the real store's query builder behaves for these cases.
type memStore struct {
	mu      sync.Mutex
	seq     int
	records map[string][]memRecord

	failCreate map[string]error
	failSearch map[string]error
}

type memRecord struct {
	id     string
	fields map[string]any
}

func newMemStore() *memStore {
	return &memStore{
		records:    make(map[string][]memRecord),
		failCreate: make(map[string]error),
		failSearch: make(map[string]error),
	}
}

// seed inserts a record with a fixed id, bypassing Create bookkeeping.
func (m *memStore) seed(recordType, id string, fields map[string]any) {
	m.records[recordType] = append(m.records[recordType], memRecord{id: id, fields: fields})
}

func (m *memStore) count(recordType string) int {
	return len(m.records[recordType])
}

// createdFields returns the fields of the i-th record of a type, counting
// seeded records too.
func (m *memStore) fieldsAt(recordType string, i int) map[string]any {
	return m.records[recordType][i].fields
}

func (m *memStore) Search(_ context.Context, recordType string, filters []recordstore.Filter, _ []string) ([]recordstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failSearch[recordType]; err != nil {
		return nil, err
	}

	var out []recordstore.Record
	for _, rec := range m.records[recordType] {
		if !matches(rec.fields, filters) {
			continue
		}
		row := recordstore.Record{"Id": rec.id}
		for k, v := range rec.fields {
			row[k] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, recordType string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failCreate[recordType]; err != nil {
		return "", err
	}

	m.seq++
	id := fmt.Sprintf("%s-%d", recordType, m.seq)
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	m.records[recordType] = append(m.records[recordType], memRecord{id: id, fields: copied})
	return id, nil
}

func (m *memStore) Load(_ context.Context, recordType, id string, _ []string) (recordstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records[recordType] {
		if rec.id == id {
			row := recordstore.Record{"Id": rec.id}
			for k, v := range rec.fields {
				row[k] = v
			}
			return row, nil
		}
	}
	return nil, fmt.Errorf("no %s record %s", recordType, id)
}

func (m *memStore) Save(_ context.Context, recordType, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.records[recordType] {
		if rec.id != id {
			continue
		}
		for k, v := range fields {
			m.records[recordType][i].fields[k] = v
		}
		return nil
	}
	return fmt.Errorf("no %s record %s", recordType, id)
}

func matches(fields map[string]any, filters []recordstore.Filter) bool {
	for _, f := range filters {
		if fmt.Sprint(fields[f.Field]) != f.Value {
			return false
		}
	}
	return true
}

// stopAfter is a budget.Checker that signals a checkpoint after n successful
// checks.
type stopAfter struct {
	n  int
	cp error
}

func (s *stopAfter) Check(context.Context) error {
	if s.n <= 0 {
		return s.cp
	}
	s.n--
	return nil
}
