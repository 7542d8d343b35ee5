package lookup

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/pkg/recordstore"
)

// fakeStore returns canned rows per record type and counts searches.
type fakeStore struct {
	rows     map[string][]recordstore.Record
	searches int
	err      error
}

func (f *fakeStore) Search(_ context.Context, recordType string, _ []recordstore.Filter, _ []string) ([]recordstore.Record, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[recordType], nil
}

func (f *fakeStore) Create(context.Context, string, map[string]any) (string, error) {
	return "", eris.New("not implemented")
}

func (f *fakeStore) Load(context.Context, string, string, []string) (recordstore.Record, error) {
	return nil, eris.New("not implemented")
}

func (f *fakeStore) Save(context.Context, string, string, map[string]any) error {
	return eris.New("not implemented")
}

func TestCache_MemoizesWithinRun(t *testing.T) {
	fs := &fakeStore{rows: map[string][]recordstore.Record{
		recordstore.TypeCatalogItem: {{"Id": "item-1"}},
	}}
	c := New(fs)

	for range 3 {
		id, err := c.ItemID(context.Background(), "Implementation Services")
		require.NoError(t, err)
		assert.Equal(t, "item-1", id)
	}
	assert.Equal(t, 1, fs.searches)
}

func TestCache_DimensionsAreIndependent(t *testing.T) {
	fs := &fakeStore{rows: map[string][]recordstore.Record{
		recordstore.TypeClass:      {{"Id": "cls-1"}},
		recordstore.TypeDepartment: {{"Id": "dep-1"}},
	}}
	c := New(fs)

	clsID, err := c.ClassID(context.Background(), "Services")
	require.NoError(t, err)
	depID, err := c.DepartmentID(context.Background(), "Services")
	require.NoError(t, err)

	assert.Equal(t, "cls-1", clsID)
	assert.Equal(t, "dep-1", depID)
	assert.Equal(t, 2, fs.searches)
}

func TestCache_NumericShortCircuits(t *testing.T) {
	fs := &fakeStore{}
	c := New(fs)

	id, err := c.EmployeeID(context.Background(), "42017")
	require.NoError(t, err)
	assert.Equal(t, "42017", id)
	assert.Equal(t, 0, fs.searches)
}

func TestCache_NotFound(t *testing.T) {
	fs := &fakeStore{}
	c := New(fs)

	id, err := c.LocationID(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestCache_EmptyName(t *testing.T) {
	fs := &fakeStore{}
	c := New(fs)

	id, err := c.BillingScheduleID(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "", id)
	assert.Equal(t, 0, fs.searches)
}

func TestCache_TransportError(t *testing.T) {
	fs := &fakeStore{err: eris.New("boom")}
	c := New(fs)

	_, err := c.ItemID(context.Background(), "Anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup: search")
}
