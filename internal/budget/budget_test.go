package budget

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/pkg/recordstore"
)

type fakeScheduler struct {
	submitted []model.ContinuationParams
	err       error
}

func (f *fakeScheduler) SubmitContinuation(_ context.Context, params model.ContinuationParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, params)
	return "cont-1", nil
}

func TestGovernor_AboveThresholdContinues(t *testing.T) {
	meter := NewUsageMeter(100)
	sched := &fakeScheduler{}
	g := NewGovernor(meter, sched, 50, model.ContinuationParams{Query: "q"})

	require.NoError(t, g.Check(context.Background()))
	assert.Empty(t, sched.submitted)
}

func TestGovernor_CheckpointsAtExactThreshold(t *testing.T) {
	meter := NewUsageMeter(100)
	meter.Consume(50) // remaining == threshold
	sched := &fakeScheduler{}
	g := NewGovernor(meter, sched, 50, model.ContinuationParams{Query: "q", BatchSize: 25})

	err := g.Check(context.Background())
	require.Error(t, err)
	assert.True(t, IsCheckpoint(err))
	require.Len(t, sched.submitted, 1)
	assert.Equal(t, "q", sched.submitted[0].Query)
}

func TestGovernor_SubmitsExactlyOneContinuation(t *testing.T) {
	meter := NewUsageMeter(10)
	meter.Consume(10)
	sched := &fakeScheduler{}
	g := NewGovernor(meter, sched, 50, model.ContinuationParams{})

	for range 3 {
		err := g.Check(context.Background())
		assert.True(t, IsCheckpoint(err))
	}
	assert.Len(t, sched.submitted, 1)
	assert.Equal(t, "cont-1", g.ContinuationID())
}

func TestGovernor_SubmitFailureIsNotACheckpoint(t *testing.T) {
	meter := NewUsageMeter(0)
	sched := &fakeScheduler{err: eris.New("queue down")}
	g := NewGovernor(meter, sched, 50, model.ContinuationParams{})

	err := g.Check(context.Background())
	require.Error(t, err)
	assert.False(t, IsCheckpoint(err))
}

func TestIsCheckpoint_OrdinaryErrors(t *testing.T) {
	assert.False(t, IsCheckpoint(eris.New("boom")))
	assert.False(t, IsCheckpoint(nil))
	assert.True(t, IsCheckpoint(eris.Wrap(&Checkpoint{ContinuationID: "c"}, "wrapped")))
}

func TestUsageMeter_NeverNegative(t *testing.T) {
	meter := NewUsageMeter(5)
	meter.Consume(20)
	r, err := meter.Remaining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, r)
}

// countingStore records which operations ran.
type countingStore struct{ ops []string }

func (c *countingStore) Search(context.Context, string, []recordstore.Filter, []string) ([]recordstore.Record, error) {
	c.ops = append(c.ops, "search")
	return nil, nil
}
func (c *countingStore) Create(context.Context, string, map[string]any) (string, error) {
	c.ops = append(c.ops, "create")
	return "id", nil
}
func (c *countingStore) Load(context.Context, string, string, []string) (recordstore.Record, error) {
	c.ops = append(c.ops, "load")
	return recordstore.Record{}, nil
}
func (c *countingStore) Save(context.Context, string, string, map[string]any) error {
	c.ops = append(c.ops, "save")
	return nil
}

func TestMeteredStore_ChargesPerOperation(t *testing.T) {
	meter := NewUsageMeter(100)
	inner := &countingStore{}
	ms := NewMeteredStore(inner, meter)
	ctx := context.Background()

	_, _ = ms.Search(ctx, recordstore.TypeCustomer, nil, nil)
	_, _ = ms.Create(ctx, recordstore.TypeCustomer, nil)
	_, _ = ms.Load(ctx, recordstore.TypeCatalogItem, "1", nil)
	_ = ms.Save(ctx, recordstore.TypeProject, "1", map[string]any{})

	r, err := meter.Remaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, r)
	assert.Equal(t, []string{"search", "create", "load", "save"}, inner.ops)
}
