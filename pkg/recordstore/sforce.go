package recordstore

import (
	"context"
	"fmt"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// searchLimit caps every existence-check query. The importer only ever needs
// the first match.
const searchLimit = 10

// ClientOption configures the record store client.
type ClientOption func(*sfStore)

// WithRateLimit sets a per-second rate limit for store API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(s *sfStore) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// sfStore implements Client on top of go-salesforce/v3.
//
// NOTE: the underlying library does not accept context.Context, so the ctx
// parameter only governs the rate limiter wait; callers can still cancel
// that wait.
type sfStore struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewClient creates a record store Client wrapping the given go-salesforce
// instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	s := &sfStore{sf: sf}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sfStore) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *sfStore) Search(ctx context.Context, recordType string, filters []Filter, columns []string) ([]Record, error) {
	if err := s.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "recordstore: rate limit")
	}
	if len(columns) == 0 {
		columns = []string{"Id"}
	}
	soql := buildSOQL(recordType, filters, columns, searchLimit)

	var rows []Record
	if err := s.sf.Query(soql, &rows); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("recordstore: search %s", recordType))
	}
	return rows, nil
}

func (s *sfStore) Create(ctx context.Context, recordType string, fields map[string]any) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", eris.Wrap(err, "recordstore: rate limit")
	}
	result, err := s.sf.InsertOne(recordType, fields)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("recordstore: create %s", recordType))
	}
	if !result.Success {
		return "", eris.New(fmt.Sprintf("recordstore: create %s failed: %v", recordType, result.Errors))
	}
	return result.Id, nil
}

func (s *sfStore) Load(ctx context.Context, recordType, id string, columns []string) (Record, error) {
	if err := s.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "recordstore: rate limit")
	}
	if len(columns) == 0 {
		columns = []string{"Id"}
	}
	soql := buildSOQL(recordType, []Filter{{Field: "Id", Value: id}}, columns, 1)

	var rows []Record
	if err := s.sf.Query(soql, &rows); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("recordstore: load %s %s", recordType, id))
	}
	if len(rows) == 0 {
		return nil, eris.New(fmt.Sprintf("recordstore: load %s %s: not found", recordType, id))
	}
	return rows[0], nil
}

func (s *sfStore) Save(ctx context.Context, recordType, id string, fields map[string]any) error {
	if err := s.wait(ctx); err != nil {
		return eris.Wrap(err, "recordstore: rate limit")
	}
	if err := s.sf.UpdateOne(recordType, withID(fields, id)); err != nil {
		return eris.Wrap(err, fmt.Sprintf("recordstore: save %s %s", recordType, id))
	}
	return nil
}

// withID builds the update payload on a fresh map so the caller's field set
// does not grow an Id key.
func withID(fields map[string]any, id string) map[string]any {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["Id"] = id
	return payload
}
