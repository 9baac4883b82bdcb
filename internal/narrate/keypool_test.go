package narrate

import (
	"context"
	"testing"

	"github.com/reelay/reelay/internal/domain"
	"github.com/stretchr/testify/assert"
)

// fakeProber returns scripted records and logs probe order
type fakeProber struct {
	records map[string]domain.KeyRecord
	order   []string
}

func (f *fakeProber) Probe(ctx context.Context, key string) domain.KeyRecord {
	f.order = append(f.order, key)
	if record, ok := f.records[key]; ok {
		return record
	}
	return domain.KeyRecord{Key: key, Remaining: -1, Status: domain.KeyStatusError}
}

func TestReorderActiveByRemaining(t *testing.T) {
	prober := &fakeProber{records: map[string]domain.KeyRecord{
		"a": {Key: "a", Remaining: 10, Status: domain.KeyStatusActive},
		"b": {Key: "b", Remaining: 100, Status: domain.KeyStatusActive},
		"c": {Key: "c", Remaining: -1, Status: domain.KeyStatusError},
	}}

	pool := NewKeyPool(prober, nil)
	got := pool.Reorder(context.Background(), []string{"a", "b", "c"})

	assert.Equal(t, []string{"b", "a", "c"}, got)
}

func TestReorderProbesSequentiallyInOrder(t *testing.T) {
	prober := &fakeProber{records: map[string]domain.KeyRecord{}}

	pool := NewKeyPool(prober, nil)
	pool.Reorder(context.Background(), []string{"k1", "k2", "k3"})

	// Probes respect the provider's rate limits: one at a time, in order
	assert.Equal(t, []string{"k1", "k2", "k3"}, prober.order)
}

func TestReorderNonActiveKeepRelativeOrder(t *testing.T) {
	prober := &fakeProber{records: map[string]domain.KeyRecord{
		"e1": {Key: "e1", Remaining: 5, Status: domain.KeyStatusEmpty},
		"x":  {Key: "x", Remaining: 500, Status: domain.KeyStatusActive},
		"e2": {Key: "e2", Remaining: 90, Status: domain.KeyStatusEmpty},
		"c":  {Key: "c", Remaining: -1, Status: domain.KeyStatusError},
	}}

	pool := NewKeyPool(prober, nil)
	got := pool.Reorder(context.Background(), []string{"e1", "x", "e2", "c"})

	assert.Equal(t, "x", got[0])
	// Non-active keys trail in their original relative order
	assert.Equal(t, []string{"e1", "e2", "c"}, got[1:])
}

func TestReorderEmpty(t *testing.T) {
	pool := NewKeyPool(&fakeProber{}, nil)
	assert.Empty(t, pool.Reorder(context.Background(), nil))
}
