package narrate

import (
	"context"
	"log/slog"
	"sort"

	"github.com/reelay/reelay/internal/domain"
)

// prober abstracts quota probing (consumer-defined interface)
type prober interface {
	Probe(ctx context.Context, key string) domain.KeyRecord
}

// KeyPool probes and reorders the narration key list. Rotation itself lives
// in the persisted pool store; KeyPool never touches the current index.
type KeyPool struct {
	prober prober
	logger *slog.Logger
}

// NewKeyPool creates a KeyPool backed by the given prober.
func NewKeyPool(prober prober, logger *slog.Logger) *KeyPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyPool{prober: prober, logger: logger}
}

// ProbeAll probes each key sequentially. Parallel probes would trip the
// provider's own rate limiting, so one request is in flight at a time.
func (p *KeyPool) ProbeAll(ctx context.Context, keys []string) []domain.KeyRecord {
	records := make([]domain.KeyRecord, 0, len(keys))
	for _, key := range keys {
		record := p.prober.Probe(ctx, key)
		p.logger.Debug("probed key", "status", record.Status, "remaining", record.Remaining)
		records = append(records, record)
	}
	return records
}

// Reorder probes every key and returns them reordered: active keys first,
// sorted by descending remaining quota, with non-active keys trailing in
// their original relative order. The persisted rotation index is not
// touched; callers persist the new ordering separately.
func (p *KeyPool) Reorder(ctx context.Context, keys []string) []string {
	records := p.ProbeAll(ctx, keys)

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		aActive := a.Status == domain.KeyStatusActive
		bActive := b.Status == domain.KeyStatusActive
		if aActive != bActive {
			return aActive
		}
		if aActive {
			return a.Remaining > b.Remaining
		}
		return false
	})

	ordered := make([]string, len(records))
	for i, record := range records {
		ordered[i] = record.Key
	}
	return ordered
}
