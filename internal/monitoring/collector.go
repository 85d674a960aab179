package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/marketarea-cli/internal/model"
)

// MetricsSnapshot holds a point-in-time view of import health.
type MetricsSnapshot struct {
	// Batch metrics (within lookback window).
	BatchTotal     int     `json:"batch_total"`
	BatchSucceeded int     `json:"batch_succeeded"`
	BatchPartial   int     `json:"batch_partial"`
	BatchFailed    int     `json:"batch_failed"`
	BatchFailRate  float64 `json:"batch_fail_rate"`

	// Item metrics (within lookback window).
	ItemsImported int            `json:"items_imported"`
	ItemErrors    int            `json:"item_errors"`
	ItemErrorRate float64        `json:"item_error_rate"`
	ErrorsByKind  map[string]int `json:"errors_by_kind"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// BatchRecord is one finished import batch.
type BatchRecord struct {
	ProjectID  string
	Outcome    model.Outcome
	Imported   int
	Errors     int
	Kinds      map[model.ErrorKind]int
	FinishedAt time.Time
}

// Collector keeps recent batch outcomes in memory. Records older than the
// retention window are dropped on the next Record.
type Collector struct {
	mu        sync.Mutex
	records   []BatchRecord
	retention time.Duration
	now       func() time.Time
}

// NewCollector creates a collector that keeps records for retention.
func NewCollector(retention time.Duration) *Collector {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Collector{retention: retention, now: func() time.Time { return time.Now().UTC() }}
}

// Record stores the outcome of one batch. A nil result counts as a failed
// batch with nothing imported.
func (c *Collector) Record(projectID string, res *model.BatchResult) {
	rec := BatchRecord{
		ProjectID: projectID,
		Outcome:   model.OutcomeFailed,
		Kinds:     map[model.ErrorKind]int{},
	}
	if res != nil {
		rec.Outcome = res.Outcome()
		rec.Imported = res.ImportedCount
		rec.Errors = len(res.Errors)
		for _, e := range res.Errors {
			rec.Kinds[e.Kind]++
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec.FinishedAt = c.now()

	cutoff := rec.FinishedAt.Add(-c.retention)
	kept := c.records[:0]
	for _, r := range c.records {
		if !r.FinishedAt.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	c.records = append(kept, rec)
}

// Collect gathers a snapshot of batch metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := &MetricsSnapshot{
		ErrorsByKind:  map[string]int{},
		LookbackHours: lookbackHours,
		CollectedAt:   c.now(),
	}
	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	for _, r := range c.records {
		if r.FinishedAt.Before(cutoff) {
			continue
		}
		snap.BatchTotal++
		switch r.Outcome {
		case model.OutcomeSuccess:
			snap.BatchSucceeded++
		case model.OutcomePartial:
			snap.BatchPartial++
		case model.OutcomeFailed:
			snap.BatchFailed++
		}
		snap.ItemsImported += r.Imported
		snap.ItemErrors += r.Errors
		for k, n := range r.Kinds {
			snap.ErrorsByKind[string(k)] += n
		}
	}

	if snap.BatchTotal > 0 {
		snap.BatchFailRate = float64(snap.BatchFailed) / float64(snap.BatchTotal)
	}
	if items := snap.ItemsImported + snap.ItemErrors; items > 0 {
		snap.ItemErrorRate = float64(snap.ItemErrors) / float64(items)
	}
	return snap, nil
}
