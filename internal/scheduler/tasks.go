package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daneb/improver-mcp/internal/insights"
	"github.com/daneb/improver-mcp/internal/storage"
)

// MetricsStore is the storage surface of the metric rollup task.
type MetricsStore interface {
	QualityMetricsByDay(windowDays int) ([]storage.DayMetric, error)
	UpsertMetric(date, name string, value float64) error
}

// RetentionStore is the storage surface of the cleanup task.
type RetentionStore interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// InsightRunner is the miner surface the maintenance tasks need.
type InsightRunner interface {
	Run(ctx context.Context) ([]storage.Insight, error)
	WithExclusion(fn func() error) error
}

// RegisterMaintenance wires the standing tasks: daily insight mining,
// daily metric rollup, and retention cleanup. retentionDays <= 0 disables
// cleanup entirely.
func RegisterMaintenance(s *Scheduler, st *storage.Store, miner InsightRunner, retentionDays int) {
	s.Register("insights", 24*time.Hour, InsightTask(miner))
	s.Register("metrics", 24*time.Hour, MetricRollupTask(st))
	if retentionDays > 0 {
		s.Register("retention", 24*time.Hour, RetentionTask(st, miner, retentionDays))
	}
}

// InsightTask runs one mining pass. A pass already in flight is not an
// error; the scheduled run simply yields.
func InsightTask(miner InsightRunner) TaskFunc {
	return func(ctx context.Context) error {
		_, err := miner.Run(ctx)
		if errors.Is(err, insights.ErrAlreadyRunning) {
			return nil
		}
		return err
	}
}

// MetricRollupTask recomputes the per-day aggregates for the last two
// calendar days and upserts them, so reruns converge instead of
// duplicating.
func MetricRollupTask(st MetricsStore) TaskFunc {
	return func(ctx context.Context) error {
		days, err := st.QualityMetricsByDay(2)
		if err != nil {
			return fmt.Errorf("computing day metrics: %w", err)
		}
		for _, d := range days {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := st.UpsertMetric(d.Date, "avg_quality", d.AverageQuality); err != nil {
				return fmt.Errorf("upserting avg_quality for %s: %w", d.Date, err)
			}
			if err := st.UpsertMetric(d.Date, "prompt_count", float64(d.Count)); err != nil {
				return fmt.Errorf("upserting prompt_count for %s: %w", d.Date, err)
			}
		}
		return nil
	}
}

// RetentionTask deletes prompts (and their responses) older than the
// retention horizon. It holds the miner's exclusion so a mining pass never
// sees a half-deleted window.
func RetentionTask(st RetentionStore, miner InsightRunner, retentionDays int) TaskFunc {
	return func(ctx context.Context) error {
		return miner.WithExclusion(func() error {
			cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
			n, err := st.DeleteOlderThan(cutoff)
			if err != nil {
				return fmt.Errorf("deleting records before %s: %w", cutoff.Format(time.RFC3339), err)
			}
			if n > 0 {
				slog.Info("retention cleanup complete", "deleted", n, "cutoff", cutoff.Format("2006-01-02"))
			}
			return nil
		})
	}
}
