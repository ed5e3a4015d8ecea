package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/currency"
)

// Schedule names.
const (
	ScheduleSnapshots = "snapshots"
	ScheduleRates     = "exchange_rates"
)

// SnapshotCapturer captures today's balances for one user.
type SnapshotCapturer interface {
	CaptureUser(ctx context.Context, userID int64) (*balance.CaptureResult, error)
}

// RateRefresher refreshes recent exchange rates.
type RateRefresher interface {
	RefreshRecent(ctx context.Context, days int) (*currency.BackfillResult, error)
}

// UserLister lists users owning some resource.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// SnapshotJob captures balances for a single user.
type SnapshotJob struct {
	userID    int64
	snapshots SnapshotCapturer
}

func NewSnapshotJob(userID int64, snapshots SnapshotCapturer) *SnapshotJob {
	return &SnapshotJob{userID: userID, snapshots: snapshots}
}

// Execute fails when any of the user's links could not be captured so the
// failure shows in job metrics; captured links are kept regardless.
func (j *SnapshotJob) Execute(ctx context.Context) error {
	result, err := j.snapshots.CaptureUser(ctx, j.userID)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	slog.InfoContext(ctx, "snapshot capture finished",
		slog.Int64("user_id", j.userID),
		slog.Int("links", result.Links),
		slog.Int("snapshots", result.Snapshots),
		slog.Int("errors", len(result.Errors)),
	)
	if len(result.Errors) > 0 {
		return fmt.Errorf("capture completed with %d link errors", len(result.Errors))
	}
	return nil
}

func (j *SnapshotJob) Subject() string {
	return strconv.FormatInt(j.userID, 10)
}

func (j *SnapshotJob) Description() string {
	return fmt.Sprintf("Balance snapshot for user %d", j.userID)
}

// ExchangeRateJob refreshes the last days of rates for every currency in use.
type ExchangeRateJob struct {
	days  int
	rates RateRefresher
}

func NewExchangeRateJob(days int, rates RateRefresher) *ExchangeRateJob {
	return &ExchangeRateJob{days: days, rates: rates}
}

func (j *ExchangeRateJob) Execute(ctx context.Context) error {
	result, err := j.rates.RefreshRecent(ctx, j.days)
	if err != nil {
		return fmt.Errorf("rate refresh failed: %w", err)
	}
	slog.InfoContext(ctx, "exchange rate refresh finished",
		slog.Any("currencies", result.Currencies),
		slog.Int("fetched", result.Fetched),
		slog.Int("filled", result.Filled),
		slog.Int("stored", result.Stored),
	)
	return nil
}

func (j *ExchangeRateJob) Subject() string {
	return "rates"
}

func (j *ExchangeRateJob) Description() string {
	return fmt.Sprintf("Exchange rate refresh (%d days)", j.days)
}

// SnapshotJobs returns a provider yielding one SnapshotJob per user found by
// any of the listers (users with links, users with accounts).
func SnapshotJobs(snapshots SnapshotCapturer, listers ...UserLister) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		var ids []int64
		for _, l := range listers {
			found, err := l.ListUserIDs(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list users: %w", err)
			}
			ids = append(ids, found...)
		}
		slices.Sort(ids)
		ids = slices.Compact(ids)

		jobs := make([]Job, 0, len(ids))
		for _, id := range ids {
			jobs = append(jobs, NewSnapshotJob(id, snapshots))
		}
		return jobs, nil
	}
}

// ExchangeRateJobs returns a provider yielding a single ExchangeRateJob.
func ExchangeRateJobs(days int, rates RateRefresher) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		return []Job{NewExchangeRateJob(days, rates)}, nil
	}
}
