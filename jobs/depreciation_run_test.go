package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/shared"
)

type stubPoster struct {
	calls []string
	err   error
}

func (s *stubPoster) PostMonth(_ context.Context, _ int64, period shared.Period) (journal.JournalEntry, error) {
	s.calls = append(s.calls, period.Code())
	return journal.JournalEntry{ID: int64(len(s.calls))}, s.err
}

type stubCompanies struct {
	ids []int64
}

func (s stubCompanies) ListCompanyIDs(context.Context) ([]int64, error) {
	return s.ids, nil
}

func testJob(poster *stubPoster, companies CompanySource) *DepreciationRunJob {
	job := NewDepreciationRunJob(poster, companies, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	job.WithClock(func() time.Time {
		return time.Date(2023, time.August, 5, 0, 0, 0, 0, time.UTC)
	})
	return job
}

func TestDepreciationRunPostsPreviousMonthForAllCompanies(t *testing.T) {
	poster := &stubPoster{}
	job := testJob(poster, stubCompanies{ids: []int64{1, 2, 3}})

	task, err := NewDepreciationRunTask("all", "previous")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"2023-07", "2023-07", "2023-07"}, poster.calls)
}

func TestDepreciationRunExplicitScope(t *testing.T) {
	poster := &stubPoster{}
	job := testJob(poster, stubCompanies{ids: []int64{1, 2, 3}})

	task, err := NewDepreciationRunTask("2", "2023-03")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"2023-03"}, poster.calls)
}

func TestDepreciationRunTreatsConflictAsDone(t *testing.T) {
	poster := &stubPoster{err: journal.ErrSourceConflict}
	job := testJob(poster, stubCompanies{ids: []int64{1}})

	task, err := NewDepreciationRunTask("", "")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, poster.calls, 1)
}
