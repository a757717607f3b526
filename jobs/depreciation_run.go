package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/herdledger/herdledger/internal/jobs"
	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/shared"
)

// TaskDepreciationRun posts the monthly depreciation entry per company.
const TaskDepreciationRun = "depreciation:run"

// DepreciationRunPayload configures the scope of a depreciation run.
type DepreciationRunPayload struct {
	CompanyID string `json:"company_id"`
	Period    string `json:"period"`
}

// MonthlyPoster posts one depreciation entry for a company and period.
type MonthlyPoster interface {
	PostMonth(ctx context.Context, companyID int64, period shared.Period) (journal.JournalEntry, error)
}

// DepreciationRunJob coordinates the scheduled monthly posting.
type DepreciationRunJob struct {
	Poster    MonthlyPoster
	Companies CompanySource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewDepreciationRunJob constructs the job handler.
func NewDepreciationRunJob(poster MonthlyPoster, companies CompanySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *DepreciationRunJob {
	return &DepreciationRunJob{
		Poster:    poster,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewDepreciationRunTask creates the Asynq task. Empty scope means all
// companies for the previous calendar month.
func NewDepreciationRunTask(companyID, period string) (*asynq.Task, error) {
	if companyID == "" {
		companyID = "all"
	}
	if period == "" {
		period = "previous"
	}
	body, err := json.Marshal(DepreciationRunPayload{CompanyID: companyID, Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationRun, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes the depreciation run.
func (j *DepreciationRunJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Poster == nil || j.Companies == nil {
		return errors.New("depreciation run: dependencies not configured")
	}
	var payload DepreciationRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskDepreciationRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	period, err := j.resolvePeriod(payload.Period)
	if err != nil {
		resultErr = err
		j.log().Error("resolve period", slog.String("period", payload.Period), slog.Any("error", err))
		return resultErr
	}
	companyIDs, err := j.resolveCompanies(ctx, payload.CompanyID)
	if err != nil {
		resultErr = err
		j.log().Error("resolve companies", slog.String("company", payload.CompanyID), slog.Any("error", err))
		return resultErr
	}

	start := j.now()
	posted := 0
	for _, companyID := range companyIDs {
		_, err := j.Poster.PostMonth(ctx, companyID, period)
		switch {
		case err == nil:
			posted++
		case errors.Is(err, journal.ErrSourceConflict):
			j.log().Info("depreciation already posted", slog.Int64("company_id", companyID), slog.String("period", period.Code()))
		case errors.Is(err, journal.ErrNothingToCompose):
			j.log().Info("no depreciation due", slog.Int64("company_id", companyID), slog.String("period", period.Code()))
		default:
			resultErr = err
			j.log().Error("post depreciation", slog.Int64("company_id", companyID), slog.String("period", period.Code()), slog.Any("error", err))
			return resultErr
		}
	}
	j.log().Info("depreciation run finished", slog.String("period", period.Code()), slog.Int("posted", posted), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *DepreciationRunJob) resolvePeriod(code string) (shared.Period, error) {
	if code == "" || code == "previous" {
		return shared.PeriodOf(j.now()).Prev(), nil
	}
	return shared.ParsePeriod(code)
}

func (j *DepreciationRunJob) resolveCompanies(ctx context.Context, company string) ([]int64, error) {
	if company == "" || company == "all" {
		return j.Companies.ListCompanyIDs(ctx)
	}
	id, err := strconv.ParseInt(company, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid company id " + company)
	}
	return []int64{id}, nil
}

func (j *DepreciationRunJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *DepreciationRunJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDepreciationRun))
	}
	return slog.Default().With(slog.String("job", TaskDepreciationRun))
}

func (j *DepreciationRunJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *DepreciationRunJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
