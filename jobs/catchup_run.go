package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/herdledger/herdledger/internal/catchup"
	jobmetrics "github.com/herdledger/herdledger/internal/jobs"
	"github.com/herdledger/herdledger/internal/shared"
)

// TaskCatchupRun backfills missed depreciation periods per company.
const TaskCatchupRun = "catchup:run"

// CatchupRunPayload selects the companies to backfill.
type CatchupRunPayload struct {
	CompanyID string `json:"company_id"`
}

// CatchupRunner executes a catch-up pass for one company.
type CatchupRunner interface {
	Run(ctx context.Context, companyID int64) (catchup.Progress, error)
}

// CatchupRunJob coordinates scheduled catch-up passes.
type CatchupRunJob struct {
	Runner    CatchupRunner
	Companies CompanySource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewCatchupRunJob constructs the job handler.
func NewCatchupRunJob(runner CatchupRunner, companies CompanySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatchupRunJob {
	return &CatchupRunJob{Runner: runner, Companies: companies, Logger: logger, Metrics: metrics}
}

// NewCatchupRunTask creates the Asynq task. Empty scope means all companies.
func NewCatchupRunTask(companyID string) (*asynq.Task, error) {
	if companyID == "" {
		companyID = "all"
	}
	body, err := json.Marshal(CatchupRunPayload{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatchupRun, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes the catch-up job. A held lock means another run is already
// covering that company, so it is logged and skipped rather than retried.
func (j *CatchupRunJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Runner == nil || j.Companies == nil {
		return errors.New("catchup run: dependencies not configured")
	}
	var payload CatchupRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskCatchupRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	companyIDs, err := j.resolveCompanies(ctx, payload.CompanyID)
	if err != nil {
		resultErr = err
		j.log().Error("resolve companies", slog.String("company", payload.CompanyID), slog.Any("error", err))
		return resultErr
	}

	start := time.Now()
	for _, companyID := range companyIDs {
		progress, err := j.Runner.Run(ctx, companyID)
		switch {
		case err == nil:
			j.log().Info("catchup finished",
				slog.Int64("company_id", companyID),
				slog.Int("processed", progress.Processed),
				slog.Int("created", progress.Created),
				slog.Int("errors", len(progress.Errors)))
		case errors.Is(err, shared.ErrLockHeld):
			j.log().Info("catchup already running", slog.Int64("company_id", companyID))
		default:
			resultErr = err
			j.log().Error("catchup run", slog.Int64("company_id", companyID), slog.Any("error", err))
			return resultErr
		}
	}
	j.log().Info("catchup job finished", slog.Int("companies", len(companyIDs)), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *CatchupRunJob) resolveCompanies(ctx context.Context, company string) ([]int64, error) {
	if company == "" || company == "all" {
		return j.Companies.ListCompanyIDs(ctx)
	}
	id, err := strconv.ParseInt(company, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid company id " + company)
	}
	return []int64{id}, nil
}

func (j *CatchupRunJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *CatchupRunJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCatchupRun))
	}
	return slog.Default().With(slog.String("job", TaskCatchupRun))
}
