package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/herdledger/herdledger/internal/integrity"
	jobmetrics "github.com/herdledger/herdledger/internal/jobs"
	"github.com/herdledger/herdledger/internal/shared"
)

// TaskIntegrityScan checks journal entries for balance violations.
const TaskIntegrityScan = "integrity:scan"

// IntegrityScanPayload selects the scope of the scan.
type IntegrityScanPayload struct {
	CompanyID string `json:"company_id"`
	Period    string `json:"period"`
}

// IntegrityChecker reports malformed entries for a company and period.
type IntegrityChecker interface {
	Check(ctx context.Context, companyID int64, period shared.Period) (integrity.Report, error)
}

// IntegrityScanJob runs the scheduled scan. It only reports; repair stays a
// deliberate operator action through the HTTP surface.
type IntegrityScanJob struct {
	Checker   IntegrityChecker
	Companies CompanySource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewIntegrityScanJob constructs the job handler.
func NewIntegrityScanJob(checker IntegrityChecker, companies CompanySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{
		Checker:   checker,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewIntegrityScanTask creates the Asynq task. Empty scope means all
// companies for the previous calendar month.
func NewIntegrityScanTask(companyID, period string) (*asynq.Task, error) {
	if companyID == "" {
		companyID = "all"
	}
	if period == "" {
		period = "previous"
	}
	body, err := json.Marshal(IntegrityScanPayload{CompanyID: companyID, Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntegrityScan, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes the integrity scan.
func (j *IntegrityScanJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Checker == nil || j.Companies == nil {
		return errors.New("integrity scan: dependencies not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskIntegrityScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	period := shared.PeriodOf(j.now()).Prev()
	if payload.Period != "" && payload.Period != "previous" {
		var err error
		if period, err = shared.ParsePeriod(payload.Period); err != nil {
			resultErr = err
			j.log().Error("resolve period", slog.String("period", payload.Period), slog.Any("error", err))
			return resultErr
		}
	}
	companyIDs, err := j.resolveCompanies(ctx, payload.CompanyID)
	if err != nil {
		resultErr = err
		j.log().Error("resolve companies", slog.String("company", payload.CompanyID), slog.Any("error", err))
		return resultErr
	}

	for _, companyID := range companyIDs {
		report, err := j.Checker.Check(ctx, companyID, period)
		if err != nil {
			resultErr = err
			j.log().Error("integrity check", slog.Int64("company_id", companyID), slog.Any("error", err))
			return resultErr
		}
		if len(report.Findings) == 0 {
			continue
		}
		j.metrics().AddDrift(companyID, len(report.Findings))
		j.log().Warn("integrity findings",
			slog.Int64("company_id", companyID),
			slog.String("period", period.Code()),
			slog.Int("findings", len(report.Findings)))
	}
	return resultErr
}

func (j *IntegrityScanJob) resolveCompanies(ctx context.Context, company string) ([]int64, error) {
	if company == "" || company == "all" {
		return j.Companies.ListCompanyIDs(ctx)
	}
	id, err := strconv.ParseInt(company, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid company id " + company)
	}
	return []int64{id}, nil
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *IntegrityScanJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskIntegrityScan))
}

func (j *IntegrityScanJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
