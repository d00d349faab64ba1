package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketplace/internal/common"
	"marketplace/internal/jobs"
	"marketplace/internal/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const QuotaAuditJob = "quota-audit"

// JobScheduler runs the service's periodic jobs.
type JobScheduler struct {
	scheduler gocron.Scheduler
	auditSvc  *jobs.QuotaAuditService
	interval  time.Duration
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates a new job scheduler with the quota audit registered.
func NewJobScheduler(auditSvc *jobs.QuotaAuditService, auditInterval time.Duration) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		auditSvc:  auditSvc,
		interval:  auditInterval,
		jobs:      make(map[string]gocron.Job),
	}

	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	logger.GetLogger().Info("starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	logger.GetLogger().Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	auditJob, err := js.scheduler.NewJob(
		gocron.DurationJob(js.interval),
		gocron.NewTask(js.runQuotaAudit),
		gocron.WithName(QuotaAuditJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s job: %w", QuotaAuditJob, err)
	}

	js.mu.Lock()
	js.jobs[QuotaAuditJob] = auditJob
	js.mu.Unlock()
	return nil
}

func (js *JobScheduler) runQuotaAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), js.interval)
	defer cancel()
	ctx = logger.WithContext(ctx, logger.GetLogger().With(zap.String("job", QuotaAuditJob)))

	// failures are logged by the audit itself; the next run retries
	_, _ = js.auditSvc.Audit(ctx)
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: job %q", common.ErrNotFound, name)
	}
	logger.GetLogger().Info("job triggered manually", zap.String("job", name))
	return job.RunNow()
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	jobs := make([]map[string]interface{}, 0, len(js.jobs))
	for name, job := range js.jobs {
		entry := map[string]interface{}{"name": name}
		if next, err := job.NextRun(); err == nil {
			entry["next_run"] = next
		}
		if last, err := job.LastRun(); err == nil && !last.IsZero() {
			entry["last_run"] = last
		}
		jobs = append(jobs, entry)
	}

	return map[string]interface{}{
		"total_jobs": len(js.jobs),
		"jobs":       jobs,
	}
}
