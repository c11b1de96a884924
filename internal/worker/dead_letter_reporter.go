package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/sav-service/internal/notify"
)

const reportSample = 5

// DeadLetterReporter periodically logs how many notifications are waiting in the
// dead-letter sink, with a sample of the most recent ones.
type DeadLetterReporter struct {
	sink   notify.DeadLetters
	logger *zap.Logger
	cron   *cron.Cron
}

// NewDeadLetterReporter parses a standard 5-field cron expression. An empty schedule
// disables the reporter and returns nil.
func NewDeadLetterReporter(schedule string, sink notify.DeadLetters, logger *zap.Logger) (*DeadLetterReporter, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, nil
	}
	r := &DeadLetterReporter{
		sink:   sink,
		logger: logger,
		cron:   cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.Report(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid dead letter schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start schedules the job.
func (r *DeadLetterReporter) Start() {
	if r == nil {
		return
	}
	r.cron.Start()
}

// Stop halts scheduling and waits for a running report to finish.
func (r *DeadLetterReporter) Stop() {
	if r == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// Report logs the current dead-letter backlog once.
func (r *DeadLetterReporter) Report(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	count, err := r.sink.Count(ctx)
	if err != nil {
		r.logger.Error("dead letter count failed", zap.Error(err))
		return
	}
	if count == 0 {
		r.logger.Debug("no undelivered notifications")
		return
	}
	recent, err := r.sink.Recent(ctx, reportSample)
	if err != nil {
		r.logger.Error("dead letter sample failed", zap.Error(err))
		return
	}
	tickets := make([]string, 0, len(recent))
	for _, f := range recent {
		tickets = append(tickets, f.Message.TicketID)
	}
	r.logger.Warn("undelivered notifications pending",
		zap.Int64("count", count),
		zap.Strings("recent_ticket_ids", tickets))
}
