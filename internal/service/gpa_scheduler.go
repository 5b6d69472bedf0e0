package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/pkg/jobs"
)

type recomputePayload struct {
	StudentID string
	TermID    string
}

// GPARecomputeScheduler pushes GPA recompute work onto the background queue
// so grade publication never blocks on aggregate maintenance.
type GPARecomputeScheduler struct {
	queue  jobDispatcher
	logger *zap.Logger
}

// NewGPARecomputeScheduler constructs the scheduler.
func NewGPARecomputeScheduler(queue jobDispatcher, logger *zap.Logger) *GPARecomputeScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GPARecomputeScheduler{queue: queue, logger: logger}
}

// ScheduleRecompute enqueues a recompute for one (student, term) pair.
// Failures are logged, not surfaced: the aggregates are recomputed from
// scratch on the next run so a lost job is self-healing.
func (s *GPARecomputeScheduler) ScheduleRecompute(studentID, termID string) {
	job := jobs.Job{
		ID:      fmt.Sprintf("gpa:%s:%s", studentID, termID),
		Type:    "gpa_recompute",
		Payload: recomputePayload{StudentID: studentID, TermID: termID},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue gpa recompute",
			zap.String("student_id", studentID),
			zap.String("term_id", termID),
			zap.Error(err))
	}
}

// GPARecomputeHandler returns the queue handler that runs recompute jobs.
func GPARecomputeHandler(gpa *GPAService, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(recomputePayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		if _, _, err := gpa.CalculateStudentGPA(ctx, payload.StudentID, payload.TermID); err != nil {
			return err
		}
		logger.Debug("gpa recomputed",
			zap.String("student_id", payload.StudentID),
			zap.String("term_id", payload.TermID))
		return nil
	}
}
