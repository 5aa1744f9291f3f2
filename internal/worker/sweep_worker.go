package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examflow-backend/internal/model"
	"github.com/stemsi/examflow-backend/internal/service"
)

// SweepWorker is the scheduler backstop of the session lifecycle. Every
// tick it runs two idempotent passes:
//
//  1. Finalize: exams whose window just closed, plus running exams with
//     sessions past their personal deadline, get their leftover
//     in-progress sessions force-submitted.
//  2. Absence: exams open longer than the grace period get every granted
//     student without a session marked absent.
//
// Both passes isolate failures per session: one broken row is logged and
// skipped, the rest of the sweep continues. Re-running a pass over
// already-finalized sessions is a no-op.
type SweepWorker struct {
	sessions     *service.SessionService
	examStore    service.ExamStore
	sessionStore service.SessionStore
	grantStore   service.GrantStore
	audit        *service.AuditRecorder
	log          zerolog.Logger

	interval    time.Duration
	lookback    time.Duration
	absentGrace time.Duration
	now         func() time.Time
}

func NewSweepWorker(
	sessions *service.SessionService,
	examStore service.ExamStore,
	sessionStore service.SessionStore,
	grantStore service.GrantStore,
	audit *service.AuditRecorder,
	log zerolog.Logger,
	interval, lookback, absentGrace time.Duration,
) *SweepWorker {
	return &SweepWorker{
		sessions:     sessions,
		examStore:    examStore,
		sessionStore: sessionStore,
		grantStore:   grantStore,
		audit:        audit,
		log:          log.With().Str("component", "sweep_worker").Logger(),
		interval:     interval,
		lookback:     lookback,
		absentGrace:  absentGrace,
		now:          time.Now,
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().
		Dur("interval", w.interval).
		Dur("lookback", w.lookback).
		Dur("absent_grace", w.absentGrace).
		Msg("SweepWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("SweepWorker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes both sweep passes once. Exposed so tests and operator
// tooling can trigger a sweep without the ticker.
func (w *SweepWorker) RunOnce(ctx context.Context) {
	now := w.now()
	w.finalizePass(ctx, now)
	w.absencePass(ctx, now)
}

// finalizePass force-submits sessions left in progress after their exam
// window closed or their personal deadline ran out.
func (w *SweepWorker) finalizePass(ctx context.Context, now time.Time) {
	ended, err := w.examStore.ListEndingBetween(ctx, now.Add(-w.lookback), now)
	if err != nil {
		w.log.Error().Err(err).Msg("list ended exams")
		return
	}
	for i := range ended {
		w.finalizeExam(ctx, &ended[i], now, false)
	}

	// Running exams: only sessions past started_at + duration are due.
	running, err := w.examStore.ListLateStart(ctx, now, now)
	if err != nil {
		w.log.Error().Err(err).Msg("list running exams")
		return
	}
	for i := range running {
		w.finalizeExam(ctx, &running[i], now, true)
	}
}

func (w *SweepWorker) finalizeExam(ctx context.Context, exam *model.Exam, now time.Time, deadlineOnly bool) {
	open, err := w.sessionStore.ListInProgressByExam(ctx, exam.ID)
	if err != nil {
		w.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("list in-progress sessions")
		return
	}

	duration := time.Duration(exam.DurationMinutes) * time.Minute
	for _, sess := range open {
		if deadlineOnly {
			if sess.StartedAt == nil || now.Before(sess.StartedAt.Add(duration)) {
				continue
			}
		}
		if err := w.sessions.ForceSubmit(ctx, exam.ID, sess.StudentID); err != nil {
			w.log.Error().Err(err).
				Str("exam_id", exam.ID.String()).
				Int("student_id", sess.StudentID).
				Msg("force submit failed, continuing sweep")
			continue
		}
		w.audit.Record(ctx, exam.ID, sess.StudentID, 0, model.AuditActionForceSubmit, "sweep", "OK")
	}
}

// absencePass marks granted students who never started as absent once the
// exam has been open longer than the grace period. Grants with an expiry
// belong to another sitting and are skipped by the store.
func (w *SweepWorker) absencePass(ctx context.Context, now time.Time) {
	exams, err := w.examStore.ListLateStart(ctx, now.Add(-w.absentGrace), now.Add(-w.lookback))
	if err != nil {
		w.log.Error().Err(err).Msg("list exams for absence pass")
		return
	}

	for i := range exams {
		exam := &exams[i]
		candidates, err := w.grantStore.ListAbsentCandidates(ctx, exam.ID)
		if err != nil {
			w.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("list absent candidates")
			continue
		}
		for _, studentID := range candidates {
			if err := w.sessions.MarkAbsent(ctx, exam.ID, studentID); err != nil {
				w.log.Error().Err(err).
					Str("exam_id", exam.ID.String()).
					Int("student_id", studentID).
					Msg("mark absent failed, continuing sweep")
				continue
			}
			w.audit.Record(ctx, exam.ID, studentID, 0, model.AuditActionMarkAbsent, "sweep", "OK")
		}
	}
}
