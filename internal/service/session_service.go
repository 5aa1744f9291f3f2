package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/stemsi/examflow-backend/internal/config"
	"github.com/stemsi/examflow-backend/internal/model"
)

// SessionService owns the exam session state machine:
//
//	NOT_STARTED -> IN_PROGRESS -> SUBMITTED
//	NOT_STARTED -> ABSENT
//	IN_PROGRESS -> DISCIPLINARY
//
// SUBMITTED, ABSENT and DISCIPLINARY are terminal. All transitions take the
// per-session lock and re-read the session under it, so one student request
// and one sweep pass can never interleave mid-transition. Cross-process
// races settle on the conditional write in SessionStore.MarkSubmitted.
type SessionService struct {
	examStore     ExamStore
	sessionStore  SessionStore
	answerStore   AnswerStore
	questionStore QuestionStore
	grantStore    GrantStore
	aggregator    *ScoreAggregator
	locks         *SessionLocks
	redisClient   *redis.Client

	now func() time.Time
}

func NewSessionService(
	examStore ExamStore,
	sessionStore SessionStore,
	answerStore AnswerStore,
	questionStore QuestionStore,
	grantStore GrantStore,
	aggregator *ScoreAggregator,
	locks *SessionLocks,
	redisClient *redis.Client,
) *SessionService {
	return &SessionService{
		examStore:     examStore,
		sessionStore:  sessionStore,
		answerStore:   answerStore,
		questionStore: questionStore,
		grantStore:    grantStore,
		aggregator:    aggregator,
		locks:         locks,
		redisClient:   redisClient,
		now:           time.Now,
	}
}

// StartSession opens (or re-enters) a student's attempt and returns the
// session together with the paper snapshot. Re-entry into an in-progress
// session is idempotent: the original start time and deadline stand.
func (s *SessionService) StartSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, *model.PaperSnapshot, int64, error) {
	exam, err := s.examStore.GetByID(ctx, examID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("get exam: %w", err)
	}

	now := s.now()
	if now.Before(exam.StartTime) {
		return nil, nil, 0, ErrExamNotOpen
	}
	if !now.Before(exam.EndTime) {
		return nil, nil, 0, ErrExamWindowClosed
	}

	if err := s.checkGrant(ctx, examID, studentID, now); err != nil {
		return nil, nil, 0, err
	}

	unlock := s.locks.Lock(examID, studentID)
	defer unlock()

	sess, err := s.sessionStore.GetByExamAndStudent(ctx, examID, studentID)
	switch {
	case err == nil:
		if err := terminalError(sess); err != nil {
			return nil, nil, 0, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		sess = &model.ExamSession{
			ID:        uuid.New(),
			ExamID:    examID,
			StudentID: studentID,
			StartedAt: &now,
		}
		if err := s.sessionStore.Create(ctx, sess); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, 0, fmt.Errorf("create session: %w", err)
			}
			// Lost a cross-process create race; adopt the winner's row.
			sess, err = s.sessionStore.GetByExamAndStudent(ctx, examID, studentID)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("reload session: %w", err)
			}
			if err := terminalError(sess); err != nil {
				return nil, nil, 0, err
			}
		} else if _, err := s.aggregator.Recompute(ctx, sess); err != nil {
			// Fresh session: bring the zero score record into existence.
			return nil, nil, 0, fmt.Errorf("init score record: %w", err)
		}
	default:
		return nil, nil, 0, fmt.Errorf("get session: %w", err)
	}

	s.cacheStartTime(ctx, exam, studentID, *sess.StartedAt)

	snapshot, err := s.paperSnapshot(ctx, exam)
	if err != nil {
		return nil, nil, 0, err
	}

	return sess, snapshot, s.remainingSeconds(exam, *sess.StartedAt, now), nil
}

// SubmitAnswer validates, auto-grades (objective types) and upserts one
// answer, then recomputes the aggregate. A malformed answer is rejected
// before any write, leaving the ledger untouched. Writes stop at the exam
// end boundary even if the sweep has not finalized the session yet.
func (s *SessionService) SubmitAnswer(ctx context.Context, examID uuid.UUID, studentID int, req model.SubmitAnswerRequest) (*model.AnswerRecord, error) {
	exam, err := s.examStore.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	now := s.now()
	if !now.Before(exam.EndTime) {
		return nil, ErrExamWindowClosed
	}

	unlock := s.locks.Lock(examID, studentID)
	defer unlock()

	sess, err := s.activeSession(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	question, err := s.questionStore.GetByID(ctx, req.QuestionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotInPaper
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	if question.PaperID != exam.PaperID {
		return nil, ErrQuestionNotInPaper
	}

	rec := &model.AnswerRecord{
		ID:         uuid.New(),
		ExamID:     examID,
		StudentID:  studentID,
		QuestionID: question.ID,
		Answer:     req.Answer,
		Status:     model.GradingStatusUngraded,
		UpdatedAt:  now,
	}

	if question.Type.Objective() {
		score, err := GradeObjective(question, req.Answer)
		if err != nil {
			return nil, err
		}
		rec.Score = score
		rec.Status = model.GradingStatusGraded
	}

	if err := s.answerStore.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("upsert answer: %w", err)
	}

	if _, err := s.aggregator.Recompute(ctx, sess); err != nil {
		return nil, fmt.Errorf("recompute score: %w", err)
	}

	return rec, nil
}

// SubmitExam finalizes a student's own attempt and returns the session
// with the recorded total. Every paper question must have an answer
// record; otherwise the submit is rejected with the missing question IDs
// and the session stays in progress.
func (s *SessionService) SubmitExam(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, float64, error) {
	exam, err := s.examStore.GetByID(ctx, examID)
	if err != nil {
		return nil, 0, fmt.Errorf("get exam: %w", err)
	}

	unlock := s.locks.Lock(examID, studentID)
	defer unlock()

	sess, err := s.activeSession(ctx, examID, studentID)
	if err != nil {
		return nil, 0, err
	}

	questions, err := s.questionStore.ListByPaper(ctx, exam.PaperID)
	if err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}
	records, err := s.answerStore.ListBySession(ctx, examID, studentID)
	if err != nil {
		return nil, 0, fmt.Errorf("list answers: %w", err)
	}

	answered := make(map[uuid.UUID]bool, len(records))
	for _, rec := range records {
		answered[rec.QuestionID] = true
	}
	var missing []uuid.UUID
	for _, q := range questions {
		if !answered[q.ID] {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		return nil, 0, &IncompleteAnswersError{Missing: missing}
	}

	now := s.now()
	won, err := s.sessionStore.MarkSubmitted(ctx, examID, studentID, now)
	if err != nil {
		return nil, 0, fmt.Errorf("mark submitted: %w", err)
	}
	if !won {
		return nil, 0, ErrAlreadySubmitted
	}
	sess.SubmittedAt = &now

	total, err := s.aggregator.Recompute(ctx, sess)
	if err != nil {
		return nil, 0, fmt.Errorf("recompute score: %w", err)
	}

	s.publishMonitorEvent(ctx, sess)
	return sess, total, nil
}

// ForceSubmit finalizes a session on the system's behalf, filling every
// unanswered question with an empty zero-score record first. Calling it on
// an already-submitted session is a no-op, so the sweep can re-run freely.
func (s *SessionService) ForceSubmit(ctx context.Context, examID uuid.UUID, studentID int) error {
	exam, err := s.examStore.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}

	unlock := s.locks.Lock(examID, studentID)
	defer unlock()

	sess, err := s.sessionStore.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotStarted
		}
		return fmt.Errorf("get session: %w", err)
	}
	if sess.SubmittedAt != nil {
		return nil
	}

	if err := s.fillMissingAnswers(ctx, exam, studentID); err != nil {
		return err
	}

	now := s.now()
	won, err := s.sessionStore.MarkSubmitted(ctx, examID, studentID, now)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if !won {
		return nil
	}
	sess.SubmittedAt = &now

	if _, err := s.aggregator.Recompute(ctx, sess); err != nil {
		return fmt.Errorf("recompute score: %w", err)
	}

	s.publishMonitorEvent(ctx, sess)
	return nil
}

// MarkAbsent records a never-started student as absent and force-submits
// the empty attempt: the session row is created terminal with no start
// time, every question gets an empty zero-score record, the submit time is
// stamped and the zero score plus the retake flag are written. Re-running
// on an existing session is a no-op so sweep passes stay idempotent.
func (s *SessionService) MarkAbsent(ctx context.Context, examID uuid.UUID, studentID int) error {
	exam, err := s.examStore.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}

	unlock := s.locks.Lock(examID, studentID)
	defer unlock()

	_, err = s.sessionStore.GetByExamAndStudent(ctx, examID, studentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("get session: %w", err)
	}

	sess := &model.ExamSession{
		ID:        uuid.New(),
		ExamID:    examID,
		StudentID: studentID,
		Absent:    true,
	}
	if err := s.sessionStore.Create(ctx, sess); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The student started in another process just now; leave
			// their live session alone.
			return nil
		}
		return fmt.Errorf("create absent session: %w", err)
	}

	if err := s.fillMissingAnswers(ctx, exam, studentID); err != nil {
		return err
	}
	now := s.now()
	if won, err := s.sessionStore.MarkSubmitted(ctx, examID, studentID, now); err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	} else if won {
		sess.SubmittedAt = &now
	}

	if _, err := s.aggregator.Recompute(ctx, sess); err != nil {
		return fmt.Errorf("recompute score: %w", err)
	}

	s.publishMonitorEvent(ctx, sess)
	return nil
}

// MarkDisciplinary ejects a student from an in-progress attempt: the
// session is force-submitted, flagged disciplinary with the teacher's
// comment, and the recorded total is forced to zero with the retake flag
// set. Only the exam's own teacher may do this. Repeating the call on an
// already-flagged session is a no-op.
func (s *SessionService) MarkDisciplinary(ctx context.Context, examID uuid.UUID, studentID, teacherID int, comment string) (*model.ExamSession, error) {
	exam, err := s.examStore.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.TeacherID != teacherID {
		return nil, ErrNotExamTeacher
	}

	unlock := s.locks.Lock(examID, studentID)
	defer unlock()

	sess, err := s.sessionStore.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotStarted
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Disciplinary {
		return sess, nil
	}
	if sess.Absent {
		return nil, ErrMarkedAbsent
	}
	if sess.StartedAt == nil {
		return nil, ErrSessionNotStarted
	}

	if sess.SubmittedAt == nil {
		if err := s.fillMissingAnswers(ctx, exam, studentID); err != nil {
			return nil, err
		}
		now := s.now()
		if won, err := s.sessionStore.MarkSubmitted(ctx, examID, studentID, now); err != nil {
			return nil, fmt.Errorf("mark submitted: %w", err)
		} else if won {
			sess.SubmittedAt = &now
		}
	}

	if err := s.sessionStore.MarkDisciplinary(ctx, examID, studentID, comment); err != nil {
		return nil, fmt.Errorf("mark disciplinary: %w", err)
	}
	sess.Disciplinary = true
	sess.TeacherComment = comment

	if _, err := s.aggregator.Recompute(ctx, sess); err != nil {
		return nil, fmt.Errorf("recompute score: %w", err)
	}

	s.publishMonitorEvent(ctx, sess)
	return sess, nil
}

// GetExamState reports the student's view of their session, including the
// per-student remaining time. The start time is read through the Redis
// cache and healed from the database on a miss.
func (s *SessionService) GetExamState(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamStateResponse, error) {
	exam, err := s.examStore.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	sess, err := s.sessionStore.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.ExamStateResponse{Status: model.SessionStatusNotStarted}, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	resp := &model.ExamStateResponse{
		Status:       sess.Status(),
		StartedAt:    sess.StartedAt,
		SubmittedAt:  sess.SubmittedAt,
		RetakeNeeded: sess.RetakeNeeded,
	}
	if resp.Status != model.SessionStatusInProgress {
		return resp, nil
	}

	// Reconnect support: the client restores its progress marks from the
	// answered set.
	records, err := s.answerStore.ListBySession(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	for _, rec := range records {
		resp.AnsweredQuestionIDs = append(resp.AnsweredQuestionIDs, rec.QuestionID)
	}

	startedAt := s.cachedStartTime(ctx, exam, studentID)
	if startedAt == nil {
		startedAt = sess.StartedAt
		s.cacheStartTime(ctx, exam, studentID, *startedAt)
	}
	resp.RemainingSeconds = s.remainingSeconds(exam, *startedAt, s.now())
	return resp, nil
}

func (s *SessionService) checkGrant(ctx context.Context, examID uuid.UUID, studentID int, now time.Time) error {
	grant, err := s.grantStore.Get(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotAuthorized
		}
		return fmt.Errorf("get grant: %w", err)
	}
	if grant.ExpiresAt != nil && now.After(*grant.ExpiresAt) {
		return ErrNotAuthorized
	}
	return nil
}

// activeSession loads the session and requires it to be in progress.
// A missing or never-started session is not active; terminal sessions
// keep their specific errors.
func (s *SessionService) activeSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	sess, err := s.sessionStore.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotActive
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := terminalError(sess); err != nil {
		return nil, err
	}
	if sess.StartedAt == nil {
		return nil, ErrSessionNotActive
	}
	return sess, nil
}

func terminalError(sess *model.ExamSession) error {
	switch {
	case sess.Disciplinary:
		return ErrMarkedDisciplinary
	case sess.Absent:
		return ErrMarkedAbsent
	case sess.SubmittedAt != nil:
		return ErrAlreadySubmitted
	default:
		return nil
	}
}

// fillMissingAnswers inserts a graded zero-score record for every paper
// question still missing from the ledger. Inserts use DO NOTHING
// semantics, so concurrent fillers are commutative.
func (s *SessionService) fillMissingAnswers(ctx context.Context, exam *model.Exam, studentID int) error {
	questions, err := s.questionStore.ListByPaper(ctx, exam.PaperID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	records, err := s.answerStore.ListBySession(ctx, exam.ID, studentID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}

	answered := make(map[uuid.UUID]bool, len(records))
	for _, rec := range records {
		answered[rec.QuestionID] = true
	}

	now := s.now()
	var fill []model.AnswerRecord
	for _, q := range questions {
		if answered[q.ID] {
			continue
		}
		fill = append(fill, model.AnswerRecord{
			ID:         uuid.New(),
			ExamID:     exam.ID,
			StudentID:  studentID,
			QuestionID: q.ID,
			Answer:     "",
			Score:      0,
			Status:     model.GradingStatusGraded,
			UpdatedAt:  now,
		})
	}
	if len(fill) == 0 {
		return nil
	}
	if err := s.answerStore.InsertMissing(ctx, fill); err != nil {
		return fmt.Errorf("fill missing answers: %w", err)
	}
	return nil
}

func (s *SessionService) paperSnapshot(ctx context.Context, exam *model.Exam) (*model.PaperSnapshot, error) {
	questions, err := s.questionStore.ListByPaper(ctx, exam.PaperID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	snapshot := &model.PaperSnapshot{ExamID: exam.ID, Title: exam.Title}
	for i := range questions {
		snapshot.Questions = append(snapshot.Questions, questions[i].ForStudent())
	}
	return snapshot, nil
}

// remainingSeconds clamps the per-student countdown at zero: the earlier
// of the personal deadline and the exam end boundary.
func (s *SessionService) remainingSeconds(exam *model.Exam, startedAt, now time.Time) int64 {
	deadline := startedAt.Add(time.Duration(exam.DurationMinutes) * time.Minute)
	if exam.EndTime.Before(deadline) {
		deadline = exam.EndTime
	}
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return int64(remaining.Seconds())
}

func (s *SessionService) cacheStartTime(ctx context.Context, exam *model.Exam, studentID int, startedAt time.Time) {
	key := config.CacheKey.SessionStartKey(exam.ID.String(), studentID)
	ttl := exam.EndTime.Sub(s.now()) + time.Hour
	if ttl <= 0 {
		return
	}
	if err := s.redisClient.Set(ctx, key, startedAt.Format(time.RFC3339Nano), ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to cache session start time")
	}
}

func (s *SessionService) cachedStartTime(ctx context.Context, exam *model.Exam, studentID int) *time.Time {
	key := config.CacheKey.SessionStartKey(exam.ID.String(), studentID)
	raw, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("failed to read cached session start time")
		}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}

func (s *SessionService) publishMonitorEvent(ctx context.Context, sess *model.ExamSession) {
	event := model.MonitorEvent{
		ExamID:    sess.ExamID.String(),
		StudentID: sess.StudentID,
		Status:    sess.Status(),
		At:        s.now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	channel := config.CacheKey.ExamMonitorChannel(event.ExamID)
	if err := s.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("failed to publish monitor event")
	}
}
