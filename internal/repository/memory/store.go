// Package memory provides map-backed implementations of the service store
// interfaces. They mirror the SQL repositories' contracts, including
// pgx.ErrNoRows on missing rows and conflict-tolerant inserts, so the
// services can be exercised in tests without a database.
//
// All tables live in one Store guarded by one mutex; the per-store view
// types (Exams, Sessions, ...) expose the interface surfaces over it.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examflow-backend/internal/model"
)

type sessionKey struct {
	examID    uuid.UUID
	studentID int
}

type answerKey struct {
	examID     uuid.UUID
	studentID  int
	questionID uuid.UUID
}

// Store holds all tables behind one mutex.
type Store struct {
	mu sync.Mutex

	exams     map[uuid.UUID]model.Exam
	sessions  map[sessionKey]model.ExamSession
	answers   map[answerKey]model.AnswerRecord
	answerIDs map[uuid.UUID]answerKey
	scores    map[sessionKey]model.ScoreRecord
	questions map[uuid.UUID]model.Question
	grants    map[sessionKey]model.ExamGrant
	students  map[int]model.Student
}

func NewStore() *Store {
	return &Store{
		exams:     make(map[uuid.UUID]model.Exam),
		sessions:  make(map[sessionKey]model.ExamSession),
		answers:   make(map[answerKey]model.AnswerRecord),
		answerIDs: make(map[uuid.UUID]answerKey),
		scores:    make(map[sessionKey]model.ScoreRecord),
		questions: make(map[uuid.UUID]model.Question),
		grants:    make(map[sessionKey]model.ExamGrant),
		students:  make(map[int]model.Student),
	}
}

// View constructors.

func (s *Store) Exams() Exams         { return Exams{s} }
func (s *Store) Sessions() Sessions   { return Sessions{s} }
func (s *Store) Answers() Answers     { return Answers{s} }
func (s *Store) Scores() Scores       { return Scores{s} }
func (s *Store) Results() Results     { return Results{s} }
func (s *Store) Questions() Questions { return Questions{s} }
func (s *Store) Grants() Grants       { return Grants{s} }

// Seed helpers for tests.

func (s *Store) AddExam(e model.Exam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[e.ID] = e
}

func (s *Store) AddQuestion(q model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
}

func (s *Store) AddGrant(g model.ExamGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[sessionKey{g.ExamID, g.StudentID}] = g
}

func (s *Store) AddStudent(st model.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.ID] = st
}

// Exams implements service.ExamStore.
type Exams struct{ s *Store }

func (v Exams) GetByID(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.exams[examID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (v Exams) ListEndingBetween(ctx context.Context, from, to time.Time) ([]model.Exam, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Exam
	for _, e := range v.s.exams {
		if e.EndTime.After(from) && !e.EndTime.After(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (v Exams) ListLateStart(ctx context.Context, startedBefore, relevantAfter time.Time) ([]model.Exam, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Exam
	for _, e := range v.s.exams {
		if !e.StartTime.After(startedBefore) && !e.EndTime.Before(relevantAfter) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// Sessions implements service.SessionStore.
type Sessions struct{ s *Store }

func (v Sessions) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sess, ok := v.s.sessions[sessionKey{examID, studentID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &sess, nil
}

func (v Sessions) Create(ctx context.Context, sess *model.ExamSession) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := sessionKey{sess.ExamID, sess.StudentID}
	if _, ok := v.s.sessions[key]; ok {
		return pgx.ErrNoRows
	}
	v.s.sessions[key] = *sess
	return nil
}

func (v Sessions) MarkSubmitted(ctx context.Context, examID uuid.UUID, studentID int, at time.Time) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := sessionKey{examID, studentID}
	sess, ok := v.s.sessions[key]
	if !ok || sess.SubmittedAt != nil {
		return false, nil
	}
	sess.SubmittedAt = &at
	v.s.sessions[key] = sess
	return true, nil
}

func (v Sessions) MarkDisciplinary(ctx context.Context, examID uuid.UUID, studentID int, comment string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := sessionKey{examID, studentID}
	sess, ok := v.s.sessions[key]
	if !ok {
		return pgx.ErrNoRows
	}
	sess.Disciplinary = true
	sess.TeacherComment = comment
	v.s.sessions[key] = sess
	return nil
}

func (v Sessions) SetRetakeNeeded(ctx context.Context, examID uuid.UUID, studentID int, needed bool) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := sessionKey{examID, studentID}
	sess, ok := v.s.sessions[key]
	if !ok {
		return pgx.ErrNoRows
	}
	sess.RetakeNeeded = needed
	v.s.sessions[key] = sess
	return nil
}

func (v Sessions) ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.ExamSession
	for _, sess := range v.s.sessions {
		if sess.ExamID == examID && sess.Status() == model.SessionStatusInProgress {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// Answers implements service.AnswerStore.
type Answers struct{ s *Store }

func (v Answers) GetByID(ctx context.Context, recordID uuid.UUID) (*model.AnswerRecord, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key, ok := v.s.answerIDs[recordID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	rec := v.s.answers[key]
	return &rec, nil
}

func (v Answers) ListBySession(ctx context.Context, examID uuid.UUID, studentID int) ([]model.AnswerRecord, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.AnswerRecord
	for key, rec := range v.s.answers {
		if key.examID == examID && key.studentID == studentID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QuestionID.String() < out[j].QuestionID.String()
	})
	return out, nil
}

func (v Answers) Upsert(ctx context.Context, rec *model.AnswerRecord) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := answerKey{rec.ExamID, rec.StudentID, rec.QuestionID}
	if existing, ok := v.s.answers[key]; ok {
		rec.ID = existing.ID
	}
	v.s.answers[key] = *rec
	v.s.answerIDs[rec.ID] = key
	return nil
}

func (v Answers) InsertMissing(ctx context.Context, recs []model.AnswerRecord) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, rec := range recs {
		key := answerKey{rec.ExamID, rec.StudentID, rec.QuestionID}
		if _, ok := v.s.answers[key]; ok {
			continue
		}
		v.s.answers[key] = rec
		v.s.answerIDs[rec.ID] = key
	}
	return nil
}

func (v Answers) UpdateScore(ctx context.Context, recordID uuid.UUID, score float64, status model.GradingStatus) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key, ok := v.s.answerIDs[recordID]
	if !ok {
		return pgx.ErrNoRows
	}
	rec := v.s.answers[key]
	rec.Score = score
	rec.Status = status
	rec.UpdatedAt = time.Now()
	v.s.answers[key] = rec
	return nil
}

// Scores implements service.ScoreStore.
type Scores struct{ s *Store }

func (v Scores) Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.ScoreRecord, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	rec, ok := v.s.scores[sessionKey{examID, studentID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &rec, nil
}

func (v Scores) Ensure(ctx context.Context, examID uuid.UUID, studentID int, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := sessionKey{examID, studentID}
	if _, ok := v.s.scores[key]; ok {
		return nil
	}
	v.s.scores[key] = model.ScoreRecord{
		ID:         uuid.New(),
		ExamID:     examID,
		StudentID:  studentID,
		UploadTime: at,
	}
	return nil
}

func (v Scores) SetTotal(ctx context.Context, examID uuid.UUID, studentID int, total float64, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := sessionKey{examID, studentID}
	rec, ok := v.s.scores[key]
	if !ok {
		return pgx.ErrNoRows
	}
	rec.TotalScore = total
	rec.UploadTime = at
	v.s.scores[key] = rec
	return nil
}

// Results implements service.ResultStore.
type Results struct{ s *Store }

func (v Results) ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResult, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.ExamResult
	for key, sess := range v.s.sessions {
		if key.examID != examID {
			continue
		}
		res := model.ExamResult{
			StudentID:    key.studentID,
			Status:       sess.Status(),
			RetakeNeeded: sess.RetakeNeeded,
			SubmittedAt:  sess.SubmittedAt,
			FullyGraded:  true,
		}
		if st, ok := v.s.students[key.studentID]; ok {
			res.StudentName = st.Name
		}
		if score, ok := v.s.scores[key]; ok {
			res.TotalScore = score.TotalScore
		}
		for ak, rec := range v.s.answers {
			if ak.examID == examID && ak.studentID == key.studentID && rec.Status != model.GradingStatusGraded {
				res.FullyGraded = false
				break
			}
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	if limit > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
		if len(out) > limit {
			out = out[:limit]
		}
	}
	return out, nil
}

// Questions implements service.QuestionStore.
type Questions struct{ s *Store }

func (v Questions) GetByID(ctx context.Context, questionID uuid.UUID) (*model.Question, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	q, ok := v.s.questions[questionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &q, nil
}

func (v Questions) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]model.Question, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.Question
	for _, q := range v.s.questions {
		if q.PaperID == paperID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNum < out[j].OrderNum })
	return out, nil
}

// Grants implements service.GrantStore.
type Grants struct{ s *Store }

func (v Grants) Get(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamGrant, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	g, ok := v.s.grants[sessionKey{examID, studentID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &g, nil
}

func (v Grants) ListAbsentCandidates(ctx context.Context, examID uuid.UUID) ([]int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []int
	for key, g := range v.s.grants {
		if key.examID != examID || g.ExpiresAt != nil {
			continue
		}
		if _, ok := v.s.sessions[key]; ok {
			continue
		}
		out = append(out, key.studentID)
	}
	sort.Ints(out)
	return out, nil
}
