package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/stemsi/examflow-backend/internal/config"
	"github.com/stemsi/examflow-backend/internal/model"
)

// AuditRecorder appends trail entries for session transitions. Entries go
// to a Redis queue and a background worker persists them in batches, so a
// slow database never holds up the request path. A failed enqueue is
// logged and dropped; the trail is advisory, not transactional.
type AuditRecorder struct {
	rdb *redis.Client
	now func() time.Time
}

func NewAuditRecorder(rdb *redis.Client) *AuditRecorder {
	return &AuditRecorder{rdb: rdb, now: time.Now}
}

// Record enqueues one trail entry. ActorID 0 marks a system-driven
// transition (the sweep); outcome is "OK" or the rejection reason.
func (r *AuditRecorder) Record(ctx context.Context, examID uuid.UUID, studentID, actorID int, action model.AuditAction, detail, outcome string) {
	entry := model.AuditEntry{
		ExamID:     examID,
		StudentID:  studentID,
		ActorID:    actorID,
		Action:     action,
		Detail:     detail,
		Outcome:    outcome,
		RecordedAt: r.now(),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := r.rdb.RPush(ctx, config.WorkerKey.AuditQueue, payload).Err(); err != nil {
		log.Warn().Err(err).
			Str("action", string(action)).
			Int("student_id", studentID).
			Msg("failed to enqueue audit entry")
	}
}
