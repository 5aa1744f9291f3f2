package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examflow-backend/internal/config"
	"github.com/stemsi/examflow-backend/internal/middleware"
	"github.com/stemsi/examflow-backend/internal/model"
	"github.com/stemsi/examflow-backend/internal/response"
	"github.com/stemsi/examflow-backend/internal/service"
	ws "github.com/stemsi/examflow-backend/internal/websocket"
)

const keepAliveInterval = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams live session transitions of an exam to its
// teacher over WebSocket. The stream opens with a full result snapshot,
// then relays the Redis pub/sub events the session service publishes on
// every finalization.
type MonitorHandler struct {
	rdb         *redis.Client
	examStore   service.ExamStore
	resultStore service.ResultStore
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, examStore service.ExamStore, resultStore service.ResultStore, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		rdb:         rdb,
		examStore:   examStore,
		resultStore: resultStore,
		log:         log.With().Str("component", "monitor_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// MonitorExam godoc
// GET /ws/v1/teacher/exams/:exam_id/monitor?token=...
func (h *MonitorHandler) MonitorExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examStore.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if exam.TeacherID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotExamTeacher)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()

	// Initial snapshot before the live relay starts.
	results, err := h.resultStore.ListByExam(ctx, examID, 0, 0)
	if err != nil {
		ws.WriteError(conn, "failed to load snapshot")
		return
	}
	if err := ws.WriteTyped(conn, ws.SnapshotResponse{Event: ws.EventSnapshot, Results: results}); err != nil {
		return
	}

	channelName := config.CacheKey.ExamMonitorChannel(examID.String())
	pubsub := h.rdb.Subscribe(ctx, channelName)
	defer pubsub.Close()

	events := pubsub.Channel()

	// Reader goroutine: we never expect client messages, but reading is
	// the only way to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	h.log.Info().Str("exam_id", examID.String()).Int("teacher_id", claims.UserID).Msg("Teacher attached to live monitor")

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-keepAlive.C:
			if err := ws.WriteTyped(conn, ws.PingResponse{Event: ws.EventPing}); err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			var event model.MonitorEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.log.Warn().Err(err).Str("payload", msg.Payload).Msg("Discarding malformed monitor event")
				continue
			}
			if err := ws.WriteTyped(conn, ws.SessionEventResponse{Event: ws.EventSession, Session: event}); err != nil {
				return
			}
		}
	}
}
