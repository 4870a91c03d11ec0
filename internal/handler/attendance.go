package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"uniattend/internal/attendance"
	"uniattend/internal/auth"
	"uniattend/internal/queue"
)

type markRequest struct {
	SessionID string            `json:"session_id" binding:"required"`
	StudentID string            `json:"student_id" binding:"required"`
	Token     string            `json:"token"`
	Method    attendance.Method `json:"method" binding:"required"`
	ImageURL  string            `json:"image_url"`
}

// markAttendance runs the admission check and records the student as present.
// Students may only mark themselves and never with the manual method.
func (h *Handler) markAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	claims, _ := auth.FromContext(c)
	if !auth.Can(claims.Role, auth.MarkAnyAttendance) {
		if req.StudentID != claims.Subject {
			failWith(c, http.StatusForbidden, "Forbidden", "students may only mark their own attendance")
			return
		}
		if req.Method == attendance.MethodManual {
			failWith(c, http.StatusForbidden, "Forbidden", "manual marking requires a lecturer")
			return
		}
	}

	ctx := c.Request.Context()
	in := attendance.Request{
		SessionID: req.SessionID,
		StudentID: req.StudentID,
		Token:     req.Token,
		Method:    req.Method,
	}
	if req.Method == attendance.MethodFacialRecognition && h.Faces != nil {
		if req.ImageURL == "" {
			failWith(c, http.StatusBadRequest, string(attendance.KindInvalidRequest), "image_url is required for facial_recognition")
			return
		}
		v, err := h.Faces.Verify(ctx, req.StudentID, req.ImageURL)
		if err != nil {
			h.Logger.Warn("face verification unavailable", zap.String("student_id", req.StudentID), zap.Error(err))
			failWith(c, http.StatusBadGateway, "FaceServiceUnavailable", "face verification unavailable")
			return
		}
		if !v.Accepted(h.FaceMinConfidence) {
			h.fail(c, attendance.ErrFaceNotVerified)
			return
		}
		score := v.Similarity
		in.MatchScore = &score
	}

	rec, err := h.Attendance.Mark(ctx, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.PublishTimeout)
	defer cancel()
	h.publishMarked(pubCtx, rec)
	c.JSON(http.StatusCreated, gin.H{"ok": true, "record": rec})
}

// publishMarked emits attendance.marked within ctx's deadline. Failures are logged;
// the record is already stored.
func (h *Handler) publishMarked(ctx context.Context, rec attendance.Record) {
	if h.Events == nil {
		return
	}
	msg, err := queue.NewJSON(attendance.EventMarked, attendance.MarkedEvent{
		RecordID:  rec.ID,
		SessionID: rec.SessionID,
		StudentID: rec.StudentID,
		Method:    rec.Method,
		MarkedAt:  rec.MarkedAt,
	})
	if err == nil {
		err = h.Events.Publish(ctx, msg)
	}
	if h.Published != nil {
		h.Published.ObservePublish(err)
	}
	if err != nil {
		h.Logger.Warn("event publish failed", zap.String("record_id", rec.ID), zap.Error(err))
	}
}
