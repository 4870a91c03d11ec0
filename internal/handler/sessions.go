package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"uniattend/internal/attendance"
	"uniattend/internal/auth"
)

const qrSize = 300

type sessionRequest struct {
	CourseID  string `json:"course_id" binding:"required"`
	SectionID string `json:"section_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Timezone  string `json:"timezone"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	claims, _ := auth.FromContext(c)
	s, err := h.Attendance.CreateSession(c.Request.Context(), attendance.Session{
		CourseID:  req.CourseID,
		SectionID: req.SectionID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Timezone:  req.Timezone,
		CreatedBy: claims.Subject,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "session": s})
}

func (h *Handler) getSession(c *gin.Context) {
	s, err := h.Attendance.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": s})
}

func (h *Handler) retireSession(c *gin.Context) {
	if err := h.Attendance.RetireSession(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// sessionToken returns the proof token the classroom display should show now.
func (h *Handler) sessionToken(c *gin.Context) {
	token, expires, err := h.Attendance.IssueToken(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"ok":                   true,
		"token":                token,
		"expires_at":           expires.Format(time.RFC3339),
		"rotate_after_seconds": int(h.Attendance.Policy().RotateInterval / time.Second),
	})
}

// sessionQR renders the current proof token as a PNG QR code.
func (h *Handler) sessionQR(c *gin.Context) {
	token, expires, err := h.Attendance.IssueToken(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	png, err := qrcode.Encode(token, qrcode.Medium, qrSize)
	if err != nil {
		h.Logger.Error("qr encode failed", zap.Error(err))
		failWith(c, http.StatusInternalServerError, "Internal", "qr encode failed")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Token-Expires-At", expires.Format(time.RFC3339))
	c.Header("Refresh", strconv.Itoa(int(h.Attendance.Policy().RotateInterval/time.Second)))
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) listAttendance(c *gin.Context) {
	recs, err := h.Attendance.ListRecords(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "records": recs})
}

// summary reports the stored head count and, when available, the live count kept by the worker.
func (h *Handler) summary(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	recs, err := h.Attendance.ListRecords(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{"ok": true, "session_id": id, "recorded": len(recs), "live": nil}
	if h.Counter != nil {
		n, err := h.Counter.Count(ctx, id)
		if err != nil {
			h.Logger.Warn("live count unavailable", zap.String("session_id", id), zap.Error(err))
		} else {
			body["live"] = n
		}
	}
	c.JSON(http.StatusOK, body)
}

type enrollmentRequest struct {
	StudentID string                      `json:"student_id" binding:"required"`
	SectionID string                      `json:"section_id" binding:"required"`
	Status    attendance.EnrollmentStatus `json:"status" binding:"required"`
}

func (h *Handler) setEnrollment(c *gin.Context) {
	var req enrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.Attendance.SetEnrollment(c.Request.Context(), attendance.Enrollment{
		StudentID: req.StudentID,
		SectionID: req.SectionID,
		Status:    req.Status,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "enrollment": e})
}
