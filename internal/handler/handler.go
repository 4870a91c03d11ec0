// Package handler exposes the attendance service over HTTP with gin.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"uniattend/internal/attendance"
	"uniattend/internal/auth"
	"uniattend/internal/cloudinary"
	"uniattend/internal/faceclient"
	"uniattend/internal/queue"
)

// FaceVerifier checks an uploaded image against a student's enrolled face.
type FaceVerifier interface {
	Verify(ctx context.Context, studentID, imageURL string) (faceclient.Verification, error)
}

// Uploader stores face snapshots and returns a URL the face service can fetch.
type Uploader interface {
	UploadBase64(ctx context.Context, data string) (*cloudinary.UploadResult, error)
	UploadBytes(ctx context.Context, data []byte, filename string) (*cloudinary.UploadResult, error)
}

// Publisher emits attendance events.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Counter reads the live per-session head count.
type Counter interface {
	Count(ctx context.Context, sessionID string) (int64, error)
}

// DeviceRegistry remembers devices that obtained tokens.
type DeviceRegistry interface {
	UpsertDevice(ctx context.Context, deviceID string) error
}

// PublishObserver counts publish results.
type PublishObserver interface {
	ObservePublish(err error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps wires the handler. Uploads, Events, Counter and Published may be nil.
// DeviceSecret admits student tokens; lecturer and admin tokens need StaffSecret.
type Deps struct {
	Attendance        *attendance.Service
	Signer            *auth.Signer
	Devices           DeviceRegistry
	Faces             FaceVerifier
	Uploads           Uploader
	Events            Publisher
	Published         PublishObserver
	Counter           Counter
	Health            map[string]HealthCheck
	Logger            *zap.Logger
	DeviceSecret      string
	StaffSecret       string
	FaceMinConfidence float64
	PublishTimeout    time.Duration
}

// Handler serves the HTTP API.
type Handler struct {
	Deps
}

// New returns a Handler.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.PublishTimeout <= 0 {
		d.PublishTimeout = 2 * time.Second
	}
	return &Handler{Deps: d}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/token", h.issueToken)
	v1.POST("/auth/refresh", h.refreshToken)

	api := v1.Group("", auth.Bearer(h.Signer))
	api.POST("/attendance", auth.Require(auth.MarkOwnAttendance, auth.MarkAnyAttendance), h.markAttendance)
	api.POST("/uploads", auth.Require(auth.UploadImages), h.upload)
	api.PUT("/enrollments", auth.Require(auth.ManageEnrollments), h.setEnrollment)

	sessions := api.Group("/sessions")
	sessions.POST("", auth.Require(auth.ManageSessions), h.createSession)
	sessions.GET("/:id", h.getSession)
	sessions.POST("/:id/retire", auth.Require(auth.ManageSessions), h.retireSession)
	sessions.GET("/:id/token", auth.Require(auth.DisplaySessionCode), h.sessionToken)
	sessions.GET("/:id/qr.png", auth.Require(auth.DisplaySessionCode), h.sessionQR)
	sessions.GET("/:id/attendance", auth.Require(auth.ViewAttendance), h.listAttendance)
	sessions.GET("/:id/summary", auth.Require(auth.ViewAttendance), h.summary)
}

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

var statusByKind = map[attendance.Kind]int{
	attendance.KindMalformedToken:    http.StatusBadRequest,
	attendance.KindSessionMismatch:   http.StatusBadRequest,
	attendance.KindInvalidRequest:    http.StatusBadRequest,
	attendance.KindInvalidSession:    http.StatusBadRequest,
	attendance.KindInvalidEnrollment: http.StatusBadRequest,
	attendance.KindTokenExpired:      http.StatusForbidden,
	attendance.KindTokenFromFuture:   http.StatusForbidden,
	attendance.KindOutsideWindow:     http.StatusForbidden,
	attendance.KindNotEnrolled:       http.StatusForbidden,
	attendance.KindFaceNotVerified:   http.StatusUnauthorized,
	attendance.KindSessionNotFound:   http.StatusNotFound,
	attendance.KindAlreadyMarked:     http.StatusConflict,
}

// fail writes the {ok:false, errorKind, message} envelope for err.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := attendance.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := err.Error()
	var pe *attendance.PersistenceError
	if errors.As(err, &pe) {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "errorKind": string(kind), "message": msg})
}

// failWith writes the error envelope for failures that are not attendance errors.
func failWith(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "errorKind": kind, "message": msg})
}

func badRequest(c *gin.Context, err error) {
	failWith(c, http.StatusBadRequest, string(attendance.KindInvalidRequest), err.Error())
}
