package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"uniattend/internal/auth"
)

type tokenRequest struct {
	DeviceID     string    `json:"device_id" binding:"required"`
	DeviceSecret string    `json:"device_secret" binding:"required"`
	Subject      string    `json:"subject" binding:"required"`
	Role         auth.Role `json:"role" binding:"required"`
}

func tokenResponse(p auth.TokenPair) gin.H {
	return gin.H{
		"access_token":  p.AccessToken,
		"refresh_token": p.RefreshToken,
		"expires_at":    p.AccessExp.Unix(),
	}
}

// issueToken registers a device and issues tokens for the identity it presents.
// The secret presented decides which roles may be claimed.
func (h *Handler) issueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Role.Valid() {
		failWith(c, http.StatusBadRequest, "InvalidRequest", "unknown role")
		return
	}
	want := h.DeviceSecret
	if req.Role != auth.RoleStudent {
		want = h.StaffSecret
	}
	if want == "" || subtle.ConstantTimeCompare([]byte(req.DeviceSecret), []byte(want)) != 1 {
		failWith(c, http.StatusUnauthorized, "Unauthorized", "invalid device secret for role")
		return
	}
	if h.Devices != nil {
		if err := h.Devices.UpsertDevice(c.Request.Context(), req.DeviceID); err != nil {
			h.Logger.Warn("device upsert failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		}
	}
	pair, err := h.Signer.Issue(req.Subject, req.Role, req.DeviceID)
	if err != nil {
		failWith(c, http.StatusInternalServerError, "Internal", "token issue failed")
		return
	}
	c.JSON(http.StatusCreated, tokenResponse(pair))
}

func (h *Handler) refreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	pair, err := h.Signer.Refresh(req.RefreshToken)
	if err != nil {
		failWith(c, http.StatusUnauthorized, "Unauthorized", "invalid refresh token")
		return
	}
	c.JSON(http.StatusOK, tokenResponse(pair))
}
