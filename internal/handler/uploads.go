package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"uniattend/internal/cloudinary"
)

const maxUploadBytes = 5 << 20

// upload stores a face snapshot (multipart "file" or JSON {"data": "<data URL>"})
// and returns its public URL for use as image_url.
func (h *Handler) upload(c *gin.Context) {
	if h.Uploads == nil {
		failWith(c, http.StatusServiceUnavailable, "UploadsDisabled", "image storage not configured")
		return
	}
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	var result *cloudinary.UploadResult
	var err error
	switch {
	case strings.Contains(c.ContentType(), "multipart/form-data"):
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			failWith(c, http.StatusBadRequest, "InvalidRequest", "file field required")
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			failWith(c, http.StatusBadRequest, "InvalidRequest", "read file failed")
			return
		}
		result, err = h.Uploads.UploadBytes(ctx, data, header.Filename)
	default:
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			failWith(c, http.StatusBadRequest, "InvalidRequest", `provide {"data": "<base64 data URL>"}`)
			return
		}
		result, err = h.Uploads.UploadBase64(ctx, body.Data)
	}
	if err != nil {
		h.Logger.Warn("image upload failed", zap.Error(err))
		failWith(c, http.StatusBadGateway, "UploadFailed", "image upload failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"url":       result.SecureURL,
		"public_id": result.PublicID,
		"width":     result.Width,
		"height":    result.Height,
		"bytes":     result.Bytes,
	})
}
