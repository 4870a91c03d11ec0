package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "1700000000", "folder": "faces", "api_key": "key", "file": "x"})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=faces&timestamp=1700000000secret")))
	assert.Equal(t, want, got)
}

func TestUploadBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.Equal(t, "attendance/faces", r.FormValue("folder"))
		assert.Equal(t, "1700000000", r.FormValue("timestamp"))
		assert.NotEmpty(t, r.FormValue("signature"))

		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, []byte("jpegbytes"), data)

		_, _ = w.Write([]byte(`{"public_id":"attendance/faces/abc","secure_url":"https://res.example/abc.jpg","format":"jpg"}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "attendance/faces")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := c.UploadBytes(context.Background(), []byte("jpegbytes"), "face.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://res.example/abc.jpg", res.SecureURL)
}

func TestUploadBase64_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "wrong", "")
	c.BaseURL = srv.URL
	_, err := c.UploadBase64(context.Background(), "data:image/png;base64,AAAA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = c.UploadBase64(context.Background(), "")
	assert.Error(t, err)
}
