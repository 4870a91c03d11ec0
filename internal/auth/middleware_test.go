package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(s *Signer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", Bearer(s))
	g.GET("/sessions", Require(ManageSessions), func(c *gin.Context) {
		claims, ok := FromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Subject)
	})
	return r
}

func TestBearerAndRequire(t *testing.T) {
	s := newTestSigner()
	r := newRouter(s)

	lecturer, err := s.Issue("lec-1", RoleLecturer, "")
	require.NoError(t, err)
	student, err := s.Issue("stu-1", RoleStudent, "")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"student forbidden", "Bearer " + student.AccessToken, http.StatusForbidden},
		{"lecturer allowed", "bearer " + lecturer.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "lec-1", w.Body.String())
			}
		})
	}
}
