package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner() *Signer {
	return NewSigner("test-key", "uniattend", 15*time.Minute, 24*time.Hour)
}

func TestIssueAndParse(t *testing.T) {
	s := newTestSigner()
	pair, err := s.Issue("stu-1", RoleStudent, "phone-1")
	require.NoError(t, err)

	claims, err := s.Parse(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.Subject)
	assert.Equal(t, RoleStudent, claims.Role)
	assert.Equal(t, "phone-1", claims.DeviceID)
	assert.Equal(t, "uniattend", claims.Issuer)
}

func TestParse_RejectsRefreshToken(t *testing.T) {
	s := newTestSigner()
	pair, err := s.Issue("lec-1", RoleLecturer, "")
	require.NoError(t, err)

	_, err = s.Parse(pair.RefreshToken)
	assert.Error(t, err)
}

func TestParse_WrongKeyOrIssuer(t *testing.T) {
	pair, err := newTestSigner().Issue("adm-1", RoleAdmin, "")
	require.NoError(t, err)

	_, err = NewSigner("other-key", "uniattend", time.Minute, time.Hour).Parse(pair.AccessToken)
	assert.Error(t, err)

	_, err = NewSigner("test-key", "someone-else", time.Minute, time.Hour).Parse(pair.AccessToken)
	assert.Error(t, err)
}

func TestParse_Expired(t *testing.T) {
	s := newTestSigner()
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	pair, err := s.Issue("stu-1", RoleStudent, "")
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = s.Parse(pair.AccessToken)
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	s := newTestSigner()
	pair, err := s.Issue("lec-1", RoleLecturer, "tablet-3")
	require.NoError(t, err)

	next, err := s.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	claims, err := s.Parse(next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "lec-1", claims.Subject)
	assert.Equal(t, "tablet-3", claims.DeviceID)

	_, err = s.Refresh(pair.AccessToken)
	assert.Error(t, err, "access tokens cannot be used to refresh")
}

func TestIssue_Validation(t *testing.T) {
	s := newTestSigner()
	_, err := s.Issue("", RoleStudent, "")
	assert.Error(t, err)
	_, err = s.Issue("x", Role("dean"), "")
	assert.Error(t, err)
}
