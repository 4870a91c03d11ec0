package attendance

import (
	"encoding/base64"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestEncodeDecodeToken(t *testing.T) {
	minute := MinuteOf(at(t, "2024-03-04T09:05:42Z"))
	tok := EncodeToken("sess-42", minute)

	raw, err := base64.StdEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Equal(t, "sess-42:28492385", string(raw))

	got, err := DecodeToken(tok)
	require.NoError(t, err)
	assert.Equal(t, ProofToken{SessionID: "sess-42", IssuedMinute: minute}, got)

	got, err = DecodeToken("  " + tok + "\n")
	require.NoError(t, err)
	assert.Equal(t, "sess-42", got.SessionID)
}

func TestDecodeToken_Malformed(t *testing.T) {
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	cases := map[string]string{
		"empty":          "",
		"not base64":     "%%%not-base64%%%",
		"no separator":   enc("sess-42"),
		"extra field":    enc("sess:42:7"),
		"empty session":  enc(":28492385"),
		"empty minute":   enc("sess-42:"),
		"minute not int": enc("sess-42:nine"),
		"minute decimal": enc("sess-42:1.5"),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeToken(tok)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestCheckFreshness_ExtremeMinutes(t *testing.T) {
	now := at(t, "2024-03-04T09:12:00Z")
	maxAge, maxFuture := 10*time.Minute, 5*time.Minute

	// 576460752331915880 * 60000 wraps int64 to a value near now.
	for _, minute := range []int64{576460752331915880, math.MaxInt64, math.MaxInt64 / millisPerMinute} {
		assert.ErrorIs(t, CheckFreshness(minute, now, maxAge, maxFuture), ErrTokenFromFuture, "minute %d", minute)
	}
	for _, minute := range []int64{math.MinInt64, math.MinInt64 / millisPerMinute, -576460752331915880} {
		assert.ErrorIs(t, CheckFreshness(minute, now, maxAge, maxFuture), ErrTokenExpired, "minute %d", minute)
	}

	tok, err := DecodeToken(EncodeToken("sess-42", 576460752331915880))
	require.NoError(t, err)
	assert.False(t, IsFresh(tok.IssuedMinute, now, maxAge, maxFuture))
}

func TestValidTokenSessionID(t *testing.T) {
	assert.True(t, ValidTokenSessionID("11111111-1111-1111-1111-111111111111"))
	assert.False(t, ValidTokenSessionID(""))
	assert.False(t, ValidTokenSessionID("room:101"))
}

func TestMinuteOf(t *testing.T) {
	assert.Equal(t, int64(0), MinuteOf(time.UnixMilli(59_999)))
	assert.Equal(t, int64(1), MinuteOf(time.UnixMilli(60_000)))
	assert.Equal(t, int64(-1), MinuteOf(time.UnixMilli(-1)))
}

func TestCheckFreshness(t *testing.T) {
	issued := MinuteOf(at(t, "2024-03-04T09:05:00Z"))
	maxAge, maxFuture := 10*time.Minute, 5*time.Minute

	cases := []struct {
		now  string
		want error
	}{
		{"2024-03-04T09:05:00Z", nil},
		{"2024-03-04T09:12:00Z", nil},
		{"2024-03-04T09:15:00Z", nil},
		{"2024-03-04T09:15:00.001Z", ErrTokenExpired},
		{"2024-03-04T09:20:00Z", ErrTokenExpired},
		{"2024-03-04T09:00:00Z", nil},
		{"2024-03-04T08:59:59.999Z", ErrTokenFromFuture},
	}
	for _, tc := range cases {
		t.Run(tc.now, func(t *testing.T) {
			now := at(t, tc.now)
			err := CheckFreshness(issued, now, maxAge, maxFuture)
			if tc.want == nil {
				assert.NoError(t, err)
				assert.True(t, IsFresh(issued, now, maxAge, maxFuture))
				return
			}
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, IsFresh(issued, now, maxAge, maxFuture))
		})
	}
}
