package attendance

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

const millisPerMinute = 60_000

// ProofToken is the decoded form of the rotating value shown on the classroom display.
type ProofToken struct {
	SessionID    string
	IssuedMinute int64
}

// MinuteOf returns floor(unixMillis / 60000) for t.
func MinuteOf(t time.Time) int64 {
	ms := t.UnixMilli()
	m := ms / millisPerMinute
	if ms%millisPerMinute < 0 {
		m--
	}
	return m
}

// ValidTokenSessionID reports whether id can travel inside a proof token.
func ValidTokenSessionID(id string) bool {
	return id != "" && !strings.Contains(id, ":")
}

// EncodeToken builds the proof token for a session at the given issuance minute.
// Callers check the id with ValidTokenSessionID first; Service.IssueToken does.
func EncodeToken(sessionID string, issuedMinute int64) string {
	raw := sessionID + ":" + strconv.FormatInt(issuedMinute, 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeToken reverses EncodeToken. Any structural problem yields ErrMalformedToken.
func DecodeToken(token string) (ProofToken, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return ProofToken{}, ErrMalformedToken
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ProofToken{}, ErrMalformedToken
	}
	minute, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ProofToken{}, ErrMalformedToken
	}
	return ProofToken{SessionID: parts[0], IssuedMinute: minute}, nil
}

// IsFresh reports whether a token issued at issuedMinute is acceptable at now.
func IsFresh(issuedMinute int64, now time.Time, maxAge, maxFuture time.Duration) bool {
	return CheckFreshness(issuedMinute, now, maxAge, maxFuture) == nil
}

// CheckFreshness is IsFresh with the rejection reason. Minutes far outside the
// tolerance are rejected before any millisecond arithmetic so they cannot overflow.
func CheckFreshness(issuedMinute int64, now time.Time, maxAge, maxFuture time.Duration) error {
	nowMinute := MinuteOf(now)
	if issuedMinute > nowMinute+int64(maxFuture/time.Minute)+1 {
		return ErrTokenFromFuture
	}
	if issuedMinute < nowMinute-int64(maxAge/time.Minute)-1 {
		return ErrTokenExpired
	}
	age := now.UnixMilli() - issuedMinute*millisPerMinute
	if age > maxAge.Milliseconds() {
		return ErrTokenExpired
	}
	if age < -maxFuture.Milliseconds() {
		return ErrTokenFromFuture
	}
	return nil
}
