package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents JWT payload. Subject is the user id (student, lecturer or admin);
// DeviceID names the registered device the token was issued to.
type Claims struct {
	Role     Role   `json:"role"`
	DeviceID string `json:"device_id,omitempty"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 tokens for one issuer.
type Signer struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewSigner returns a Signer using key for HS256.
func NewSigner(key, issuer string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{key: []byte(key), issuer: issuer, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// Issue issues signed access and refresh tokens.
func (s *Signer) Issue(subject string, role Role, deviceID string) (TokenPair, error) {
	if subject == "" {
		return TokenPair{}, errors.New("subject required")
	}
	if !role.Valid() {
		return TokenPair{}, errors.New("unknown role")
	}
	now := s.now()
	accessExp := now.Add(s.accessTTL)
	refreshExp := now.Add(s.refreshTTL)

	access, err := s.sign(subject, role, deviceID, typeAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(subject, role, deviceID, typeRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Refresh validates a refresh token and issues a new pair for the same identity.
func (s *Signer) Refresh(refreshToken string) (TokenPair, error) {
	claims, err := s.parse(refreshToken, typeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return s.Issue(claims.Subject, claims.Role, claims.DeviceID)
}

// Parse validates an access token and returns claims.
func (s *Signer) Parse(tokenStr string) (Claims, error) {
	return s.parse(tokenStr, typeAccess)
}

func (s *Signer) sign(subject string, role Role, deviceID, typ string, iat, exp time.Time) (string, error) {
	claims := Claims{
		Role:     role,
		DeviceID: deviceID,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(iat),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

func (s *Signer) parse(tokenStr, typ string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Type != typ {
		return Claims{}, errors.New("wrong token type")
	}
	if !claims.Role.Valid() {
		return Claims{}, errors.New("unknown role")
	}
	return *claims, nil
}
