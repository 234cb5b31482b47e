package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var b64 = base64.RawURLEncoding

var (
	ErrTokenFormat    = errors.New("invalid token format")
	ErrTokenSignature = errors.New("signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenNotYet    = errors.New("token used before issued")
)

// Claims is the decoded JWT payload.
type Claims map[string]any

// Subject returns the "sub" claim.
func (c Claims) Subject() string {
	s, _ := c["sub"].(string)
	return s
}

// Version returns the "ver" claim.
func (c Claims) Version() int {
	v, _ := c["ver"].(float64)
	return int(v)
}

// Type returns the "typ" claim.
func (c Claims) Type() string {
	s, _ := c["typ"].(string)
	return s
}

func (c Claims) unix(key string) (time.Time, bool) {
	v, ok := c[key].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(v), 0), true
}

// ValidateTimeAt checks exp and iat against now. A token without exp is rejected.
func (c Claims) ValidateTimeAt(now time.Time) error {
	exp, ok := c.unix("exp")
	if !ok || !now.Before(exp) {
		return ErrTokenExpired
	}
	if iat, ok := c.unix("iat"); ok && now.Add(time.Minute).Before(iat) {
		return ErrTokenNotYet
	}
	return nil
}

// SignHS256 creates a compact JWT string using HS256.
func SignHS256(claims Claims, secret []byte) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	h, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := b64.EncodeToString(h) + "." + b64.EncodeToString(c)
	return unsigned + "." + b64.EncodeToString(mac(unsigned, secret)), nil
}

// ParseAndVerifyHS256 verifies the signature and the time claims at now.
func ParseAndVerifyHS256(token string, secret []byte, now time.Time) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrTokenFormat
	}
	var header struct {
		Alg string `json:"alg"`
	}
	rawHeader, err := b64.DecodeString(parts[0])
	if err != nil || json.Unmarshal(rawHeader, &header) != nil || header.Alg != "HS256" {
		return nil, ErrTokenFormat
	}
	sig, err := b64.DecodeString(parts[2])
	if err != nil {
		return nil, ErrTokenFormat
	}
	if !hmac.Equal(sig, mac(parts[0]+"."+parts[1], secret)) {
		return nil, ErrTokenSignature
	}
	payload, err := b64.DecodeString(parts[1])
	if err != nil {
		return nil, ErrTokenFormat
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrTokenFormat
	}
	if err := claims.ValidateTimeAt(now); err != nil {
		return nil, err
	}
	return claims, nil
}

func mac(unsigned string, secret []byte) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(unsigned))
	return m.Sum(nil)
}
