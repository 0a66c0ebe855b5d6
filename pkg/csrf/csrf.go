package csrf

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"time"
)

// DefaultTTL is the token lifetime used when none is configured.
const DefaultTTL = 30 * time.Minute

// minTokenLength is the floor below which a token is rejected unread.
const minTokenLength = 10

// Token is an opaque, encrypted CSRF token.
type Token string

// String returns the token as a string.
func (t Token) String() string { return string(t) }

// Fingerprint identifies the requester a token is bound to.
type Fingerprint struct {
	IP            string `json:"ip"`
	UserAgentHash string `json:"ua"`
}

// NewFingerprint builds a fingerprint, hashing the raw user agent.
func NewFingerprint(ip, userAgent string) Fingerprint {
	return Fingerprint{IP: ip, UserAgentHash: HashUserAgent(userAgent)}
}

// HashUserAgent returns the base64url SHA-256 digest of a user agent.
func HashUserAgent(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Status is the outcome of a token check.
// The zero value is StatusInvalid.
type Status int

const (
	// StatusInvalid means the token must be rejected.
	StatusInvalid Status = iota
	// StatusValid means the token matched the fingerprint and has not expired.
	StatusValid
	// StatusDisabled means no secret is configured and checks are skipped.
	StatusDisabled
)

// String returns a lower-case name for the status.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusDisabled:
		return "disabled"
	default:
		return "invalid"
	}
}

// OK reports whether the request may proceed.
func (s Status) OK() bool {
	return s != StatusInvalid
}

// Issue creates a token for fp that expires ttl after now.
// A non-positive ttl uses DefaultTTL. An empty secret returns ErrDisabled.
func Issue(fp Fingerprint, secret string, ttl time.Duration, now time.Time) (Token, error) {
	if secret == "" {
		return "", ErrDisabled
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	tok, err := seal(secret, fp, now.Add(ttl).UnixMilli())
	if err != nil {
		return "", err
	}
	return Token(tok), nil
}

// Verify checks token against fp at instant now.
// An empty secret yields StatusDisabled. Every failure, whatever its cause,
// yields StatusInvalid.
func Verify(fp Fingerprint, secret string, token Token, now time.Time) Status {
	if secret == "" {
		return StatusDisabled
	}
	if check(fp, secret, string(token), now) != nil {
		return StatusInvalid
	}
	return StatusValid
}

// check returns the first reason token is unacceptable, or nil.
// The expiry instant itself is still valid.
func check(fp Fingerprint, secret, token string, now time.Time) error {
	if len(token) <= minTokenLength {
		return errTooShort
	}

	ip, ua, exp, err := open(secret, token)
	if err != nil {
		return err
	}

	ipOK := subtle.ConstantTimeCompare([]byte(ip), []byte(fp.IP)) == 1
	uaOK := subtle.ConstantTimeCompare([]byte(ua), []byte(fp.UserAgentHash)) == 1
	if !ipOK || !uaOK {
		return errMismatch
	}
	if exp < now.UnixMilli() {
		return errExpired
	}
	return nil
}
