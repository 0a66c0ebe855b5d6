package csrf

import "errors"

// Sentinel errors for the csrf package.
var (
	// ErrDisabled is returned by Issue when no secret is configured.
	// Protection is off; callers should skip token handling entirely.
	ErrDisabled = errors.New("csrf: protection disabled")

	// ErrEncrypt is returned when a token cannot be sealed.
	ErrEncrypt = errors.New("csrf: encryption failed")
)

// Validation failures never leave the package: callers only see
// StatusInvalid, whichever of these caused it.
var (
	errTooShort  = errors.New("csrf: token too short")
	errDecode    = errors.New("csrf: token encoding invalid")
	errDecrypt   = errors.New("csrf: decryption failed")
	errMalformed = errors.New("csrf: malformed payload")
	errExpired   = errors.New("csrf: token expired")
	errMismatch  = errors.New("csrf: fingerprint mismatch")
)
