// Package csrf issues and verifies stateless CSRF tokens.
//
// A token binds a requester [Fingerprint] (client IP plus a hash of the user
// agent) to an expiry instant. The three fields are JSON encoded and sealed
// with AES-256-GCM under a key derived from the configured secret with HKDF,
// so no server-side storage is needed: everything required to verify travels
// inside the token.
//
// # Usage
//
//	svc := csrf.NewService(csrf.StaticSecret{Secret: os.Getenv("CSRF_SECRET"), TTL: 30 * time.Minute})
//
//	fp := csrf.FingerprintFromRequest(r, false)
//	tok, err := svc.Issue(fp)
//	if errors.Is(err, csrf.ErrDisabled) {
//		// no secret configured, nothing to send
//	}
//
//	switch svc.Verify(ctx, fp, csrf.TokenFromRequest(r)) {
//	case csrf.StatusValid:
//	case csrf.StatusDisabled: // protection off, request passes
//	case csrf.StatusInvalid: // reject
//	}
//
// # Verification rules
//
// A token is valid when it decrypts, carries all three fields, the IP and
// user-agent hash equal the caller's, and its expiry (epoch milliseconds) is
// not before now; the expiry millisecond itself is still valid. Tokens of
// ten characters or fewer are rejected without decryption. Callers cannot
// learn which rule failed.
//
// # Transport
//
// Tokens travel in the X-CSRF-Token header or the csrf query parameter.
// [Middleware] enforces them on unsafe HTTP methods.
package csrf
