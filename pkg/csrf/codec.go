package csrf

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// keyInfo binds derived keys to this token format.
const keyInfo = "warden/csrf/v1"

// payload is the only shape a token plaintext can take.
// Pointer fields let decode tell a missing field from a zero one.
type payload struct {
	IP  *string `json:"ip"`
	UA  *string `json:"ua"`
	Exp *int64  `json:"exp"`
}

// deriveKey stretches the configured secret into an AES-256 key.
func deriveKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func newAEAD(secret string) (cipher.AEAD, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal encodes fp and the expiry and encrypts them with AES-GCM.
// Output: base64url(nonce || ciphertext).
func seal(secret string, fp Fingerprint, expMillis int64) (string, error) {
	plaintext, err := json.Marshal(payload{IP: &fp.IP, UA: &fp.UserAgentHash, Exp: &expMillis})
	if err != nil {
		return "", errors.Join(ErrEncrypt, err)
	}

	aead, err := newAEAD(secret)
	if err != nil {
		return "", errors.Join(ErrEncrypt, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(ErrEncrypt, err)
	}

	return base64.RawURLEncoding.EncodeToString(aead.Seal(nonce, nonce, plaintext, nil)), nil
}

// open reverses seal and returns the decoded fields.
func open(secret, token string) (ip, ua string, expMillis int64, err error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", 0, errDecode
	}

	aead, err := newAEAD(secret)
	if err != nil {
		return "", "", 0, errDecrypt
	}
	if len(data) < aead.NonceSize() {
		return "", "", 0, errDecrypt
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", "", 0, errDecrypt
	}

	var p payload
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return "", "", 0, errMalformed
	}
	if p.IP == nil || p.UA == nil || p.Exp == nil {
		return "", "", 0, errMalformed
	}

	return *p.IP, *p.UA, *p.Exp, nil
}
