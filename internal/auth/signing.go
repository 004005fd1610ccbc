// Package auth provides ed25519 request signing: callers prove control of
// their identity by signing a canonical digest of each request.
package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// signingDomain separates request signatures from any other ed25519 use of
// the same key.
const signingDomain = "meatcoin-request:v1"

// MaxClockSkew is how far a request timestamp may drift from server time.
const MaxClockSkew = 5 * time.Minute

// Signing errors.
var (
	ErrBadSignature   = errors.New("signature verification failed")
	ErrStaleTimestamp = errors.New("request timestamp outside allowed window")
)

// SigningMessage builds the canonical byte string a caller signs: domain,
// method, path, body hash, and unix timestamp, newline separated. Both
// sides must produce the identical message for verification to pass.
func SigningMessage(method, path string, body []byte, timestamp int64) []byte {
	bodyHash := sha256.Sum256(body)
	msg := signingDomain + "\n" +
		method + "\n" +
		path + "\n" +
		hex.EncodeToString(bodyHash[:]) + "\n" +
		strconv.FormatInt(timestamp, 10)
	return []byte(msg)
}

// Sign produces the hex signature for a request.
func Sign(priv ed25519.PrivateKey, method, path string, body []byte, timestamp int64) string {
	sig := ed25519.Sign(priv, SigningMessage(method, path, body, timestamp))
	return hex.EncodeToString(sig)
}

// Verify checks a hex signature against the caller identity, treating the
// identity bytes as the ed25519 public key.
func Verify(caller identity.Identity, signature, method, path string, body []byte, timestamp int64) error {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature encoding", ErrBadSignature)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: want %d signature bytes, got %d", ErrBadSignature, ed25519.SignatureSize, len(sig))
	}

	pub := ed25519.PublicKey(caller.Bytes())
	if !ed25519.Verify(pub, SigningMessage(method, path, body, timestamp), sig) {
		return ErrBadSignature
	}
	return nil
}

// CheckTimestamp rejects timestamps outside the allowed skew window.
func CheckTimestamp(timestamp int64, now time.Time) error {
	drift := now.Sub(time.Unix(timestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > MaxClockSkew {
		return ErrStaleTimestamp
	}
	return nil
}
