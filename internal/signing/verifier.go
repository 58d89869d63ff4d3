// Package signing authenticates device submissions. Verification is
// stateless: freshness comes from a bounded clock-skew window, not from
// per-device nonce tracking, so any number of verifier instances can run
// side by side. A captured request is replayable within the window; that
// trade-off is deliberate and documented.
package signing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"beacon/internal/telemetry"
	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/sentinel"
)

// FreshnessWindow bounds the tolerated skew between the server clock and the
// submission timestamp, in either direction.
const FreshnessWindow = freshnessWindowMillis * time.Millisecond

const freshnessWindowMillis = 300000

// SecretLookup resolves a project to its shared signing secret.
type SecretLookup interface {
	FindSecret(ctx context.Context, projectID string) (string, error)
}

// Verifier validates submission authenticity and freshness. Stateless
// between calls.
type Verifier struct {
	secrets SecretLookup
	now     func() time.Time
}

// New creates a Verifier backed by the given secret lookup.
func New(secrets SecretLookup) *Verifier {
	return &Verifier{secrets: secrets, now: time.Now}
}

// WithClock overrides the server clock. Test hook.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify checks the submission against its signature and returns the owning
// project ID on success. timestamp is the device's signing time in epoch
// milliseconds; signature is lowercase hex HMAC-SHA256 over the canonical
// string, compared case-insensitively.
func (v *Verifier) Verify(ctx context.Context, event telemetry.Event, timestamp int64, signature string) (string, error) {
	// The comparison stays in raw milliseconds: converting the skew to a
	// Duration multiplies by 1e6 and wraps for far-out timestamps. A skew
	// still negative after negation is math.MinInt64, also far out.
	skew := v.now().UnixMilli() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew < 0 || skew > freshnessWindowMillis {
		return "", dErrors.New(dErrors.CodeStaleTimestamp, "submission timestamp outside freshness window")
	}

	secret, err := v.secrets.FindSecret(ctx, event.ProjectID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeUnknownProject, "unknown project: "+event.ProjectID)
	}
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeStoreFailure, "resolve signing secret", err)
	}

	expected := Sign(secret, CanonicalString(event, timestamp))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return "", dErrors.New(dErrors.CodeBadSignature, "signature mismatch")
	}
	return event.ProjectID, nil
}

// CanonicalString builds the exact string both device and server sign. Field
// order and the colon separators are protocol; Value is used in its flat
// on-wire form, never re-encoded.
func CanonicalString(event telemetry.Event, timestamp int64) string {
	return fmt.Sprintf("%s:%s:%d:%s:%s:%s",
		event.ProjectID,
		event.DeviceID,
		timestamp,
		event.Category,
		event.Key,
		event.Value,
	)
}

// Sign computes the lowercase hex HMAC-SHA256 of payload under secret.
// Shared with tests and client tooling.
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
