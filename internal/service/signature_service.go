package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProviderWebhookVerifier implements ports.WebhookVerifier for the payment
// provider's signature scheme. The header carries a timestamp and one or
// more HMAC-SHA256 signatures over "<timestamp>.<payload>":
//
//	t=1712000000,v1=5257a869e7...
//
// Signatures older than the tolerance are rejected to limit replay of
// captured deliveries.
type ProviderWebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
}

// NewProviderWebhookVerifier creates a verifier for the shared secret.
func NewProviderWebhookVerifier(secret string, tolerance time.Duration) *ProviderWebhookVerifier {
	return &ProviderWebhookVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
	}
}

// Verify checks the signature header against the raw payload.
func (v *ProviderWebhookVerifier) Verify(payload []byte, sigHeader string) error {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return err
	}

	if v.tolerance > 0 {
		age := time.Since(time.Unix(timestamp, 0))
		if age > v.tolerance || age < -v.tolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}

	expected := v.compute(payload, timestamp)
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("no matching v1 signature")
}

// Sign produces a valid signature header for the payload at the given time.
func (v *ProviderWebhookVerifier) Sign(payload []byte, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, v.compute(payload, ts))
}

func (v *ProviderWebhookVerifier) compute(payload []byte, timestamp int64) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseSignatureHeader splits "t=...,v1=...,v1=..." into its parts.
func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("missing signature header")
	}

	var (
		timestamp  int64
		signatures []string
		hasTS      bool
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			return 0, nil, fmt.Errorf("malformed signature header")
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("malformed timestamp: %w", err)
			}
			timestamp = ts
			hasTS = true
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if !hasTS {
		return 0, nil, fmt.Errorf("missing timestamp in signature header")
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("missing v1 signature in header")
	}
	return timestamp, signatures, nil
}
