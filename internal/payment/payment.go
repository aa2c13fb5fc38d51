// Package payment relays to the external payment gateway and verifies its
// callback signatures. The gateway itself is an opaque oracle; this package
// only knows the two contracts checkout needs: create an intent and check
// an HMAC signature against the shared secret.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Intent is the gateway's handle for a payment about to be captured.
type Intent struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Verifier checks gateway callback signatures.
type Verifier interface {
	// Verify reports whether signature is a valid HMAC over the order and
	// payment references.
	Verify(orderRef, paymentRef, signature string) bool
}

// Gateway creates payment intents with the external provider.
type Gateway interface {
	// CreateIntent registers an amount with the gateway and returns its
	// intent handle.
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*Intent, error)
}

// hmacVerifier implements Verifier with HMAC-SHA256 over "orderRef|paymentRef".
type hmacVerifier struct {
	secret []byte
	logger zerolog.Logger
}

// NewVerifier creates a signature verifier using the shared gateway secret.
func NewVerifier(secret string, logger zerolog.Logger) Verifier {
	return &hmacVerifier{
		secret: []byte(secret),
		logger: logger.With().Str("component", "payment_verifier").Logger(),
	}
}

// Verify recomputes the signature and compares in constant time.
func (v *hmacVerifier) Verify(orderRef, paymentRef, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))

	ok := hmac.Equal([]byte(expected), []byte(signature))
	if !ok {
		v.logger.Warn().
			Str("order_ref", orderRef).
			Str("payment_ref", paymentRef).
			Msg("payment signature mismatch")
	}
	return ok
}

// Sign produces the signature the gateway would send for the given
// references. Exposed for tests and local gateway stubs.
func Sign(secret, orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// httpGateway implements Gateway over the provider's HTTP API.
type httpGateway struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewGateway creates an HTTP payment gateway client.
func NewGateway(baseURL string, logger zerolog.Logger) Gateway {
	return &httpGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With().Str("component", "payment_gateway").Logger(),
	}
}

// CreateIntent registers an amount with the gateway.
func (g *httpGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*Intent, error) {
	payload, err := json.Marshal(map[string]string{
		"amount":   amount.StringFixed(2),
		"currency": currency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/intents", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error().Err(err).Msg("payment gateway request failed")
		return nil, fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		g.logger.Error().Int("status", resp.StatusCode).Msg("payment gateway rejected intent")
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("failed to decode intent response: %w", err)
	}

	g.logger.Debug().
		Str("intent_id", intent.ID).
		Str("amount", intent.Amount.String()).
		Msg("payment intent created")

	return &intent, nil
}
