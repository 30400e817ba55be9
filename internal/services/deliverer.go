package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	headerSignature = "X-Webhook-Signature"
	headerEvent     = "X-Webhook-Event"

	maxResponseBodyChars = 10000
)

// Deliverer performs the actual webhook HTTP POSTs. It does no persistence or
// retry scheduling of its own; callers record the outcome.
type Deliverer struct {
	httpClient *http.Client
	userAgent  string
	signatures *SignatureService
	log        *zap.Logger
}

func NewDeliverer(timeout time.Duration, userAgent string, signatures *SignatureService, log *zap.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Deliverer{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		signatures: signatures,
		log:        log,
	}
}

// DeliveryOutcome captures one POST's result. Err is set on transport
// failures; StatusCode and Body are set whenever a response came back.
type DeliveryOutcome struct {
	StatusCode int
	Body       string
	Err        error
}

// Delivered reports whether the receiver accepted the payload. Any 2xx counts,
// everything else is a failed attempt.
func (o DeliveryOutcome) Delivered() bool {
	return o.Err == nil && o.StatusCode >= 200 && o.StatusCode < 300
}

// Deliver signs the payload with the given secret and POSTs it to the
// subscription URL. The secret is resolved at send time, so a rotation between
// enqueue and delivery signs with the new secret.
func (d *Deliverer) Deliver(ctx context.Context, url, secret, trigger string, payload []byte) DeliveryOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return DeliveryOutcome{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set(headerSignature, "sha256="+d.signatures.Sign(secret, payload))
	req.Header.Set(headerEvent, trigger)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.log.Debug("webhook post failed", zap.String("url", url), zap.Error(err))
		return DeliveryOutcome{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyChars+1))
	return DeliveryOutcome{
		StatusCode: resp.StatusCode,
		Body:       truncate(string(body), maxResponseBodyChars),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
