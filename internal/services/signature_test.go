package services

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	svc := NewSignatureService()
	payload := []byte(`{"bot_id":"bot_abc","new_state":"ended"}`)

	sig := svc.Sign("topsecret", payload)
	if sig == "" {
		t.Fatal("empty signature")
	}
	if !svc.Verify("topsecret", payload, sig) {
		t.Error("valid signature rejected")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	svc := NewSignatureService()
	payload := []byte(`{"bot_id":"bot_abc"}`)
	sig := svc.Sign("topsecret", payload)

	if svc.Verify("wrong-secret", payload, sig) {
		t.Error("signature verified under a different secret")
	}
	tampered := []byte(`{"bot_id":"bot_xyz"}`)
	if svc.Verify("topsecret", tampered, sig) {
		t.Error("signature verified over a modified payload")
	}
}

func TestSignIsDeterministic(t *testing.T) {
	svc := NewSignatureService()
	payload := []byte(`{}`)
	if svc.Sign("k", payload) != svc.Sign("k", payload) {
		t.Error("same secret and payload should sign identically")
	}
	if svc.Sign("k1", payload) == svc.Sign("k2", payload) {
		t.Error("different secrets should not collide")
	}
}

func TestGenerateWebhookSecret(t *testing.T) {
	svc := NewSignatureService()
	a, err := svc.GenerateWebhookSecret()
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.GenerateWebhookSecret()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("secrets should not repeat")
	}
	if len(a) < 40 {
		t.Errorf("secret too short: %d chars", len(a))
	}
}
