package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.WebhookDeliveryTimeout != 30*time.Second {
		t.Errorf("WebhookDeliveryTimeout = %v, want 30s", cfg.WebhookDeliveryTimeout)
	}
	if cfg.HeartbeatTimeoutSeconds != 120 {
		t.Errorf("HeartbeatTimeoutSeconds = %d, want 120", cfg.HeartbeatTimeoutSeconds)
	}
	if cfg.DeliveryBatchSize != 50 {
		t.Errorf("DeliveryBatchSize = %d, want 50", cfg.DeliveryBatchSize)
	}
	if cfg.APIPort != "3000" {
		t.Errorf("APIPort = %q, want 3000", cfg.APIPort)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_DELIVERY_TIMEOUT_SECONDS", "10")
	t.Setenv("DELIVERY_WORKERS", "4")
	t.Setenv("ADMIN_USER_IDS", "a1, b2 ,c3")

	cfg := Load()
	if cfg.WebhookDeliveryTimeout != 10*time.Second {
		t.Errorf("WebhookDeliveryTimeout = %v, want 10s", cfg.WebhookDeliveryTimeout)
	}
	if cfg.DeliveryWorkers != 4 {
		t.Errorf("DeliveryWorkers = %d, want 4", cfg.DeliveryWorkers)
	}
	if len(cfg.AdminUserIDs) != 3 || cfg.AdminUserIDs[1] != "b2" {
		t.Errorf("AdminUserIDs = %v", cfg.AdminUserIDs)
	}
}

func TestLoadIgnoresGarbageInt(t *testing.T) {
	t.Setenv("DELIVERY_BATCH_SIZE", "not-a-number")
	cfg := Load()
	if cfg.DeliveryBatchSize != 50 {
		t.Errorf("DeliveryBatchSize = %d, want fallback 50", cfg.DeliveryBatchSize)
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{AdminUserIDs: []string{"u1", "u2"}}
	if !cfg.IsAdmin("u1") {
		t.Error("u1 should be admin")
	}
	if cfg.IsAdmin("u3") {
		t.Error("u3 should not be admin")
	}
}
