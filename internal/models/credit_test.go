package models

import (
	"testing"

	"github.com/google/uuid"
)

func int64Ptr(v int64) *int64 { return &v }

func TestRuntimeCostCenticredits(t *testing.T) {
	tests := []struct {
		name  string
		first *int64
		last  *int64
		want  int64
	}{
		{"no heartbeats", nil, nil, 0},
		{"only first", int64Ptr(1000), nil, 0},
		{"single heartbeat assumes 30s", int64Ptr(1000), int64Ptr(1000), 1},
		{"exactly one hour", int64Ptr(0), int64Ptr(3600), 100},
		{"thirty minutes", int64Ptr(0), int64Ptr(1800), 50},
		{"one second rounds up", int64Ptr(0), int64Ptr(1), 1},
		{"36 seconds is one centicredit", int64Ptr(0), int64Ptr(36), 1},
		{"37 seconds rounds up to two", int64Ptr(0), int64Ptr(37), 2},
		{"two hours", int64Ptr(100), int64Ptr(7300), 200},
		{"clock skew never negative", int64Ptr(5000), int64Ptr(1000), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RuntimeCostCenticredits(tt.first, tt.last); got != tt.want {
				t.Errorf("RuntimeCostCenticredits = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewCreditTransactionBalanceInvariant(t *testing.T) {
	orgID := uuid.New()

	tx := NewCreditTransaction(orgID, 500, -120, nil, nil, nil)
	if tx.CenticreditsAfter != tx.CenticreditsBefore+tx.CenticreditsDelta {
		t.Errorf("after = %d, want before %d + delta %d", tx.CenticreditsAfter, tx.CenticreditsBefore, tx.CenticreditsDelta)
	}
	if tx.CenticreditsAfter != 380 {
		t.Errorf("after = %d, want 380", tx.CenticreditsAfter)
	}
}

func TestLedgerSequenceReproducesBalance(t *testing.T) {
	orgID := uuid.New()
	deltas := []int64{1000, -37, -250, 500, -1500, 80}

	balance := int64(200)
	initial := balance
	var txs []*CreditTransaction
	for _, d := range deltas {
		tx := NewCreditTransaction(orgID, balance, d, nil, nil, nil)
		txs = append(txs, tx)
		balance = tx.CenticreditsAfter
	}

	var sum int64
	for i, tx := range txs {
		sum += tx.CenticreditsDelta
		if tx.CenticreditsAfter != tx.CenticreditsBefore+tx.CenticreditsDelta {
			t.Errorf("tx %d violates after == before + delta", i)
		}
		if i > 0 && tx.CenticreditsBefore != txs[i-1].CenticreditsAfter {
			t.Errorf("tx %d before = %d, want previous after %d", i, tx.CenticreditsBefore, txs[i-1].CenticreditsAfter)
		}
	}
	if balance != initial+sum {
		t.Errorf("final balance %d, want initial %d + sum %d", balance, initial, sum)
	}
}

func TestOrganizationCredits(t *testing.T) {
	org := &Organization{Centicredits: 1250}
	if org.Credits() != 12.5 {
		t.Errorf("Credits() = %v, want 12.5", org.Credits())
	}
}
