package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInsufficientCredits is returned by the launch pre-flight check when an
// organization has no positive balance left.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Organization carries the running balance in centicredits (1/100 credit,
// integer math only).
type Organization struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Centicredits int64     `json:"centicredits"`
	CreatedAt    time.Time `json:"created_at"`
}

func (o *Organization) Credits() float64 {
	return float64(o.Centicredits) / 100.0
}

// CreditTransaction is an append-only ledger row. After == Before + Delta
// always holds; children reference their parent and are never cascaded.
type CreditTransaction struct {
	ID                  uuid.UUID  `json:"id"`
	ObjectID            string     `json:"object_id"`
	OrganizationID      uuid.UUID  `json:"organization_id"`
	BotID               *uuid.UUID `json:"bot_id,omitempty"`
	CenticreditsBefore  int64      `json:"centicredits_before"`
	CenticreditsAfter   int64      `json:"centicredits_after"`
	CenticreditsDelta   int64      `json:"centicredits_delta"`
	ParentTransactionID *uuid.UUID `json:"parent_transaction_id,omitempty"`
	PaymentReference    *string    `json:"payment_reference,omitempty"`
	Description         *string    `json:"description,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// NewCreditTransaction builds a ledger row from the balance observed under the
// organization lock.
func NewCreditTransaction(orgID uuid.UUID, before, delta int64, botID, parentID *uuid.UUID, description *string) *CreditTransaction {
	return &CreditTransaction{
		ID:                  uuid.New(),
		ObjectID:            NewObjectID("ctr"),
		OrganizationID:      orgID,
		BotID:               botID,
		CenticreditsBefore:  before,
		CenticreditsAfter:   before + delta,
		CenticreditsDelta:   delta,
		ParentTransactionID: parentID,
		Description:         description,
	}
}

// assumedSingleHeartbeatSeconds is charged when a bot reported exactly one
// heartbeat and its runtime window is therefore empty.
const assumedSingleHeartbeatSeconds = 30

// RuntimeCostCenticredits prices a bot's runtime from its heartbeat window:
// ceil(hours * 100). No heartbeats cost nothing; never negative.
func RuntimeCostCenticredits(firstHeartbeatTS, lastHeartbeatTS *int64) int64 {
	if firstHeartbeatTS == nil || lastHeartbeatTS == nil {
		return 0
	}
	elapsed := *lastHeartbeatTS - *firstHeartbeatTS
	if elapsed < 0 {
		return 0
	}
	if elapsed == 0 {
		elapsed = assumedSingleHeartbeatSeconds
	}
	// ceil(elapsed/3600*100) with integers: 3600/100 = 36 seconds per centicredit
	return (elapsed + 35) / 36
}
