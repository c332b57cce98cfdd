/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's internal records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Raw amounts cross the wire as decimal strings in base token units.
  Responses additionally carry a display form scaled by the token's
  decimals (e.g. amount "1500000000000000000" with 18 decimals displays
  as "1.5").

VALIDATION:
  Handlers validate; DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/warp/custody-engine/engine"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateLockRequest creates a time-lock.
type CreateLockRequest struct {
	Caller     string `json:"caller"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`      // base units, decimal string
	UnlockTime uint32 `json:"unlock_time"` // unix seconds
	Paid       string `json:"paid"`        // attached native currency
}

// CreateVestingRequest creates a vesting schedule.
type CreateVestingRequest struct {
	Caller   string `json:"caller"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Cliff    uint32 `json:"cliff_seconds"`
	Duration uint32 `json:"duration_seconds"`
	Paid     string `json:"paid"`
}

// ExtendLockRequest pushes a lock's unlock time further out.
type ExtendLockRequest struct {
	Caller        string `json:"caller"`
	NewUnlockTime uint32 `json:"new_unlock_time"`
}

// TransferRequest reassigns a record to a new owner.
type TransferRequest struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"new_owner"`
}

// CallerRequest carries only the caller identity (withdraw, claim).
type CallerRequest struct {
	Caller string `json:"caller"`
}

// RegisterTokenRequest registers a demo token (dev surface).
type RegisterTokenRequest struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

// MintRequest credits demo token balance (dev surface).
type MintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// FundRequest credits native currency (dev surface).
type FundRequest struct {
	Amount string `json:"amount"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LockDTO is a time-lock record in API responses.
type LockDTO struct {
	ID            uint64 `json:"id"`
	Token         string `json:"token"`
	Decimals      uint8  `json:"decimals"`
	Owner         string `json:"owner"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	UnlockTime    uint32 `json:"unlock_time"`
	Withdrawn     bool   `json:"withdrawn"`
}

// VestingDTO is a vesting record in API responses.
type VestingDTO struct {
	ID             uint64 `json:"id"`
	Token          string `json:"token"`
	Decimals       uint8  `json:"decimals"`
	Owner          string `json:"owner"`
	Total          string `json:"total"`
	TotalDisplay   string `json:"total_display"`
	Claimed        string `json:"claimed"`
	ClaimedDisplay string `json:"claimed_display"`
	StartTime      uint32 `json:"start_time"`
	CliffDuration  uint32 `json:"cliff_duration"`
	Duration       uint32 `json:"duration"`
	Completed      bool   `json:"completed"`
}

// CreatedDTO acknowledges a record creation.
type CreatedDTO struct {
	ID uint64 `json:"id"`
}

// ClaimedDTO reports the outcome of a claim.
type ClaimedDTO struct {
	ID            uint64 `json:"id"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amount_display"`
}

// ClaimableDTO previews a claim.
type ClaimableDTO struct {
	ID            uint64 `json:"id"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amount_display"`
}

// CertificateDTO is a proof-of-lock fingerprint.
type CertificateDTO struct {
	ID   uint64 `json:"id"`
	Hash string `json:"hash"` // 0x-prefixed, 32 bytes
}

// OwnedDTO lists the records an owner holds in one ledger.
type OwnedDTO struct {
	Owner string   `json:"owner"`
	Count int      `json:"count"`
	IDs   []uint64 `json:"ids"`
}

// ConfigDTO exposes the immutable engine configuration.
type ConfigDTO struct {
	LockFee     string `json:"lock_fee"`
	VestingFee  string `json:"vesting_fee"`
	FeeReceiver string `json:"fee_receiver"`
	ChainID     uint64 `json:"chain_id"`
}

// ErrorDTO is the uniform error envelope.
type ErrorDTO struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

// displayAmount renders base units scaled by the token's decimals.
func displayAmount(a *uint256.Int, decimals uint8) string {
	return decimal.NewFromBigInt(a.ToBig(), -int32(decimals)).String()
}

func lockDTO(rec engine.LockRecord) LockDTO {
	return LockDTO{
		ID:            rec.ID,
		Token:         rec.Token.Hex(),
		Decimals:      rec.Decimals,
		Owner:         rec.Owner.Hex(),
		Amount:        rec.Amount.Dec(),
		AmountDisplay: displayAmount(&rec.Amount, rec.Decimals),
		UnlockTime:    rec.UnlockTime,
		Withdrawn:     rec.Withdrawn,
	}
}

func vestingDTO(rec engine.VestingRecord) VestingDTO {
	return VestingDTO{
		ID:             rec.ID,
		Token:          rec.Token.Hex(),
		Decimals:       rec.Decimals,
		Owner:          rec.Owner.Hex(),
		Total:          rec.Total.Dec(),
		TotalDisplay:   displayAmount(&rec.Total, rec.Decimals),
		Claimed:        rec.Claimed.Dec(),
		ClaimedDisplay: displayAmount(&rec.Claimed, rec.Decimals),
		StartTime:      rec.StartTime,
		CliffDuration:  rec.CliffDuration,
		Duration:       rec.Duration,
		Completed:      rec.Completed(),
	}
}
