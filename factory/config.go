/*
Package factory provides JSON to engine configuration conversion.

PURPOSE:
  Converts a JSON deployment profile into an engine.Config. Fees, the fee
  receiver, and the chain id are fixed at construction time — there is no
  admin surface to change them later — so the profile is the one place a
  deployment declares them.

JSON SCHEMA:
  {
    "lock_fee": "1000000000000000",
    "vesting_fee": "2000000000000000",
    "fee_receiver": "0xaaaa...",
    "engine_address": "0xeeee...",
    "chain_id": 1
  }

  Fees are decimal strings in base native-currency units.

USAGE:
  cfg, err := factory.ParseConfig(raw)
  eng := engine.New(cfg.Bind(registry, bank))

SEE ALSO:
  - cmd/server/main.go: loads the profile at startup
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/warp/custody-engine/engine"
)

// ConfigJSON is the wire form of a deployment profile.
type ConfigJSON struct {
	LockFee       string `json:"lock_fee"`
	VestingFee    string `json:"vesting_fee"`
	FeeReceiver   string `json:"fee_receiver"`
	EngineAddress string `json:"engine_address"`
	ChainID       uint64 `json:"chain_id"`
}

// Profile is a validated deployment profile, one collaborator binding away
// from an engine.Config.
type Profile struct {
	LockFee     *uint256.Int
	VestingFee  *uint256.Int
	FeeReceiver engine.Address
	Self        engine.Address
	ChainID     uint64
}

// ParseConfig validates a JSON deployment profile.
func ParseConfig(raw []byte) (*Profile, error) {
	var cj ConfigJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}

	lockFee, err := parseFee(cj.LockFee, "lock_fee")
	if err != nil {
		return nil, err
	}
	vestingFee, err := parseFee(cj.VestingFee, "vesting_fee")
	if err != nil {
		return nil, err
	}
	receiver, err := engine.ParseAddress(cj.FeeReceiver)
	if err != nil {
		return nil, fmt.Errorf("fee_receiver: %w", err)
	}
	if receiver.IsZero() {
		return nil, fmt.Errorf("fee_receiver: %w", engine.ErrZeroAddress)
	}
	self, err := engine.ParseAddress(cj.EngineAddress)
	if err != nil {
		return nil, fmt.Errorf("engine_address: %w", err)
	}
	if self.IsZero() {
		return nil, fmt.Errorf("engine_address: %w", engine.ErrZeroAddress)
	}

	return &Profile{
		LockFee:     lockFee,
		VestingFee:  vestingFee,
		FeeReceiver: receiver,
		Self:        self,
		ChainID:     cj.ChainID,
	}, nil
}

// Bind attaches the runtime collaborators, producing an engine.Config.
func (p *Profile) Bind(tokens engine.TokenResolver, native engine.NativeLedger) engine.Config {
	return engine.Config{
		LockFee:     p.LockFee,
		VestingFee:  p.VestingFee,
		FeeReceiver: p.FeeReceiver,
		Self:        p.Self,
		ChainID:     p.ChainID,
		Tokens:      tokens,
		Native:      native,
		Now:         time.Now,
	}
}

func parseFee(s, field string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	fee, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid fee amount %q", field, s)
	}
	return fee, nil
}

// DefaultProfile is the development profile used when no config file is
// given: zero fees, placeholder identities, chain id 1.
func DefaultProfile() *Profile {
	return &Profile{
		LockFee:     uint256.NewInt(0),
		VestingFee:  uint256.NewInt(0),
		FeeReceiver: engine.MustAddress("0x00000000000000000000000000000000000000fe"),
		Self:        engine.MustAddress("0x00000000000000000000000000000000000000e9"),
		ChainID:     1,
	}
}
