package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/custody-engine/api"
	"github.com/warp/custody-engine/engine"
	"github.com/warp/custody-engine/store/sqlite"
	"github.com/warp/custody-engine/token"
)

const (
	aliceHex  = "0x00000000000000000000000000000000000000a1"
	bobHex    = "0x00000000000000000000000000000000000000b2"
	tokenHex  = "0x0000000000000000000000000000000000000001"
	feeHex    = "0x00000000000000000000000000000000000000fe"
	engineHex = "0x00000000000000000000000000000000000000e9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Unix() uint32 {
	return uint32(c.Now().Unix())
}

type harness struct {
	srv   *httptest.Server
	clock *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1_000_000_000, 0).UTC()}
	reg := token.NewRegistry()
	bank := token.NewBank()
	eng := engine.New(engine.Config{
		LockFee:     uint256.NewInt(10),
		VestingFee:  uint256.NewInt(20),
		FeeReceiver: engine.MustAddress(feeHex),
		Self:        engine.MustAddress(engineHex),
		ChainID:     1337,
		Tokens:      reg,
		Native:      bank,
		Now:         clock.Now,
	})

	journal, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(eng, reg, bank, journal)))
	t.Cleanup(srv.Close)
	return &harness{srv: srv, clock: clock}
}

func (h *harness) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// seed registers the demo token, mints balance to alice, and funds her
// native account for fees.
func (h *harness) seed(t *testing.T) {
	t.Helper()
	code := h.do(t, "POST", "/api/tokens", map[string]any{"address": tokenHex, "decimals": 6}, nil)
	require.Equal(t, http.StatusCreated, code)

	code = h.do(t, "POST", "/api/tokens/"+tokenHex+"/mint",
		map[string]any{"to": aliceHex, "amount": "1000000"}, nil)
	require.Equal(t, http.StatusOK, code)

	code = h.do(t, "POST", "/api/accounts/"+aliceHex+"/fund",
		map[string]any{"amount": "1000"}, nil)
	require.Equal(t, http.StatusOK, code)
}

func (h *harness) createLock(t *testing.T, amount string, unlockIn time.Duration) uint64 {
	t.Helper()
	var created api.CreatedDTO
	code := h.do(t, "POST", "/api/locks", map[string]any{
		"caller":      aliceHex,
		"token":       tokenHex,
		"amount":      amount,
		"unlock_time": h.clock.Unix() + uint32(unlockIn/time.Second),
		"paid":        "10",
	}, &created)
	require.Equal(t, http.StatusCreated, code)
	return created.ID
}

// =============================================================================
// LOCK LIFECYCLE OVER HTTP
// =============================================================================

func TestAPI_LockLifecycle(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	id := h.createLock(t, "500000", time.Hour)

	// Fetch it back.
	var lock api.LockDTO
	code := h.do(t, "GET", fmt.Sprintf("/api/locks/%d", id), nil, &lock)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, aliceHex, lock.Owner)
	assert.Equal(t, "500000", lock.Amount)
	assert.Equal(t, "0.5", lock.AmountDisplay)
	assert.False(t, lock.Withdrawn)

	// Early withdrawal is a state conflict.
	code = h.do(t, "POST", fmt.Sprintf("/api/locks/%d/withdraw", id),
		map[string]any{"caller": aliceHex}, nil)
	assert.Equal(t, http.StatusConflict, code)

	// After maturity it succeeds.
	h.clock.Advance(time.Hour + time.Second)
	code = h.do(t, "POST", fmt.Sprintf("/api/locks/%d/withdraw", id),
		map[string]any{"caller": aliceHex}, &lock)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, lock.Withdrawn)
	assert.Equal(t, "0", lock.Amount)
}

func TestAPI_LockExtendAndTransfer(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	id := h.createLock(t, "1000", time.Hour)

	var lock api.LockDTO
	newTime := h.clock.Unix() + 7200
	code := h.do(t, "POST", fmt.Sprintf("/api/locks/%d/extend", id),
		map[string]any{"caller": aliceHex, "new_unlock_time": newTime}, &lock)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, newTime, lock.UnlockTime)

	// Shortening is rejected as a conflict.
	code = h.do(t, "POST", fmt.Sprintf("/api/locks/%d/extend", id),
		map[string]any{"caller": aliceHex, "new_unlock_time": newTime - 1}, nil)
	assert.Equal(t, http.StatusConflict, code)

	code = h.do(t, "POST", fmt.Sprintf("/api/locks/%d/transfer", id),
		map[string]any{"caller": aliceHex, "new_owner": bobHex}, &lock)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, bobHex, lock.Owner)

	// The previous owner is locked out.
	code = h.do(t, "POST", fmt.Sprintf("/api/locks/%d/extend", id),
		map[string]any{"caller": aliceHex, "new_unlock_time": newTime + 1}, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAPI_LockCertificate(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	id := h.createLock(t, "1000", time.Hour)

	var cert api.CertificateDTO
	code := h.do(t, "GET", fmt.Sprintf("/api/locks/%d/certificate", id), nil, &cert)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, cert.ID)
	assert.Len(t, cert.Hash, 66) // 0x + 32 bytes hex
}

func TestAPI_LockValidation(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	// Unlock time in the past.
	code := h.do(t, "POST", "/api/locks", map[string]any{
		"caller": aliceHex, "token": tokenHex, "amount": "100",
		"unlock_time": h.clock.Unix() - 1, "paid": "10",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Unregistered token.
	code = h.do(t, "POST", "/api/locks", map[string]any{
		"caller": aliceHex, "token": bobHex, "amount": "100",
		"unlock_time": h.clock.Unix() + 3600, "paid": "10",
	}, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// Fee underpayment.
	code = h.do(t, "POST", "/api/locks", map[string]any{
		"caller": aliceHex, "token": tokenHex, "amount": "100",
		"unlock_time": h.clock.Unix() + 3600, "paid": "9",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Unknown record.
	code = h.do(t, "GET", "/api/locks/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

// =============================================================================
// VESTING LIFECYCLE OVER HTTP
// =============================================================================

func TestAPI_VestingLifecycle(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	var created api.CreatedDTO
	code := h.do(t, "POST", "/api/vestings", map[string]any{
		"caller": aliceHex, "token": tokenHex, "amount": "1000",
		"cliff_seconds": 100, "duration_seconds": 1000, "paid": "20",
	}, &created)
	require.Equal(t, http.StatusCreated, code)

	// Before the cliff the preview answers zero.
	var claimable api.ClaimableDTO
	code = h.do(t, "GET", fmt.Sprintf("/api/vestings/%d/claimable", created.ID), nil, &claimable)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", claimable.Amount)

	// Claiming before the cliff is a conflict.
	code = h.do(t, "POST", fmt.Sprintf("/api/vestings/%d/claim", created.ID),
		map[string]any{"caller": aliceHex}, nil)
	assert.Equal(t, http.StatusConflict, code)

	// Half way through, half is claimable.
	h.clock.Advance(500 * time.Second)
	var claimed api.ClaimedDTO
	code = h.do(t, "POST", fmt.Sprintf("/api/vestings/%d/claim", created.ID),
		map[string]any{"caller": aliceHex}, &claimed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "500", claimed.Amount)

	// The record reflects the claim.
	var vest api.VestingDTO
	code = h.do(t, "GET", fmt.Sprintf("/api/vestings/%d", created.ID), nil, &vest)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "500", vest.Claimed)
	assert.False(t, vest.Completed)

	// Finish the schedule.
	h.clock.Advance(500 * time.Second)
	code = h.do(t, "POST", fmt.Sprintf("/api/vestings/%d/claim", created.ID),
		map[string]any{"caller": aliceHex}, &claimed)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "500", claimed.Amount)

	code = h.do(t, "GET", fmt.Sprintf("/api/vestings/%d", created.ID), nil, &vest)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, vest.Completed)

	// A finished schedule cannot be claimed again.
	code = h.do(t, "POST", fmt.Sprintf("/api/vestings/%d/claim", created.ID),
		map[string]any{"caller": aliceHex}, nil)
	assert.Equal(t, http.StatusConflict, code)
}

// =============================================================================
// OWNER INDEX, EVENTS, CONFIG
// =============================================================================

func TestAPI_OwnerIndex(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	id1 := h.createLock(t, "100", time.Hour)
	id2 := h.createLock(t, "200", time.Hour)

	var owned api.OwnedDTO
	code := h.do(t, "GET", "/api/owners/"+aliceHex+"/locks", nil, &owned)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, owned.Count)
	assert.ElementsMatch(t, []uint64{id1, id2}, owned.IDs)

	code = h.do(t, "GET", "/api/owners/"+bobHex+"/locks", nil, &owned)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, owned.Count)
}

func TestAPI_EventFeed(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	id := h.createLock(t, "100", time.Hour)
	h.clock.Advance(time.Hour + time.Second)
	code := h.do(t, "POST", fmt.Sprintf("/api/locks/%d/withdraw", id),
		map[string]any{"caller": aliceHex}, nil)
	require.Equal(t, http.StatusOK, code)

	var entries []sqlite.Entry
	code = h.do(t, "GET", "/api/events", nil, &entries)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, entries, 2)
	assert.Equal(t, "Locked", entries[0].Kind)
	assert.Equal(t, "LockWithdrawn", entries[1].Kind)

	code = h.do(t, "GET", "/api/events?kind=LockWithdrawn", nil, &entries)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].RecordID)
}

func TestAPI_Config(t *testing.T) {
	h := newHarness(t)

	var cfg api.ConfigDTO
	code := h.do(t, "GET", "/api/config", nil, &cfg)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "10", cfg.LockFee)
	assert.Equal(t, "20", cfg.VestingFee)
	assert.Equal(t, feeHex, cfg.FeeReceiver)
	assert.Equal(t, uint64(1337), cfg.ChainID)
}

func TestAPI_MalformedRequests(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	// Non-numeric record id.
	code := h.do(t, "GET", "/api/locks/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Bad address in path.
	code = h.do(t, "GET", "/api/owners/nothex/locks", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Missing amount.
	code = h.do(t, "POST", "/api/locks", map[string]any{
		"caller": aliceHex, "token": tokenHex,
		"unlock_time": h.clock.Unix() + 3600,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
