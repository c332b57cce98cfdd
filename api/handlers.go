/*
handlers.go - HTTP API handlers for the custody engine

PURPOSE:
  Exposes the custody engine via REST. Handles HTTP request/response,
  JSON serialization, and delegates to the engine. Caller identity is
  taken from the request body: this is a development/demo surface with
  no authentication, mirroring how the engine would sit behind a signer
  in production.

ENDPOINTS:
  Locks:
    POST /api/locks                    Create a time-lock
    GET  /api/locks/{id}               Fetch a lock record
    GET  /api/locks/{id}/certificate   Proof-of-lock hash
    POST /api/locks/{id}/extend        Extend the unlock time
    POST /api/locks/{id}/transfer      Reassign ownership
    POST /api/locks/{id}/withdraw      Withdraw a matured lock

  Vestings:
    POST /api/vestings                 Create a vesting schedule
    GET  /api/vestings/{id}            Fetch a vesting record
    GET  /api/vestings/{id}/claimable  Preview a claim
    POST /api/vestings/{id}/claim      Claim vested tokens
    POST /api/vestings/{id}/transfer   Reassign ownership

  Owners / events / config:
    GET  /api/owners/{addr}/locks      Ids held by an owner
    GET  /api/owners/{addr}/vestings
    GET  /api/events                   Journal feed (?kind=&owner=&record=&limit=)
    GET  /api/config                   Fees, receiver, chain id

  Dev surface:
    POST /api/tokens                   Register a demo token
    POST /api/tokens/{addr}/mint       Mint demo token balance
    POST /api/accounts/{addr}/fund     Native-currency faucet

ERROR MAPPING:
  400 validation, 403 not-owner, 404 unknown record/token,
  409 state conflicts (still locked, already withdrawn, ...),
  502 external transfer failures, 500 everything else.

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"github.com/warp/custody-engine/engine"
	"github.com/warp/custody-engine/store/sqlite"
	"github.com/warp/custody-engine/token"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *engine.Engine
	Registry *token.Registry
	Bank     *token.Bank
	Journal  *sqlite.Journal // optional; nil disables durable journaling

	mu        sync.Mutex
	journaled int // engine log position already persisted
}

// NewHandler creates a handler around an engine and its collaborators.
func NewHandler(eng *engine.Engine, reg *token.Registry, bank *token.Bank, journal *sqlite.Journal) *Handler {
	return &Handler{Engine: eng, Registry: reg, Bank: bank, Journal: journal}
}

// syncJournal persists any engine events not yet journaled. Called after
// every mutating operation; safe to call when nothing happened.
func (h *Handler) syncJournal(r *http.Request) {
	if h.Journal == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	pending := h.Engine.Events().Since(h.journaled)
	if len(pending) == 0 {
		return
	}
	if err := h.Journal.AppendAll(r.Context(), pending); err != nil {
		// State is already committed in the engine; the journal is an
		// indexer projection and will catch up on the next write.
		log.Printf("journal append failed: %v", err)
		return
	}
	h.journaled += len(pending)
}

// =============================================================================
// LOCK HANDLERS
// =============================================================================

// CreateLock handles POST /api/locks.
func (h *Handler) CreateLock(w http.ResponseWriter, r *http.Request) {
	var req CreateLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	caller, err := engine.ParseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller address", err)
		return
	}
	tokenAddr, err := engine.ParseAddress(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token address", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	paid, err := parseAmountAllowZero(req.Paid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paid amount", err)
		return
	}

	id, err := h.Engine.LockToken(caller, tokenAddr, amount, req.UnlockTime, paid)
	h.syncJournal(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: id})
}

// GetLock handles GET /api/locks/{id}.
func (h *Handler) GetLock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.Engine.Lock(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lockDTO(rec))
}

// GetCertificate handles GET /api/locks/{id}/certificate.
func (h *Handler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	hash, err := h.Engine.Certificate(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CertificateDTO{ID: id, Hash: fmt.Sprintf("0x%x", hash)})
}

// ExtendLock handles POST /api/locks/{id}/extend.
func (h *Handler) ExtendLock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ExtendLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	caller, err := engine.ParseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller address", err)
		return
	}

	err = h.Engine.ExtendLock(caller, id, req.NewUnlockTime)
	h.syncJournal(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rec, _ := h.Engine.Lock(id)
	writeJSON(w, http.StatusOK, lockDTO(rec))
}

// TransferLock handles POST /api/locks/{id}/transfer.
func (h *Handler) TransferLock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, newOwner, ok := transferParties(w, r)
	if !ok {
		return
	}

	err := h.Engine.TransferLockOwnership(caller, id, newOwner)
	h.syncJournal(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rec, _ := h.Engine.Lock(id)
	writeJSON(w, http.StatusOK, lockDTO(rec))
}

// WithdrawLock handles POST /api/locks/{id}/withdraw.
func (h *Handler) WithdrawLock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, ok := bodyCaller(w, r)
	if !ok {
		return
	}

	err := h.Engine.WithdrawLock(caller, id)
	h.syncJournal(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rec, _ := h.Engine.Lock(id)
	writeJSON(w, http.StatusOK, lockDTO(rec))
}

// =============================================================================
// VESTING HANDLERS
// =============================================================================

// CreateVesting handles POST /api/vestings.
func (h *Handler) CreateVesting(w http.ResponseWriter, r *http.Request) {
	var req CreateVestingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	caller, err := engine.ParseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller address", err)
		return
	}
	tokenAddr, err := engine.ParseAddress(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token address", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	paid, err := parseAmountAllowZero(req.Paid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paid amount", err)
		return
	}

	id, err := h.Engine.CreateVesting(caller, tokenAddr, amount, req.Cliff, req.Duration, paid)
	h.syncJournal(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: id})
}

// GetVesting handles GET /api/vestings/{id}.
func (h *Handler) GetVesting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.Engine.Vesting(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vestingDTO(rec))
}

// GetClaimable handles GET /api/vestings/{id}/claimable.
func (h *Handler) GetClaimable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.Engine.Vesting(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	amount, err := h.Engine.Claimable(id)
	if err != nil {
		// "Nothing claimable yet" is an answer, not a failure, for a
		// read-only preview.
		if errors.Is(err, engine.ErrCliffNotReached) || errors.Is(err, engine.ErrNothingToClaim) {
			zero := uint256.NewInt(0)
			writeJSON(w, http.StatusOK, ClaimableDTO{ID: id, Amount: zero.Dec(), AmountDisplay: displayAmount(zero, rec.Decimals)})
			return
		}
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClaimableDTO{ID: id, Amount: amount.Dec(), AmountDisplay: displayAmount(amount, rec.Decimals)})
}

// ClaimVesting handles POST /api/vestings/{id}/claim.
func (h *Handler) ClaimVesting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, ok := bodyCaller(w, r)
	if !ok {
		return
	}

	claimed, err := h.Engine.ClaimVesting(caller, id)
	h.syncJournal(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rec, _ := h.Engine.Vesting(id)
	writeJSON(w, http.StatusOK, ClaimedDTO{
		ID:            id,
		Amount:        claimed.Dec(),
		AmountDisplay: displayAmount(claimed, rec.Decimals),
	})
}

// TransferVesting handles POST /api/vestings/{id}/transfer.
func (h *Handler) TransferVesting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, newOwner, ok := transferParties(w, r)
	if !ok {
		return
	}

	err := h.Engine.TransferVestingOwnership(caller, id, newOwner)
	h.syncJournal(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rec, _ := h.Engine.Vesting(id)
	writeJSON(w, http.StatusOK, vestingDTO(rec))
}

// =============================================================================
// OWNER / EVENT / CONFIG HANDLERS
// =============================================================================

// OwnerLocks handles GET /api/owners/{addr}/locks.
func (h *Handler) OwnerLocks(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r)
	if !ok {
		return
	}
	ids := h.Engine.LocksOf(owner)
	writeJSON(w, http.StatusOK, OwnedDTO{Owner: owner.Hex(), Count: len(ids), IDs: ids})
}

// OwnerVestings handles GET /api/owners/{addr}/vestings.
func (h *Handler) OwnerVestings(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r)
	if !ok {
		return
	}
	ids := h.Engine.VestingsOf(owner)
	writeJSON(w, http.StatusOK, OwnedDTO{Owner: owner.Hex(), Count: len(ids), IDs: ids})
}

// ListEvents handles GET /api/events. Served from the durable journal when
// available, falling back to the engine's in-memory log.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if h.Journal != nil {
		f := sqlite.Filter{Kind: q.Get("kind"), Owner: q.Get("owner")}
		if rec := q.Get("record"); rec != "" {
			id, err := strconv.ParseUint(rec, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid record id", err)
				return
			}
			f.RecordID = id
		}
		if lim := q.Get("limit"); lim != "" {
			n, err := strconv.Atoi(lim)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit", err)
				return
			}
			f.Limit = n
		}
		entries, err := h.Journal.List(r.Context(), f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list events", err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	kind := q.Get("kind")
	var owner engine.Address
	hasOwner := false
	if o := q.Get("owner"); o != "" {
		parsed, err := engine.ParseAddress(o)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid owner address", err)
			return
		}
		owner, hasOwner = parsed, true
	}
	events := h.Engine.Events().Filter(func(e engine.Event) bool {
		if kind != "" && e.Kind() != kind {
			return false
		}
		if hasOwner && !engine.Involves(e, owner) {
			return false
		}
		return true
	})
	writeJSON(w, http.StatusOK, events)
}

// GetConfig handles GET /api/config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConfigDTO{
		LockFee:     h.Engine.LockFee().Dec(),
		VestingFee:  h.Engine.VestingFee().Dec(),
		FeeReceiver: h.Engine.FeeReceiver().Hex(),
		ChainID:     h.Engine.ChainID(),
	})
}

// =============================================================================
// DEV SURFACE - demo tokens and the native faucet
// =============================================================================

// RegisterToken handles POST /api/tokens.
func (h *Handler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	addr, err := engine.ParseAddress(req.Address)
	if err != nil || addr.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid token address", err)
		return
	}
	tok := token.NewStandard(req.Decimals)
	tok.Bind(h.Engine.Self())
	h.Registry.Register(addr, tok)
	writeJSON(w, http.StatusCreated, map[string]string{"address": addr.Hex()})
}

// MintToken handles POST /api/tokens/{addr}/mint.
func (h *Handler) MintToken(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	to, err := engine.ParseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recipient", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	tok, err := h.Registry.Token(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	std, ok2 := tok.(*token.Standard)
	if !ok2 {
		writeError(w, http.StatusConflict, "token is not mintable", nil)
		return
	}
	std.Mint(to, amount)
	writeJSON(w, http.StatusOK, map[string]string{"balance": std.BalanceOf(to).Dec()})
}

// FundAccount handles POST /api/accounts/{addr}/fund.
func (h *Handler) FundAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}
	h.Bank.Fund(addr, amount)
	writeJSON(w, http.StatusOK, map[string]string{"balance": h.Bank.Balance(addr).Dec()})
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id", err)
		return 0, false
	}
	return id, true
}

func pathAddress(w http.ResponseWriter, r *http.Request) (engine.Address, bool) {
	addr, err := engine.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address", err)
		return engine.ZeroAddress, false
	}
	return addr, true
}

func bodyCaller(w http.ResponseWriter, r *http.Request) (engine.Address, bool) {
	var req CallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return engine.ZeroAddress, false
	}
	caller, err := engine.ParseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller address", err)
		return engine.ZeroAddress, false
	}
	return caller, true
}

func transferParties(w http.ResponseWriter, r *http.Request) (caller, newOwner engine.Address, ok bool) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	caller, err := engine.ParseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller address", err)
		return
	}
	newOwner, err = engine.ParseAddress(req.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid new owner address", err)
		return
	}
	return caller, newOwner, true
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}
	return uint256.FromDecimal(s)
}

func parseAmountAllowZero(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	return uint256.FromDecimal(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	dto := ErrorDTO{Error: msg}
	if err != nil {
		dto.Details = err.Error()
	}
	writeJSON(w, status, dto)
}

// writeEngineError maps engine errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, engine.ErrUnknownToken):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, engine.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case engine.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case engine.IsStateConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case engine.IsExternalFailure(err):
		writeError(w, http.StatusBadGateway, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
