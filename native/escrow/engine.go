package escrow

import (
	"errors"
	"math/big"
	"time"

	"workledger/core/types"
)

var (
	errNilState    = errors.New("escrow engine: state not configured")
	errNilTreasury = errors.New("escrow engine: fee treasury not configured")
)

type engineState interface {
	EscrowPut(*Record) error
	EscrowGet(jobID uint64) (*Record, bool)
	GetAccount(addr string) (*types.Account, error)
	PutAccount(addr string, account *types.Account) error
}

// Engine is the custody vault: it holds escrowed payments keyed by job id and
// moves balances between participant accounts and the per-job ledger. It is
// only ever invoked through the job ledger and the dispute arbiter, which own
// the authorization checks.
type Engine struct {
	state       engineState
	feeTreasury string
	nowFn       func() int64
}

// NewEngine creates an escrow vault. The state backend and fee treasury must
// be configured before use.
func NewEngine() *Engine {
	return &Engine{nowFn: func() int64 { return time.Now().Unix() }}
}

// SetState configures the state backend used by the vault.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFeeTreasury configures the address that accrues platform fees.
func (e *Engine) SetFeeTreasury(addr string) { e.feeTreasury = addr }

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) credit(addr string, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return e.state.PutAccount(addr, acc)
}

// Lock moves amount from the payer's available balance into the per-job
// escrow ledger. It fails without touching any balance when the payer cannot
// cover the amount or the job is already funded.
func (e *Engine) Lock(jobID uint64, payer string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, ok := e.state.EscrowGet(jobID); ok {
		return ErrAlreadyLocked
	}
	acc, err := e.state.GetAccount(payer)
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	if acc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amt)
	if err := e.state.PutAccount(payer, acc); err != nil {
		return err
	}
	record := &Record{
		JobID:    jobID,
		Payer:    payer,
		Amount:   amt,
		LockedAt: e.nowFn(),
	}
	return e.state.EscrowPut(record)
}

// Payout disburses the locked amount split between the recipient and the fee
// treasury at the given basis-point rate, then zeroes the job's escrow. The
// disbursement is all-or-nothing: the full locked amount is accounted for or
// the balance stays untouched.
func (e *Engine) Payout(jobID uint64, recipient string, feeBps uint32) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if feeBps > MaxFeeBps {
		return nil, nil, ErrFeeOutOfRange
	}
	if feeBps > 0 && e.feeTreasury == "" {
		return nil, nil, errNilTreasury
	}
	record, ok := e.state.EscrowGet(jobID)
	if !ok {
		return nil, nil, ErrNotFound
	}
	if record.Disbursed {
		return nil, nil, ErrAlreadyDisbursed
	}
	total := cloneBigInt(record.Amount)
	if total.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	payout, fee := SplitFee(total, feeBps)
	if err := e.credit(recipient, payout); err != nil {
		return nil, nil, err
	}
	if err := e.credit(e.feeTreasury, fee); err != nil {
		return nil, nil, err
	}
	record.Disbursed = true
	if err := e.state.EscrowPut(record); err != nil {
		return nil, nil, err
	}
	return payout, fee, nil
}

// Refund disburses the full locked amount to the recipient with no fee
// deduction and zeroes the job's escrow.
func (e *Engine) Refund(jobID uint64, recipient string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok := e.state.EscrowGet(jobID)
	if !ok {
		return nil, ErrNotFound
	}
	if record.Disbursed {
		return nil, ErrAlreadyDisbursed
	}
	total := cloneBigInt(record.Amount)
	if total.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := e.credit(recipient, total); err != nil {
		return nil, err
	}
	record.Disbursed = true
	if err := e.state.EscrowPut(record); err != nil {
		return nil, err
	}
	return total, nil
}

// Locked reports the amount still held for the job. Disbursed records report
// a zero balance.
func (e *Engine) Locked(jobID uint64) (*big.Int, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	record, ok := e.state.EscrowGet(jobID)
	if !ok {
		return nil, false
	}
	if record.Disbursed {
		return big.NewInt(0), true
	}
	return cloneBigInt(record.Amount), true
}
