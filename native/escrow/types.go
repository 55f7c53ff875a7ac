package escrow

import (
	"errors"
	"math/big"
)

// MaxFeeBps caps the platform fee at 100% of the escrowed amount.
const MaxFeeBps = 10_000

var (
	// ErrInvalidAmount is returned when a lock or disbursement amount is not
	// strictly positive.
	ErrInvalidAmount = errors.New("escrow: amount must be positive")
	// ErrInsufficientFunds is returned when the payer's available balance
	// cannot cover the lock.
	ErrInsufficientFunds = errors.New("escrow: insufficient balance")
	// ErrAlreadyDisbursed is returned when a job's escrow was already
	// emptied by a payout or refund.
	ErrAlreadyDisbursed = errors.New("escrow: already disbursed")
	// ErrAlreadyLocked is returned when funds were already locked under the
	// same job id.
	ErrAlreadyLocked = errors.New("escrow: job already funded")
	// ErrNotFound is returned when no escrow record exists for the job.
	ErrNotFound = errors.New("escrow: no funds locked for job")
	// ErrFeeOutOfRange is returned when the fee rate exceeds MaxFeeBps.
	ErrFeeOutOfRange = errors.New("escrow: fee bps out of range")
)

// Record captures the custody ledger entry for a single job: who funded it,
// how much is locked, and whether the balance has been disbursed.
type Record struct {
	JobID     uint64   `json:"jobId"`
	Payer     string   `json:"payer"`
	Amount    *big.Int `json:"amount"`
	Disbursed bool     `json:"disbursed"`
	LockedAt  int64    `json:"lockedAt"`
}

// Clone returns a deep copy of the record so callers can safely mutate the
// copy without affecting the stored instance.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Amount != nil {
		clone.Amount = new(big.Int).Set(r.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// SplitFee computes the payout and retained fee for an amount at the given
// basis-point rate. The payout is amount*(10_000-feeBps)/10_000 with integer
// division, and the fee is the exact remainder, so the two always sum to the
// locked amount.
func SplitFee(amount *big.Int, feeBps uint32) (payout, fee *big.Int) {
	total := cloneBigInt(amount)
	payout = new(big.Int).Mul(total, big.NewInt(int64(MaxFeeBps-feeBps)))
	payout.Div(payout, big.NewInt(MaxFeeBps))
	fee = new(big.Int).Sub(total, payout)
	return payout, fee
}
