package airdrop

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MintResult is the outcome of one mint attempt.
type MintResult struct {
	Address common.Address `json:"address"`
	TokenID *big.Int       `json:"token_id,omitempty"`
	TxHash  common.Hash    `json:"tx_hash"`
	Error   string         `json:"error,omitempty"`

	// Unconfirmed: the transaction was broadcast but its receipt was not read, so it
	// may still land. Under the sequential policy its token id is not reused.
	Unconfirmed bool `json:"unconfirmed,omitempty"`

	Err error `json:"-"`
}

func (r MintResult) OK() bool {
	return r.Err == nil
}

// Report describes one distribution pass.
type Report struct {
	Chain       string       `json:"chain"`
	BlockNumber uint64       `json:"block_number"`
	Policy      Policy       `json:"policy"`
	Contract    string       `json:"contract,omitempty"`
	Results     []MintResult `json:"results"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

func (r *Report) add(res MintResult) {
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	r.Results = append(r.Results, res)
}

func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

func (r *Report) Unconfirmed() int {
	n := 0
	for _, res := range r.Results {
		if res.Unconfirmed {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded() - r.Unconfirmed()
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
