package scanner

import (
	"github.com/ethereum/go-ethereum/common"
)

// Filter decides which transactions count toward tracking.
// A nil *Filter accepts every transaction.
type Filter struct {
	// Exclude holds senders that are never tracked (the bot's own signer, faucets, ...)
	Exclude map[common.Address]struct{}

	// Targets restricts tracking to transactions sent to these addresses.
	// If empty, transactions to any address count.
	Targets map[common.Address]struct{}

	// SkipContractCreation ignores transactions without a recipient.
	SkipContractCreation bool
}

// NewFilter creates a new filter
func NewFilter() *Filter {
	return &Filter{
		Exclude: make(map[common.Address]struct{}),
		Targets: make(map[common.Address]struct{}),
	}
}

// ExcludeSender adds senders that must never be tracked
func (f *Filter) ExcludeSender(addrs ...common.Address) *Filter {
	for _, a := range addrs {
		f.Exclude[a] = struct{}{}
	}
	return f
}

// AddTarget adds recipient addresses to listen to
func (f *Filter) AddTarget(addrs ...common.Address) *Filter {
	for _, a := range addrs {
		f.Targets[a] = struct{}{}
	}
	return f
}

func (f *Filter) SetSkipContractCreation(skip bool) *Filter {
	f.SkipContractCreation = skip
	return f
}

// Accept reports whether a transaction from sender to `to` should be tracked.
// to is nil for contract creation.
func (f *Filter) Accept(sender common.Address, to *common.Address) bool {
	if f == nil {
		return true
	}
	if _, ok := f.Exclude[sender]; ok {
		return false
	}
	if to == nil {
		// A creation tx can never match a target list
		return !f.SkipContractCreation && len(f.Targets) == 0
	}
	if len(f.Targets) > 0 {
		_, ok := f.Targets[*to]
		return ok
	}
	return true
}
