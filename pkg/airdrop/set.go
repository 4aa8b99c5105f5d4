package airdrop

import "github.com/ethereum/go-ethereum/common"

// AddressSet is a set of addresses that remembers insertion order.
// Iteration yields addresses in the order they were first added.
type AddressSet struct {
	index map[common.Address]struct{}
	order []common.Address
}

func NewAddressSet() *AddressSet {
	return &AddressSet{index: make(map[common.Address]struct{})}
}

// Add inserts addr and reports whether it was new.
func (s *AddressSet) Add(addr common.Address) bool {
	if _, ok := s.index[addr]; ok {
		return false
	}
	s.index[addr] = struct{}{}
	s.order = append(s.order, addr)
	return true
}

func (s *AddressSet) Contains(addr common.Address) bool {
	_, ok := s.index[addr]
	return ok
}

func (s *AddressSet) Len() int {
	return len(s.order)
}

// Addresses returns a copy of the members in first-seen order.
func (s *AddressSet) Addresses() []common.Address {
	out := make([]common.Address, len(s.order))
	copy(out, s.order)
	return out
}

// Reset empties the set.
func (s *AddressSet) Reset() {
	s.index = make(map[common.Address]struct{})
	s.order = nil
}
