package airdrop

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/84hero/nft-dropbot/pkg/metrics"
	"github.com/84hero/nft-dropbot/pkg/nft"
	"github.com/84hero/nft-dropbot/pkg/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

var ErrZeroInterval = errors.New("block interval must be positive")

// Config controls the cadence and the token id policy.
type Config struct {
	Interval     uint64
	Policy       Policy
	TokenIDStart uint64
	MintTimeout  time.Duration

	// Chain labels reports and namespaces the persisted counter.
	Chain    string
	Contract string
}

// ReportHandler receives the report of every distribution pass that ran.
type ReportHandler func(ctx context.Context, report *Report)

// Tracker accumulates block senders and mints one NFT to each of them at every
// cadence boundary. HandleBlock must be called with strictly increasing heights.
type Tracker struct {
	cfg    Config
	minter Minter
	store  CounterStore

	mu       sync.Mutex
	tracked  *AddressSet
	next     uint64
	lastDrop uint64 // last boundary a pass started at, 0 when none
	onReport ReportHandler
}

// New creates a tracker. store may be nil, in which case neither the counter nor the
// last distributed boundary is persisted and the counter starts at cfg.TokenIDStart.
func New(cfg Config, minter Minter, store CounterStore) (*Tracker, error) {
	if cfg.Policy == "" {
		cfg.Policy = PolicySequential
	}
	if cfg.Interval == 0 {
		return nil, ErrZeroInterval
	}
	if cfg.MintTimeout <= 0 {
		cfg.MintTimeout = DefaultMintTimeout
	}

	t := &Tracker{
		cfg:     cfg,
		minter:  minter,
		store:   store,
		tracked: NewAddressSet(),
		next:    cfg.TokenIDStart,
	}

	if store != nil {
		last, err := store.Load(storage.LastDropKey(cfg.Chain))
		if err != nil {
			return nil, fmt.Errorf("load last distribution: %w", err)
		}
		t.lastDrop = last
	}

	if store != nil && cfg.Policy.AssignsIDs() {
		saved, err := store.Load(t.counterKey())
		if err != nil {
			return nil, fmt.Errorf("load token id counter: %w", err)
		}
		if saved > t.next {
			log.Info("Resuming token id counter", "next", saved, "configured_start", cfg.TokenIDStart)
			t.next = saved
		}
	}
	metrics.NextTokenID.Set(float64(t.next))

	return t, nil
}

func (t *Tracker) counterKey() string {
	return storage.TokenIDKey(t.cfg.Chain)
}

// SetReportHandler registers the callback invoked by HandleBlock after a pass.
func (t *Tracker) SetReportHandler(h ReportHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReport = h
}

func (t *Tracker) Config() Config {
	return t.cfg
}

// Tracked returns the addresses awaiting distribution in first-seen order.
func (t *Tracker) Tracked() []common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracked.Addresses()
}

// NextTokenID returns the id the next sequential mint will use.
func (t *Tracker) NextTokenID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

// IsBoundary reports whether height is a cadence boundary.
func (t *Tracker) IsBoundary(height uint64) bool {
	return height%t.cfg.Interval == 0
}

// OnBlock adds every sender of b to the tracked set and returns how many were new.
func (t *Tracker) OnBlock(b Block) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, tx := range b.Transactions {
		if t.tracked.Add(tx.Sender) {
			added++
		}
	}
	metrics.TrackedAddresses.Set(float64(t.tracked.Len()))

	log.Debug("Block observed", "number", b.Number, "txs", len(b.Transactions), "new", added, "tracked", t.tracked.Len())
	return added
}

// MaybeDistribute runs a distribution pass when height is a cadence boundary and the
// tracked set is not empty. Every tracked address gets exactly one attempt, in
// first-seen order, and the set is cleared afterwards whatever the outcome.
// A boundary at or below the last one a pass started at (a replay after a cursor
// rewind) is skipped and its re-tracked addresses dropped, since they were served then.
// The bool result reports whether a pass ran.
func (t *Tracker) MaybeDistribute(ctx context.Context, height uint64) (*Report, bool) {
	if !t.IsBoundary(height) {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastDrop > 0 && height <= t.lastDrop {
		log.Info("Skipping boundary already distributed", "block", height, "last", t.lastDrop, "dropped", t.tracked.Len())
		t.tracked.Reset()
		metrics.TrackedAddresses.Set(0)
		return nil, false
	}

	if t.tracked.Len() == 0 {
		log.Debug("Cadence boundary with no tracked addresses", "block", height)
		return nil, false
	}

	// Recorded before minting: a crash mid-pass loses the rest of the pass
	// instead of minting the first part twice.
	t.lastDrop = height
	if t.store != nil {
		if err := t.store.Save(storage.LastDropKey(t.cfg.Chain), height); err != nil {
			log.Warn("Failed to persist last distribution", "block", height, "err", err)
		}
	}

	addrs := t.tracked.Addresses()
	report := &Report{
		Chain:       t.cfg.Chain,
		BlockNumber: height,
		Policy:      t.cfg.Policy,
		Contract:    t.cfg.Contract,
		Results:     make([]MintResult, 0, len(addrs)),
		StartedAt:   time.Now(),
	}

	log.Info("Distributing NFTs", "block", height, "recipients", len(addrs), "policy", t.cfg.Policy)

	for i, addr := range addrs {
		if err := ctx.Err(); err != nil {
			for _, rest := range addrs[i:] {
				report.add(MintResult{Address: rest, Err: err})
				metrics.MintAttempts.WithLabelValues(metrics.ResultSkipped).Inc()
			}
			log.Warn("Distribution interrupted", "block", height, "skipped", len(addrs)-i, "err", err)
			break
		}
		report.add(t.mintOne(ctx, addr))
	}

	t.tracked.Reset()
	report.FinishedAt = time.Now()

	metrics.TrackedAddresses.Set(0)
	metrics.DistributionPasses.Inc()
	metrics.DistributionDuration.Observe(report.Duration().Seconds())

	log.Info("Distribution finished", "block", height, "minted", report.Succeeded(), "failed", report.Failed(), "elapsed", report.Duration())
	return report, true
}

// mintOne attempts a single mint. Caller holds t.mu.
func (t *Tracker) mintOne(ctx context.Context, addr common.Address) MintResult {
	var tokenID *big.Int
	if t.cfg.Policy.AssignsIDs() {
		tokenID = new(big.Int).SetUint64(t.next)
	}

	mctx, cancel := context.WithTimeout(ctx, t.cfg.MintTimeout)
	receipt, err := t.minter.Mint(mctx, addr, tokenID)
	cancel()

	res := MintResult{Address: addr, TokenID: tokenID}
	if receipt != nil {
		res.TxHash = receipt.TxHash
		if receipt.TokenID != nil {
			res.TokenID = receipt.TokenID
		}
	}

	if err != nil {
		res.Err = err
		if broadcast(receipt, err) {
			// The tx is out and may still be mined with this id
			res.Unconfirmed = true
			metrics.MintAttempts.WithLabelValues(metrics.ResultUnconfirmed).Inc()
			log.Warn("Mint sent but not confirmed", "address", addr, "token_id", tokenID, "tx", res.TxHash, "err", err)
			t.consumeTokenID()
			return res
		}
		metrics.MintAttempts.WithLabelValues(metrics.ResultFailure).Inc()
		log.Error("Error minting NFT", "address", addr, "token_id", tokenID, "err", err)
		return res
	}

	metrics.MintAttempts.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Info("NFT minted and sent", "address", addr, "token_id", res.TokenID, "tx", res.TxHash)

	t.consumeTokenID()
	return res
}

// consumeTokenID advances and persists the sequential counter. Caller holds t.mu.
func (t *Tracker) consumeTokenID() {
	if !t.cfg.Policy.AssignsIDs() {
		return
	}
	t.next++
	metrics.NextTokenID.Set(float64(t.next))
	if t.store != nil {
		if err := t.store.Save(t.counterKey(), t.next); err != nil {
			log.Warn("Failed to persist token id counter", "next", t.next, "err", err)
		}
	}
}

// broadcast reports whether a failed mint got as far as sending its transaction
// without it being seen to revert.
func broadcast(receipt *nft.MintReceipt, err error) bool {
	return receipt != nil && receipt.TxHash != (common.Hash{}) && !errors.Is(err, nft.ErrReverted)
}

// HandleBlock is the per-block entry point: track the senders, then distribute if
// the block is a cadence boundary. Mint failures never surface as an error here.
func (t *Tracker) HandleBlock(ctx context.Context, b Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.OnBlock(b)

	report, ran := t.MaybeDistribute(ctx, b.Number)
	if !ran {
		return nil
	}

	t.mu.Lock()
	h := t.onReport
	t.mu.Unlock()
	if h != nil {
		h(ctx, report)
	}
	return nil
}
