package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/84hero/nft-dropbot/pkg/airdrop"
	"github.com/84hero/nft-dropbot/pkg/metrics"
	"github.com/84hero/nft-dropbot/pkg/rpc"
	"github.com/84hero/nft-dropbot/pkg/storage"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

var ErrNilBlock = errors.New("rpc returned an empty block")

type Config struct {
	// Chain namespaces the persisted cursor
	Chain string
	// Startup strategy
	StartBlock   uint64
	ForceStart   bool
	Rewind       uint64
	CursorRewind uint64 // Safety rewind from saved cursor

	Interval      time.Duration
	Confirmations uint64
}

// Handler receives every block in height order. Returning an error stops the
// catch-up and the same block is retried on the next tick.
type Handler func(ctx context.Context, block airdrop.Block) error

type Scanner struct {
	client  rpc.Client
	store   storage.Checkpoints
	config  Config
	filter  *Filter
	handler Handler
	signer  types.Signer
}

func New(client rpc.Client, store storage.Checkpoints, cfg Config, filter *Filter) *Scanner {
	if cfg.Interval == 0 {
		cfg.Interval = 3 * time.Second
	}
	return &Scanner{
		client: client,
		store:  store,
		config: cfg,
		filter: filter,
	}
}

// SetHandler sets the callback function to be called for each block
func (s *Scanner) SetHandler(h Handler) {
	s.handler = h
}

// SetChainID fixes the signer used for sender recovery. Without it, Start asks the node.
func (s *Scanner) SetChainID(id *big.Int) {
	s.signer = types.LatestSignerForChainID(id)
}

// Start begins the scanning loop (blocks until context is cancelled)
func (s *Scanner) Start(ctx context.Context) error {
	if s.signer == nil {
		id, err := s.client.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
		s.SetChainID(id)
	}

	// 1. Determine starting block height
	currentBlock, err := s.determineStartBlock(ctx)
	if err != nil {
		return err
	}
	log.Info("Scanner started", "start_block", currentBlock, "chain", s.config.Chain, "confirmations", s.config.Confirmations)
	metrics.ScannerCursor.Set(float64(currentBlock))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// 2. Get latest block number from chain
			head, err := s.client.BlockNumber(ctx)
			if err != nil {
				log.Error("Failed to get block number", "err", err)
				metrics.ScannerErrors.WithLabelValues("head").Inc()
				continue
			}
			metrics.ScannerHead.Set(float64(head))

			// Calculate safe height (latest height - confirmations)
			if head < s.config.Confirmations {
				continue
			}
			safeHead := head - s.config.Confirmations
			if safeHead < currentBlock {
				// No new blocks yet
				continue
			}

			// 3. Catch up one block at a time
			for currentBlock <= safeHead {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				if err := s.processBlock(ctx, currentBlock); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					log.Error("Block processing failed", "block", currentBlock, "err", err)
					metrics.ScannerErrors.WithLabelValues("block").Inc()
					// Wait a bit before retrying, but respect context
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(1 * time.Second):
					}
					break // Break inner loop, wait for next ticker
				}

				// 4. Update progress
				nextStart := currentBlock + 1
				if err := s.store.Save(storage.CursorKey(s.config.Chain), nextStart); err != nil {
					log.Error("Failed to save cursor", "err", err)
				}

				currentBlock = nextStart
				metrics.BlocksProcessed.Inc()
				metrics.ScannerCursor.Set(float64(currentBlock))
			}
		}
	}
}

func (s *Scanner) determineStartBlock(ctx context.Context) (uint64, error) {
	// Strategy 1: Force Start (highest priority)
	if s.config.ForceStart && s.config.StartBlock > 0 {
		log.Info("Start strategy: Force Start", "block", s.config.StartBlock)
		return s.config.StartBlock, nil
	}

	// Strategy 2: Resume from persistence
	saved, err := s.store.Load(storage.CursorKey(s.config.Chain))
	if err != nil {
		return 0, err
	}
	if saved > 0 {
		start := saved
		if s.config.CursorRewind > 0 {
			if start > s.config.CursorRewind {
				start = start - s.config.CursorRewind
			} else {
				start = 0
			}
			log.Info("Start strategy: Resume from persistence with safety rewind", "saved", saved, "rewind", s.config.CursorRewind, "start", start)
		} else {
			log.Info("Start strategy: Resume from persistence", "block", saved)
		}
		return start, nil
	}

	// Strategy 3: Config StartBlock (not forced, used as default)
	if s.config.StartBlock > 0 {
		log.Info("Start strategy: Config StartBlock", "block", s.config.StartBlock)
		return s.config.StartBlock, nil
	}

	// Strategy 4: Dynamic Rewind
	// If no saved cursor and no StartBlock, start from N blocks before Head
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	start := uint64(0)
	if head > s.config.Rewind {
		start = head - s.config.Rewind
	}
	log.Info("Start strategy: Rewind from Head", "head", head, "rewind", s.config.Rewind, "start", start)

	return start, nil
}

// processBlock fetches block n, recovers its senders and hands it to the handler.
func (s *Scanner) processBlock(ctx context.Context, n uint64) error {
	raw, err := s.client.BlockByNumber(ctx, new(big.Int).SetUint64(n))
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrNilBlock
	}

	block := s.convert(n, raw)
	if s.handler == nil {
		return nil
	}
	return s.handler(ctx, block)
}

func (s *Scanner) convert(n uint64, raw *types.Block) airdrop.Block {
	out := airdrop.Block{
		Number: n,
		Hash:   raw.Hash(),
	}

	for _, tx := range raw.Transactions() {
		sender, err := types.Sender(s.signer, tx)
		if err != nil {
			log.Warn("Skipping transaction with unrecoverable sender", "block", n, "tx", tx.Hash(), "err", err)
			continue
		}
		if !s.filter.Accept(sender, tx.To()) {
			continue
		}
		out.Transactions = append(out.Transactions, airdrop.Tx{
			Hash:   tx.Hash(),
			Sender: sender,
			To:     tx.To(),
		})
	}

	return out
}
