package main

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/84hero/nft-dropbot/pkg/airdrop"
	"github.com/84hero/nft-dropbot/pkg/config"
	"github.com/84hero/nft-dropbot/pkg/metrics"
	"github.com/84hero/nft-dropbot/pkg/nft"
	"github.com/84hero/nft-dropbot/pkg/rpc"
	"github.com/84hero/nft-dropbot/pkg/scanner"
	"github.com/84hero/nft-dropbot/pkg/sink"
	"github.com/84hero/nft-dropbot/pkg/storage"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Run is the testable entry point of the bot. It returns when ctx is cancelled or a
// component fails.
func Run(ctx context.Context, cfg *config.Config) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := rpc.NewClient(runCtx, cfg.RPC)
	if err != nil {
		return err
	}
	defer client.Close()

	return run(runCtx, cfg, client)
}

func run(ctx context.Context, cfg *config.Config, client rpc.Client) error {
	chainID, err := resolveChainID(ctx, cfg, client)
	if err != nil {
		return err
	}
	chainKey := cfg.ChainKey()

	transactor, err := newTransactor(ctx, cfg, client)
	if err != nil {
		return err
	}

	contract, err := openContract(ctx, cfg, transactor)
	if err != nil {
		return err
	}
	if err := checkPolicy(cfg.Drop.Policy, contract); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	tracker, err := airdrop.New(airdrop.Config{
		Interval:     cfg.Drop.BlockInterval,
		Policy:       cfg.Drop.Policy,
		TokenIDStart: cfg.Drop.TokenIDStart,
		MintTimeout:  cfg.Drop.MintTimeout,
		Chain:        chainKey,
		Contract:     contract.Address().Hex(),
	}, contract, store)
	if err != nil {
		return err
	}

	fanout := sink.NewFanout(initOutputs(cfg.Outputs)...)
	defer fanout.Close()
	tracker.SetReportHandler(fanout.Deliver)

	filter, err := buildFilter(cfg.Scanner, transactor.From())
	if err != nil {
		return err
	}

	s := scanner.New(client, store, scanner.Config{
		Chain:         chainKey,
		StartBlock:    cfg.Scanner.StartBlock,
		ForceStart:    cfg.Scanner.ForceStart,
		Rewind:        cfg.Scanner.Rewind,
		CursorRewind:  cfg.Scanner.CursorRewind,
		Interval:      cfg.Scanner.Interval,
		Confirmations: cfg.Scanner.Confirmations,
	}, filter)
	s.SetChainID(chainID)
	s.SetHandler(tracker.HandleBlock)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error("Metrics server failed", "err", err)
			}
		}()
	}

	log.Info("Airdrop bot running",
		"chain", chainKey,
		"contract", contract.Address(),
		"signer", transactor.From(),
		"policy", cfg.Drop.Policy,
		"interval", cfg.Drop.BlockInterval,
		"next_token_id", tracker.NextTokenID(),
		"outputs", fanout.Len(),
	)

	return s.Start(ctx)
}

// Deploy deploys a fresh contract and writes its address to w.
func Deploy(ctx context.Context, cfg *config.Config, w io.Writer) error {
	client, err := rpc.NewClient(ctx, cfg.RPC)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := resolveChainID(ctx, cfg, client); err != nil {
		return err
	}
	transactor, err := newTransactor(ctx, cfg, client)
	if err != nil {
		return err
	}
	parsed, err := nft.LoadABI(cfg.Contract.ABIPath)
	if err != nil {
		return err
	}
	contract, err := deployContract(ctx, cfg, transactor, parsed)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, contract.Address().Hex())
	return err
}

// resolveChainID asks the node for its chain id and checks it against the configured one.
func resolveChainID(ctx context.Context, cfg *config.Config, client rpc.Client) (*big.Int, error) {
	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if cfg.Chain.ID != 0 && id.Uint64() != cfg.Chain.ID {
		return nil, fmt.Errorf("rpc chain id %s does not match configured chain id %d", id, cfg.Chain.ID)
	}
	cfg.Chain.ID = id.Uint64()
	return id, nil
}

func newTransactor(ctx context.Context, cfg *config.Config, client rpc.Client) (*nft.Transactor, error) {
	key, err := nft.ParsePrivateKey(cfg.Signer.PrivateKey)
	if err != nil {
		return nil, err
	}
	return nft.NewTransactor(ctx, client, key)
}

// openContract attaches to contract.address, or deploys a new contract when it is empty.
func openContract(ctx context.Context, cfg *config.Config, t *nft.Transactor) (*nft.Contract, error) {
	parsed, err := nft.LoadABI(cfg.Contract.ABIPath)
	if err != nil {
		return nil, err
	}

	if cfg.Contract.Address == "" {
		c, err := deployContract(ctx, cfg, t, parsed)
		if err != nil {
			return nil, err
		}
		log.Warn("Set CONTRACT_ADDRESS to reuse this contract after a restart", "address", c.Address())
		return c, nil
	}

	if !common.IsHexAddress(cfg.Contract.Address) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.Contract.Address)
	}
	c, err := nft.Attach(ctx, t, parsed, common.HexToAddress(cfg.Contract.Address), contractOptions(cfg))
	if err != nil {
		return nil, err
	}
	log.Info("Attached to NFT contract", "address", c.Address())
	return c, nil
}

func deployContract(ctx context.Context, cfg *config.Config, t *nft.Transactor, parsed abi.ABI) (*nft.Contract, error) {
	bytecode, err := nft.LoadBytecode(cfg.Contract.BytecodePath)
	if err != nil {
		return nil, err
	}

	log.Info("Deploying NFT contract", "from", t.From())
	c, err := nft.Deploy(ctx, t, parsed, bytecode, contractOptions(cfg), constructorArgs(parsed, cfg.Contract)...)
	if err != nil {
		return nil, err
	}
	log.Info("NFT contract deployed", "address", c.Address(), "tx", c.DeployTx())
	return c, nil
}

func contractOptions(cfg *config.Config) nft.Options {
	return nft.Options{
		MintMethod:  cfg.Contract.MintMethod,
		WaitReceipt: cfg.Drop.WaitReceipt,
	}
}

// constructorArgs passes (name, symbol) when the constructor takes two strings, nothing otherwise.
func constructorArgs(parsed abi.ABI, cc config.ContractConfig) []interface{} {
	in := parsed.Constructor.Inputs
	if len(in) == 2 && in[0].Type.T == abi.StringTy && in[1].Type.T == abi.StringTy {
		return []interface{}{cc.Name, cc.Symbol}
	}
	return nil
}

// checkPolicy makes sure the mint method matches who picks token ids.
func checkPolicy(p airdrop.Policy, c *nft.Contract) error {
	takesID, err := c.TakesTokenID()
	if err != nil {
		return err
	}
	if takesID != p.AssignsIDs() {
		if takesID {
			return fmt.Errorf("policy %q needs a mint(address) method, the configured one takes a token id", p)
		}
		return fmt.Errorf("policy %q needs a mint method that takes a token id", p)
	}
	return nil
}

func buildFilter(sc config.ScannerConfig, self common.Address) (*scanner.Filter, error) {
	filter := scanner.NewFilter().
		ExcludeSender(self).
		SetSkipContractCreation(sc.SkipContractCreation)

	for _, a := range sc.ExcludeSenders {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("invalid excluded sender %q", a)
		}
		filter.ExcludeSender(common.HexToAddress(a))
	}
	for _, a := range sc.Targets {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("invalid target %q", a)
		}
		filter.AddTarget(common.HexToAddress(a))
	}
	return filter, nil
}
