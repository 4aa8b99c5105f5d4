package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/84hero/nft-dropbot/pkg/airdrop"
	"github.com/84hero/nft-dropbot/pkg/chain"
	"github.com/84hero/nft-dropbot/pkg/rpc"
	"github.com/84hero/nft-dropbot/pkg/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "DROPBOT"

var (
	ErrNoSigner = errors.New("signer private key is required (SIGNER_PRIVATE_KEY)")
	ErrNoRPC    = errors.New("at least one rpc node is required (RPC_URL or rpc_nodes)")
)

type Config struct {
	Project  string           `mapstructure:"project"`
	Log      LogConfig        `mapstructure:"log"`
	Chain    ChainConfig      `mapstructure:"chain"`
	RPC      []rpc.NodeConfig `mapstructure:"rpc_nodes"`
	Signer   SignerConfig     `mapstructure:"signer"`
	Contract ContractConfig   `mapstructure:"contract"`
	Drop     DropConfig       `mapstructure:"drop"`
	Scanner  ScannerConfig    `mapstructure:"scanner"`
	Storage  storage.Options  `mapstructure:"storage"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
	Outputs  OutputsConfig    `mapstructure:"outputs"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // trace, debug, info, warn, error, crit
	Format string `mapstructure:"format"` // text, json
}

type ChainConfig struct {
	Preset string `mapstructure:"preset"` // e.g. eth-mainnet, base-mainnet, local
	ID     uint64 `mapstructure:"id"`     // 0 means ask the node
}

type SignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

type ContractConfig struct {
	Address      string `mapstructure:"address"` // empty: deploy a new contract at startup
	ABIPath      string `mapstructure:"abi_path"`
	BytecodePath string `mapstructure:"bytecode_path"`
	MintMethod   string `mapstructure:"mint_method"`
	Name         string `mapstructure:"name"`
	Symbol       string `mapstructure:"symbol"`
}

type DropConfig struct {
	BlockInterval uint64         `mapstructure:"block_interval"`
	TokenIDStart  uint64         `mapstructure:"token_id_start"`
	Policy        airdrop.Policy `mapstructure:"policy"`
	MintTimeout   time.Duration  `mapstructure:"mint_timeout"`
	WaitReceipt   bool           `mapstructure:"wait_receipt"`
}

type ScannerConfig struct {
	Interval time.Duration `mapstructure:"poll_interval"`

	// Confirmations: blocks behind head before a block is tracked
	Confirmations uint64 `mapstructure:"confirmations"`

	// Startup strategy
	StartBlock   uint64 `mapstructure:"start_block"`   // If > 0 and ForceStart=true, forces start from here
	ForceStart   bool   `mapstructure:"force_start"`   // Whether to force override persistence records
	Rewind       uint64 `mapstructure:"start_rewind"`  // If no saved cursor, start from Latest - Rewind
	CursorRewind uint64 `mapstructure:"cursor_rewind"` // If saved cursor exists, start from Cursor - CursorRewind

	// Filtering
	ExcludeSenders       []string `mapstructure:"exclude_senders"`
	Targets              []string `mapstructure:"targets"`
	SkipContractCreation bool     `mapstructure:"skip_contract_creation"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // e.g. ":9090", empty disables
}

// Load reads the config file at path (skipped when path is empty), a .env file in
// the working directory if present, and the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// A single RPC_URL stands in for an rpc_nodes list
	if len(cfg.RPC) == 0 {
		if url := v.GetString("rpc_url"); url != "" {
			cfg.RPC = []rpc.NodeConfig{{URL: url, Priority: 1}}
		}
	}

	if err := cfg.applyDefaults(v.IsSet("scanner.confirmations")); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project", "dropbot")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("chain.preset", "")
	v.SetDefault("chain.id", 0)
	v.SetDefault("signer.private_key", "")
	v.SetDefault("contract.address", "")
	v.SetDefault("contract.abi_path", "")
	v.SetDefault("contract.bytecode_path", "")
	v.SetDefault("contract.mint_method", "")
	v.SetDefault("contract.name", "DropBot")
	v.SetDefault("contract.symbol", "DROP")
	v.SetDefault("drop.block_interval", 0)
	v.SetDefault("drop.token_id_start", 0)
	v.SetDefault("drop.policy", string(airdrop.PolicySequential))
	v.SetDefault("drop.mint_timeout", airdrop.DefaultMintTimeout)
	v.SetDefault("drop.wait_receipt", true)
	v.SetDefault("scanner.poll_interval", 0)
	v.SetDefault("scanner.start_block", 0)
	v.SetDefault("scanner.force_start", false)
	v.SetDefault("scanner.start_rewind", 0)
	v.SetDefault("scanner.cursor_rewind", 0)
	v.SetDefault("scanner.skip_contract_creation", false)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.url", "")
	v.SetDefault("storage.addr", "")
	v.SetDefault("storage.password", "")
	v.SetDefault("storage.db", 0)
	v.SetDefault("storage.prefix", "")
	v.SetDefault("metrics.addr", "")
}

// bindEnv maps the short, unprefixed variable names onto config keys. The prefixed
// form (DROPBOT_DROP_BLOCK_INTERVAL) wins when both are set.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"drop.block_interval": "BLOCK_INTERVAL",
		"drop.token_id_start": "TOKEN_ID_START",
		"drop.policy":         "DROP_POLICY",
		"log.level":           "LOG_LEVEL",
		"log.format":          "LOG_FORMAT",
		"signer.private_key":  "SIGNER_PRIVATE_KEY",
		"contract.address":    "CONTRACT_ADDRESS",
		"rpc_url":             "RPC_URL",
	}
	for key, env := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return err
		}
	}
	// No default, so IsSet tells an explicit 0 from "use the chain preset"
	return v.BindEnv("scanner.confirmations")
}

func (c *Config) applyDefaults(confirmationsSet bool) error {
	policy, err := airdrop.ParsePolicy(string(c.Drop.Policy))
	if err != nil {
		return err
	}
	c.Drop.Policy = policy
	if c.Drop.BlockInterval == 0 {
		c.Drop.BlockInterval = policy.DefaultInterval()
	}
	if c.Drop.MintTimeout <= 0 {
		c.Drop.MintTimeout = airdrop.DefaultMintTimeout
	}
	if c.Contract.MintMethod == "" {
		c.Contract.MintMethod = policy.MintMethod()
	}

	if c.Chain.Preset != "" {
		preset, ok := chain.Get(c.Chain.Preset)
		if !ok {
			return fmt.Errorf("unknown chain preset %q", c.Chain.Preset)
		}
		if c.Chain.ID == 0 {
			c.Chain.ID = preset.ChainID
		}
		if !confirmationsSet {
			c.Scanner.Confirmations = preset.Confirmations
		}
		if c.Scanner.Interval == 0 {
			c.Scanner.Interval = preset.BlockTime
		}
	}
	if c.Scanner.Interval == 0 {
		c.Scanner.Interval = 3 * time.Second
	}

	if c.Outputs.Postgres.Table == "" {
		c.Outputs.Postgres.Table = "airdrop_mints"
	}
	return nil
}

// Validate checks the settings every run needs
func (c *Config) Validate() error {
	if c.Signer.PrivateKey == "" {
		return ErrNoSigner
	}
	if len(c.RPC) == 0 {
		return ErrNoRPC
	}
	for i, n := range c.RPC {
		if n.URL == "" {
			return fmt.Errorf("rpc_nodes[%d]: url is empty", i)
		}
	}
	if c.Drop.BlockInterval == 0 {
		return airdrop.ErrZeroInterval
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// ChainKey namespaces persisted state: the preset name, or the numeric chain id.
func (c *Config) ChainKey() string {
	if c.Chain.Preset != "" {
		return c.Chain.Preset
	}
	if name, _, ok := chain.ByChainID(c.Chain.ID); ok {
		return name
	}
	return strconv.FormatUint(c.Chain.ID, 10)
}

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
