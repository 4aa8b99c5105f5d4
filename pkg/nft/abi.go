package nft

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// DefaultABI covers the two mint shapes the bot supports plus the ERC-721 Transfer event:
//   - mint(address to)                    token id assigned by the contract
//   - safeMint(address to, uint256 id)    token id chosen by the caller
const DefaultABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"}]},
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"}],"outputs":[]},
	{"type":"function","name":"safeMint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}]}
]`

// LoadABI parses the ABI at path, or DefaultABI when path is empty.
// Both a bare ABI array and a compiler artifact with an "abi" field are accepted.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return abi.JSON(strings.NewReader(DefaultABI))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi: %w", err)
	}
	body := extractArtifactField(raw, "abi")
	parsed, err := abi.JSON(strings.NewReader(body))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi %s: %w", path, err)
	}
	return parsed, nil
}

// LoadBytecode reads hex creation bytecode from path (optionally 0x-prefixed, or a compiler
// artifact with a "bytecode" field).
func LoadBytecode(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("no bytecode path configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bytecode: %w", err)
	}
	return DecodeBytecode(extractArtifactField(raw, "bytecode"))
}

// DecodeBytecode decodes a hex string of creation bytecode.
func DecodeBytecode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, fmt.Errorf("empty bytecode")
	}
	code, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return code, nil
}
