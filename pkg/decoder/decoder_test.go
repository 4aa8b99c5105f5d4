package decoder

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

const erc721TransferABI = `[{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":true,"name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"}]`

var transferSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

func transferLog(contract, to common.Address, tokenID int64) *types.Log {
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			transferSig,
			common.Hash{}, // mint: from the zero address
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

func TestDecode(t *testing.T) {
	d, err := NewFromJSON(erc721TransferABI)
	assert.NoError(t, err)

	contract := common.HexToAddress("0xC0FFEE0000000000000000000000000000000000")
	receiver := common.HexToAddress("0x2222222222222222222222222222222222222222")

	decoded, err := d.Decode(*transferLog(contract, receiver, 42))
	assert.NoError(t, err)
	assert.Equal(t, "Transfer", decoded.Name)
	assert.Equal(t, contract, decoded.Address)
	assert.Equal(t, common.Address{}, decoded.Inputs["from"])
	assert.Equal(t, receiver, decoded.Inputs["to"])
	assert.Equal(t, big.NewInt(42), decoded.Inputs["tokenId"])
}

func TestFindEvents(t *testing.T) {
	d, err := NewFromJSON(erc721TransferABI)
	assert.NoError(t, err)

	contract := common.HexToAddress("0xC0FFEE0000000000000000000000000000000000")
	other := common.HexToAddress("0xBEEF000000000000000000000000000000000000")
	receiver := common.HexToAddress("0x2222222222222222222222222222222222222222")

	logs := []*types.Log{
		transferLog(other, receiver, 1), // different contract
		{Address: contract, Topics: []common.Hash{crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))}},
		transferLog(contract, receiver, 7),
		nil,
	}

	found := d.FindEvents(logs, contract, "Transfer")
	assert.Len(t, found, 1)
	assert.Equal(t, big.NewInt(7), found[0].Inputs["tokenId"])

	assert.Nil(t, d.FindEvents(logs, contract, "Unknown"))
}

func TestNewFromJSON_Fail(t *testing.T) {
	_, err := NewFromJSON("invalid json")
	assert.Error(t, err)
}

func TestDecode_ErrorCases(t *testing.T) {
	d, _ := NewFromJSON(erc721TransferABI)

	// Case 1: No topics
	_, err := d.Decode(types.Log{Topics: []common.Hash{}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no topics")

	// Case 2: Unknown Event Signature
	unknownSig := crypto.Keccak256Hash([]byte("Unknown()"))
	_, err = d.Decode(types.Log{Topics: []common.Hash{unknownSig}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "signature not found")

	// Case 3: ERC-20 shaped Transfer (only two indexed topics)
	_, err = d.Decode(types.Log{Topics: []common.Hash{transferSig, {}, {}}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "topic count mismatch")
}
