package nft

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestTransactor(t *testing.T, backend *MockBackend) *Transactor {
	t.Helper()
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)

	backend.On("ChainID", mock.Anything).Return(big.NewInt(31337), nil).Once()
	tr, err := NewTransactor(context.Background(), backend, key)
	assert.NoError(t, err)
	return tr
}

// rawSend sends data to `to` through a bare bound contract.
func rawSend(tr *Transactor, to common.Address, data []byte) func(*bind.TransactOpts) (*types.Transaction, error) {
	bc := tr.bound(to, abi.ABI{})
	return func(o *bind.TransactOpts) (*types.Transaction, error) {
		return bc.RawTransact(o, data)
	}
}

func expectLegacyChain(backend *MockBackend, to common.Address) {
	backend.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).Return(&types.Header{Number: big.NewInt(1)}, nil)
	backend.On("PendingCodeAt", mock.Anything, to).Return([]byte{0x60}, nil)
	backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(2_000_000_000), nil)
}

func TestParsePrivateKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))

	parsed, err := ParsePrivateKey("0x" + hexKey)
	assert.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(parsed.PublicKey))

	_, err = ParsePrivateKey("  ")
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = ParsePrivateKey("0xnothex")
	assert.Error(t, err)
}

func TestNewTransactor_ChainIDError(t *testing.T) {
	backend := new(MockBackend)
	backend.On("ChainID", mock.Anything).Return(nil, assert.AnError)
	key, _ := crypto.GenerateKey()

	_, err := NewTransactor(context.Background(), backend, key)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTransactor_Transact(t *testing.T) {
	backend := new(MockBackend)
	tr := newTestTransactor(t, backend)
	to := common.HexToAddress("0xC0FFEE0000000000000000000000000000000000")
	expectLegacyChain(backend, to)

	var sent []*types.Transaction
	backend.On("PendingNonceAt", mock.Anything, tr.From()).Return(uint64(5), nil).Once()
	backend.On("EstimateGas", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return msg.From == tr.From() && msg.To != nil && *msg.To == to
	})).Return(uint64(100_000), nil)
	backend.On("SendTransaction", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = append(sent, args.Get(1).(*types.Transaction))
	}).Return(nil)

	tx1, err := tr.Transact(context.Background(), rawSend(tr, to, []byte{0x01}))
	assert.NoError(t, err)
	tx2, err := tr.Transact(context.Background(), rawSend(tr, to, []byte{0x02}))
	assert.NoError(t, err)

	// Nonce read once, then tracked locally
	assert.Equal(t, uint64(5), tx1.Nonce())
	assert.Equal(t, uint64(6), tx2.Nonce())
	backend.AssertNumberOfCalls(t, "PendingNonceAt", 1)

	// Pre-London head: legacy tx with the estimated gas
	assert.Equal(t, uint8(types.LegacyTxType), tx1.Type())
	assert.Equal(t, uint64(100_000), tx1.Gas())

	// Signed by our key for our chain
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), sent[0])
	assert.NoError(t, err)
	assert.Equal(t, tr.From(), sender)
}

func TestTransactor_DynamicFee(t *testing.T) {
	backend := new(MockBackend)
	tr := newTestTransactor(t, backend)
	to := common.HexToAddress("0x01")

	backend.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).Return(&types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(10)}, nil)
	backend.On("SuggestGasTipCap", mock.Anything).Return(big.NewInt(3), nil)
	backend.On("PendingCodeAt", mock.Anything, to).Return([]byte{0x60}, nil)
	backend.On("PendingNonceAt", mock.Anything, tr.From()).Return(uint64(0), nil).Once()
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21_000), nil)
	backend.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)

	tx, err := tr.Transact(context.Background(), rawSend(tr, to, nil))
	assert.NoError(t, err)
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, int64(3), tx.GasTipCap().Int64())
	backend.AssertNotCalled(t, "SuggestGasPrice", mock.Anything)
}

func TestTransactor_SendFailureReloadsNonce(t *testing.T) {
	backend := new(MockBackend)
	tr := newTestTransactor(t, backend)
	to := common.HexToAddress("0x01")
	expectLegacyChain(backend, to)

	backend.On("PendingNonceAt", mock.Anything, tr.From()).Return(uint64(9), nil).Twice()
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21_000), nil)
	backend.On("SendTransaction", mock.Anything, mock.Anything).Return(assert.AnError).Once()
	backend.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := tr.Transact(context.Background(), rawSend(tr, to, nil))
	assert.ErrorIs(t, err, assert.AnError)

	tx, err := tr.Transact(context.Background(), rawSend(tr, to, nil))
	assert.NoError(t, err)
	assert.Equal(t, uint64(9), tx.Nonce())
	backend.AssertNumberOfCalls(t, "PendingNonceAt", 2)
}

func TestTransactor_EstimateFailureDoesNotSkipNonce(t *testing.T) {
	backend := new(MockBackend)
	tr := newTestTransactor(t, backend)
	to := common.HexToAddress("0x01")
	expectLegacyChain(backend, to)

	backend.On("PendingNonceAt", mock.Anything, tr.From()).Return(uint64(3), nil)
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(0), assert.AnError).Once()
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21_000), nil).Once()
	backend.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := tr.Transact(context.Background(), rawSend(tr, to, nil))
	assert.Error(t, err)

	tx, err := tr.Transact(context.Background(), rawSend(tr, to, nil))
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), tx.Nonce())
}

func TestTransactor_WaitMined(t *testing.T) {
	backend := new(MockBackend)
	tr := newTestTransactor(t, backend)
	hash := common.HexToHash("0xabc")

	backend.On("TransactionReceipt", mock.Anything, hash).Return(nil, ethereum.NotFound).Once()
	backend.On("TransactionReceipt", mock.Anything, hash).Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil).Once()

	receipt, err := tr.WaitMined(context.Background(), hash)
	assert.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}

func TestTransactor_WaitMinedTimeout(t *testing.T) {
	backend := new(MockBackend)
	tr := newTestTransactor(t, backend)
	hash := common.HexToHash("0xabc")

	backend.On("TransactionReceipt", mock.Anything, hash).Return(nil, ethereum.NotFound)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.WaitMined(ctx, hash)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
