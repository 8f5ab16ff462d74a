package adapter

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/elastos/go-did-sdk/did"
	"github.com/elastos/go-did-sdk/internal/config"
)

// didContractABI is the publication surface of the DID registry
// contract on the EID chain.
const didContractABI = `[{"inputs":[{"internalType":"string","name":"data","type":"string"}],"name":"publishDidTransaction","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// Web3Adapter publishes ID transactions through the DID registry
// contract, paying gas with an ordinary EVM wallet key. The wallet key
// is unrelated to any DID key; it only funds publication.
type Web3Adapter struct {
	client    *ethclient.Client
	contract  common.Address
	abi       abi.ABI
	walletKey *ecdsa.PrivateKey
	chainID   *big.Int
}

// NewWeb3Adapter connects to an EID node. Empty endpoint, contract, or
// zero chainID select the configured values. walletKeyHex is the hex
// form of the funding wallet's private key.
func NewWeb3Adapter(endpoint, contract, walletKeyHex string, chainID int64) (*Web3Adapter, error) {
	cfg := config.Load()
	if endpoint == "" {
		endpoint = cfg.ResolverURL
	}
	if contract == "" {
		contract = cfg.ContractAddress
	}
	if chainID == 0 {
		chainID = cfg.ChainID
	}
	if !common.IsHexAddress(contract) {
		return nil, newError(did.CodeIllegalArgument, "invalid contract address %q", contract)
	}
	walletKey, err := ethcrypto.HexToECDSA(strings.TrimPrefix(walletKeyHex, "0x"))
	if err != nil {
		return nil, wrapError(did.CodeIllegalArgument, err, "invalid wallet key")
	}
	parsed, err := abi.JSON(strings.NewReader(didContractABI))
	if err != nil {
		return nil, wrapError(did.CodeUnknown, err, "parse contract ABI")
	}
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, wrapError(did.CodeTransaction, err, "connect %s", endpoint)
	}
	return &Web3Adapter{
		client:    client,
		contract:  common.HexToAddress(contract),
		abi:       parsed,
		walletKey: walletKey,
		chainID:   big.NewInt(chainID),
	}, nil
}

// Close releases the node connection.
func (a *Web3Adapter) Close() {
	a.client.Close()
}

// CreateIDTransaction implements idchain.Adapter. The request JSON is
// passed to the contract's publishDidTransaction entry point; memo is
// not recorded on this chain. Submission is not retried, a resend with
// the same nonce would race its predecessor.
func (a *Web3Adapter) CreateIDTransaction(ctx context.Context, payload, memo string) (string, error) {
	_ = memo

	input, err := a.abi.Pack("publishDidTransaction", payload)
	if err != nil {
		return "", wrapError(did.CodeTransaction, err, "pack payload")
	}
	from := ethcrypto.PubkeyToAddress(a.walletKey.PublicKey)
	nonce, err := a.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", wrapError(did.CodeTransaction, err, "nonce for %s", from)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", wrapError(did.CodeTransaction, err, "gas price")
	}
	gasLimit, err := a.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &a.contract,
		Data: input,
	})
	if err != nil {
		return "", wrapError(did.CodeTransaction, err, "estimate gas")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &a.contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), a.walletKey)
	if err != nil {
		return "", wrapError(did.CodeTransaction, err, "sign transaction")
	}
	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return "", wrapError(did.CodeTransaction, err, "send transaction")
	}
	return signed.Hash().Hex(), nil
}
