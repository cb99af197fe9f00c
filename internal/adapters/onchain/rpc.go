package onchain

// rpc.go — Polygon RPC client core for the mirror bot.
//
// Holds the ethclient connection, the signing key and the shared tx plumbing
// (gas price cache, estimate-sign-send-wait). Approval and redemption flows
// build on this.

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	polygonChainID = int64(137)

	// USDC.e collateral on Polygon
	usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	// CTF contract — holds conditional tokens (ERC1155)
	ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// Exchange contracts that need ERC1155 setApprovalForAll
	normalExchange  = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	negRiskExchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	negRiskAdapter  = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"

	// Gas limits (conservative upper bounds)
	redeemGasLimit   = uint64(300_000)
	approvalGasLimit = uint64(80_000)

	// Gas price update interval
	gasPriceUpdateInterval = 5 * time.Minute

	// Per-candidate timeout when probing RPC endpoints
	dialProbeTimeout = 7 * time.Second
)

// Contract ABIs
var (
	ctfABI     abi.ABI
	erc1155ABI abi.ABI
	erc20ABI   abi.ABI
)

func init() {
	var err error

	ctfABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "redeemPositions",
			"type": "function",
			"inputs": [
				{"name": "collateralToken", "type": "address"},
				{"name": "parentCollectionId", "type": "bytes32"},
				{"name": "conditionId", "type": "bytes32"},
				{"name": "indexSets", "type": "uint256[]"}
			],
			"outputs": []
		},
		{
			"name": "payoutDenominator",
			"type": "function",
			"inputs": [{"name": "", "type": "bytes32"}],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("ctf abi parse: " + err.Error())
	}

	erc1155ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "setApprovalForAll",
			"type": "function",
			"inputs": [
				{"name": "operator", "type": "address"},
				{"name": "approved", "type": "bool"}
			],
			"outputs": []
		},
		{
			"name": "isApprovedForAll",
			"type": "function",
			"inputs": [
				{"name": "account", "type": "address"},
				{"name": "operator", "type": "address"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`))
	if err != nil {
		panic("erc1155 abi parse: " + err.Error())
	}

	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "balanceOf",
			"type": "function",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}

// ChainClient holds the RPC connection and signing key. It implements
// ports.Approvals and ports.Redeemer.
type ChainClient struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	rpcURL     string

	mu           sync.RWMutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
}

// DialFirst probes the endpoints in order and returns a ChainClient on the
// first one that answers a ChainID call within the probe timeout.
// privateKeyHex is without 0x prefix.
func DialFirst(ctx context.Context, endpoints []string, privateKeyHex string) (*ChainClient, error) {
	privKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("onchain: invalid private key: %w", err)
	}
	addr := crypto.PubkeyToAddress(privKey.PublicKey)

	var lastErr error
	for _, url := range endpoints {
		probeCtx, cancel := context.WithTimeout(ctx, dialProbeTimeout)
		client, err := ethclient.DialContext(probeCtx, url)
		if err == nil {
			_, err = client.ChainID(probeCtx)
		}
		cancel()

		if err != nil {
			slog.Warn("onchain: rpc endpoint failed, trying next", "url", url, "err", err)
			if client != nil {
				client.Close()
			}
			lastErr = err
			continue
		}

		slog.Info("onchain: connected", "url", url, "address", addr.Hex())
		return &ChainClient{
			client:     client,
			privateKey: privKey,
			address:    addr,
			rpcURL:     url,
		}, nil
	}
	return nil, fmt.Errorf("onchain: all rpc endpoints failed: %w", lastErr)
}

// Close releases the RPC connection.
func (cc *ChainClient) Close() {
	cc.client.Close()
}

// Address returns the wallet address.
func (cc *ChainClient) Address() string {
	return cc.address.Hex()
}

// USDCBalance returns the on-chain USDC.e balance of the wallet, in USDC.
func (cc *ChainClient) USDCBalance(ctx context.Context) (float64, error) {
	callData, err := erc20ABI.Pack("balanceOf", cc.address)
	if err != nil {
		return 0, fmt.Errorf("onchain: pack balanceOf: %w", err)
	}

	token := common.HexToAddress(usdcEAddress)
	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("onchain: balanceOf call: %w", err)
	}

	vals, err := erc20ABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("onchain: unpack balanceOf: %w", err)
	}

	raw := vals[0].(*big.Int)
	bal, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), new(big.Float).SetFloat64(1e6)).Float64()
	return bal, nil
}

// sendAndWait estimates gas, signs and sends a transaction to the given
// contract, then polls for its receipt. fallbackGas bounds the tx when the
// node refuses to estimate.
func (cc *ChainClient) sendAndWait(ctx context.Context, to common.Address, callData []byte, fallbackGas uint64) (*types.Receipt, string, error) {
	nonce, err := cc.client.PendingNonceAt(ctx, cc.address)
	if err != nil {
		return nil, "", fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := cc.getGasPrice(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("gas price: %w", err)
	}

	gasEstimate, err := cc.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     cc.address,
		To:       &to,
		GasPrice: gasPrice,
		Data:     callData,
	})
	if err != nil {
		gasEstimate = fallbackGas
		slog.Warn("onchain: gas estimate failed, using default", "err", err, "limit", fallbackGas)
	}
	// Add 20% buffer
	gasEstimate = gasEstimate * 12 / 10

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasEstimate, gasPrice, callData)

	chainID := big.NewInt(polygonChainID)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), cc.privateKey)
	if err != nil {
		return nil, "", fmt.Errorf("sign tx: %w", err)
	}

	if err := cc.client.SendTransaction(ctx, signed); err != nil {
		return nil, "", fmt.Errorf("send tx: %w", err)
	}
	txHash := signed.Hash()

	receiptCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	receipt, err := cc.waitForReceipt(receiptCtx, txHash)
	if err != nil {
		return nil, txHash.Hex(), fmt.Errorf("wait receipt: %w", err)
	}
	return receipt, txHash.Hex(), nil
}

// getGasPrice returns the current gas price, with caching to avoid excessive
// RPC calls.
func (cc *ChainClient) getGasPrice(ctx context.Context) (*big.Int, error) {
	cc.mu.RLock()
	cached := cc.cachedGasWei
	updatedAt := cc.gasUpdatedAt
	cc.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached, nil
	}

	price, err := cc.client.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return big.NewInt(30_000_000_000), nil // 30 gwei fallback
	}

	// Add 10% buffer for faster inclusion (copy to avoid mutating SuggestGasPrice return)
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))
	price = buffered

	cc.mu.Lock()
	cc.cachedGasWei = price
	cc.gasUpdatedAt = time.Now()
	cc.mu.Unlock()

	return price, nil
}

// waitForReceipt polls for a transaction receipt until confirmed or timeout.
func (cc *ChainClient) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := cc.client.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}

// hexToBytes32 converts a 0x-prefixed hex string to [32]byte.
func hexToBytes32(s string) ([32]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return [32]byte{}, fmt.Errorf("expected 64 hex chars, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return [32]byte{}, err
	}
	var arr [32]byte
	copy(arr[:], b)
	return arr, nil
}
