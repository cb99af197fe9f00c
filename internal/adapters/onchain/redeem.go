package onchain

// redeem.go — On-chain CTF redemption for resolved markets.
//
// redeemPositions() converts the wallet's winning outcome tokens back into
// USDC.e collateral. A market is redeemable once the oracle has reported:
// payoutDenominator(conditionId) != 0.

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

// ListResolved filters keys down to those whose market has resolved on-chain.
// A failed check skips the key with a warning; it will be seen again next
// sweep.
func (cc *ChainClient) ListResolved(ctx context.Context, keys []domain.HoldingKey) ([]domain.HoldingKey, error) {
	// Varias keys pueden compartir mercado; una sola llamada por condición.
	byMarket := make(map[string]bool)

	var resolved []domain.HoldingKey
	for _, key := range keys {
		if done, seen := byMarket[key.MarketID]; seen {
			if done {
				resolved = append(resolved, key)
			}
			continue
		}

		isResolved, err := cc.marketResolved(ctx, key.MarketID)
		if err != nil {
			slog.Warn("onchain: resolution check failed", "market", shortID(key.MarketID), "err", err)
			byMarket[key.MarketID] = false
			continue
		}
		byMarket[key.MarketID] = isResolved
		if isResolved {
			resolved = append(resolved, key)
		}
	}
	return resolved, nil
}

// marketResolved queries the CTF payout denominator for a condition.
func (cc *ChainClient) marketResolved(ctx context.Context, conditionID string) (bool, error) {
	condBytes, err := hexToBytes32(conditionID)
	if err != nil {
		return false, fmt.Errorf("invalid conditionID: %w", err)
	}

	callData, err := ctfABI.Pack("payoutDenominator", condBytes)
	if err != nil {
		return false, fmt.Errorf("pack payoutDenominator: %w", err)
	}

	ctfAddr := common.HexToAddress(ctfAddress)
	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &ctfAddr,
		Data: callData,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("payoutDenominator call: %w", err)
	}

	vals, err := ctfABI.Unpack("payoutDenominator", result)
	if err != nil || len(vals) == 0 {
		return false, fmt.Errorf("unpack payoutDenominator: %w", err)
	}
	return vals[0].(*big.Int).Sign() != 0, nil
}

// Redeem redeems one resolved position. qty is informational for the audit
// row: redeemPositions always claims the wallet's full balance for the
// condition's index sets. A failure is reported per-entry and never aborts
// the caller's sweep; the entry stays in the ledger for the next one.
func (cc *ChainClient) Redeem(ctx context.Context, key domain.HoldingKey, qty float64) (domain.RedeemResult, error) {
	result := domain.RedeemResult{
		Key:        key,
		Quantity:   qty,
		ExecutedAt: time.Now().UTC(),
	}

	condBytes, err := hexToBytes32(key.MarketID)
	if err != nil {
		result.Error = fmt.Sprintf("invalid conditionID: %v", err)
		return result, fmt.Errorf("onchain: redeem: %s", result.Error)
	}

	indexSets := []*big.Int{big.NewInt(1), big.NewInt(2)}
	callData, err := ctfABI.Pack("redeemPositions",
		common.HexToAddress(usdcEAddress),
		[32]byte{},
		condBytes,
		indexSets,
	)
	if err != nil {
		result.Error = fmt.Sprintf("pack calldata: %v", err)
		return result, fmt.Errorf("onchain: redeem pack: %w", err)
	}

	receipt, txHash, err := cc.sendAndWait(ctx, common.HexToAddress(ctfAddress), callData, redeemGasLimit)
	result.TxHash = txHash
	if err != nil {
		// Incluye el caso "tx enviada pero sin receipt": la entrada queda en
		// el ledger y el próximo sweep reintenta; redimir dos veces no
		// revierte, solo transfiere cero.
		result.Error = err.Error()
		return result, fmt.Errorf("onchain: redeem %s: %w", shortID(key.MarketID), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		result.Error = "transaction reverted on-chain"
		return result, fmt.Errorf("onchain: redeem tx reverted: %s", txHash)
	}

	result.Success = true
	slog.Info("onchain: redemption confirmed",
		"market", shortID(key.MarketID),
		"qty", qty,
		"tx", txHash,
		"gas_used", receipt.GasUsed,
	)
	return result, nil
}

func shortID(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12] + "..."
}
