package onchain

// approvals.go — Exchange contract approvals.
//
// The CLOB settles trades on-chain, so the exchange contracts need:
//   - ERC1155 setApprovalForAll on the CTF (token transfers on SELL/settle)
//   - ERC20 USDC.e approve (collateral pulls on BUY)
// Both checks are idempotent; EnsureApproved is safe to call after every BUY.

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EnsureApproved checks and sets the ERC1155 operator approvals and the
// USDC.e allowances the exchange contracts require. Already-set approvals
// are skipped without sending anything.
func (cc *ChainClient) EnsureApproved(ctx context.Context) error {
	operators := []string{normalExchange, negRiskExchange, negRiskAdapter}

	for _, op := range operators {
		approved, err := cc.isApprovedForAll(ctx, common.HexToAddress(op))
		if err != nil {
			return fmt.Errorf("onchain: check ERC1155 approval for %s: %w", op, err)
		}
		if approved {
			slog.Debug("onchain: ERC1155 approval already set", "operator", op)
			continue
		}

		slog.Info("onchain: setting ERC1155 approval", "operator", op)
		if err := cc.setApprovalForAll(ctx, common.HexToAddress(op)); err != nil {
			return fmt.Errorf("onchain: set ERC1155 approval for %s: %w", op, err)
		}
		slog.Info("onchain: ERC1155 approval set", "operator", op)
	}

	exchanges := []string{normalExchange, negRiskExchange}
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	minAllowance := new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000)) // 1M USDC.e

	for _, ex := range exchanges {
		allowance, err := cc.erc20Allowance(ctx, common.HexToAddress(usdcEAddress), common.HexToAddress(ex))
		if err != nil {
			return fmt.Errorf("onchain: check USDC.e allowance for %s: %w", ex, err)
		}
		if allowance.Cmp(minAllowance) >= 0 {
			slog.Debug("onchain: USDC.e allowance sufficient", "exchange", ex)
			continue
		}

		slog.Info("onchain: setting USDC.e approval", "exchange", ex)
		if err := cc.erc20Approve(ctx, common.HexToAddress(usdcEAddress), common.HexToAddress(ex), maxUint256); err != nil {
			return fmt.Errorf("onchain: set USDC.e approval for %s: %w", ex, err)
		}
		slog.Info("onchain: USDC.e approval set", "exchange", ex)
	}

	return nil
}

// isApprovedForAll checks ERC1155 approval for an operator on the CTF contract.
func (cc *ChainClient) isApprovedForAll(ctx context.Context, operator common.Address) (bool, error) {
	callData, err := erc1155ABI.Pack("isApprovedForAll", cc.address, operator)
	if err != nil {
		return false, err
	}

	ctfAddr := common.HexToAddress(ctfAddress)
	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &ctfAddr,
		Data: callData,
	}, nil)
	if err != nil {
		return false, err
	}

	vals, err := erc1155ABI.Unpack("isApprovedForAll", result)
	if err != nil || len(vals) == 0 {
		return false, err
	}
	return vals[0].(bool), nil
}

// setApprovalForAll sends a setApprovalForAll transaction on the CTF contract.
func (cc *ChainClient) setApprovalForAll(ctx context.Context, operator common.Address) error {
	callData, err := erc1155ABI.Pack("setApprovalForAll", operator, true)
	if err != nil {
		return err
	}

	receipt, _, err := cc.sendAndWait(ctx, common.HexToAddress(ctfAddress), callData, approvalGasLimit)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("setApprovalForAll tx reverted")
	}
	return nil
}

// erc20Allowance queries the current ERC20 allowance.
func (cc *ChainClient) erc20Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	callData, err := erc20ABI.Pack("allowance", cc.address, spender)
	if err != nil {
		return nil, err
	}

	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, err
	}

	vals, err := erc20ABI.Unpack("allowance", result)
	if err != nil || len(vals) == 0 {
		return big.NewInt(0), err
	}
	return vals[0].(*big.Int), nil
}

// erc20Approve sends an ERC20 approve transaction.
func (cc *ChainClient) erc20Approve(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	callData, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return err
	}

	receipt, _, err := cc.sendAndWait(ctx, token, callData, approvalGasLimit)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("ERC20 approve tx reverted")
	}
	return nil
}
