package polymarket

// trading.go — Order execution via Polymarket CLOB API.
//
// Implements ports.OrderExecutor using AuthClient for L1/L2 auth.
// Mirrored orders are marketable limit orders submitted as FAK or FOK.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/polymirror/internal/domain"
)

// simulateTimeout acota el dry run de conectividad; nunca bloquea el pipeline
// más que esto.
const simulateTimeout = 7 * time.Second

// TradingClient implements ports.OrderExecutor.
type TradingClient struct {
	auth *AuthClient
}

// NewTradingClient creates a TradingClient over an authenticated CLOB client.
func NewTradingClient(auth *AuthClient) *TradingClient {
	return &TradingClient{auth: auth}
}

// Address returns the trading wallet address.
func (tc *TradingClient) Address() string {
	return tc.auth.Address()
}

// CreateOrder signs the intent and wraps it in the wire body POST /order
// expects. The payload is opaque to callers; Submit unwraps it.
func (tc *TradingClient) CreateOrder(ctx context.Context, intent domain.OrderIntent) (domain.SignedOrder, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return domain.SignedOrder{}, fmt.Errorf("trading: creds: %w", err)
	}

	signed, err := tc.auth.buildSignedOrder(intent)
	if err != nil {
		return domain.SignedOrder{}, fmt.Errorf("trading: sign: %w", err)
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       intent.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          string(intent.Side),
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     tc.auth.creds.APIKey,
		OrderType: string(intent.OrderType),
	}

	return domain.SignedOrder{Intent: intent, Payload: body}, nil
}

// Submit posts a signed order. A venue rejection (HTTP 200 with success=false
// or a 4xx carrying errorMsg) comes back inside the response; errors are
// reserved for transport and auth failures.
func (tc *TradingClient) Submit(ctx context.Context, order domain.SignedOrder) (domain.VenueResponse, error) {
	body, ok := order.Payload.(clobOrderRequest)
	if !ok {
		return domain.VenueResponse{}, fmt.Errorf("trading: unexpected payload type %T", order.Payload)
	}

	status, respBody, err := tc.auth.doL2Raw(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.VenueResponse{}, fmt.Errorf("trading: post order: %w", err)
	}

	var resp clobOrderResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.VenueResponse{}, fmt.Errorf("trading: decode order response %d: %s", status, respBody)
	}
	if status >= 400 && resp.ErrorMsg == "" {
		// 4xx sin errorMsg no es un rechazo del matching engine (auth,
		// Cloudflare, etc.), eso sí es un error.
		return domain.VenueResponse{}, fmt.Errorf("trading: post order status %d: %s", status, respBody)
	}

	vr := domain.VenueResponse{
		Success:  resp.Success,
		OrderID:  resp.OrderID,
		Status:   strings.ToUpper(resp.Status),
		ErrorMsg: resp.ErrorMsg,
	}
	if resp.MakingAmount != "" {
		vr.MakingAmount = parseUSDC(resp.MakingAmount)
		vr.HasMaking = true
	}
	if resp.TakingAmount != "" {
		vr.TakingAmount = parseUSDC(resp.TakingAmount)
		vr.HasTaking = true
	}
	return vr, nil
}

// GetBalance returns the collateral available on the venue, net of open-order
// reservations. This is the number the CLOB itself will enforce, so it is the
// one order sizing must respect.
func (tc *TradingClient) GetBalance(ctx context.Context) (float64, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return 0, fmt.Errorf("trading: creds: %w", err)
	}

	var resp clobBalanceResponse
	path := "/balance-allowance?asset_type=COLLATERAL"
	if err := tc.auth.doL2(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, fmt.Errorf("trading: balance-allowance: %w", err)
	}
	return parseUSDC(resp.Balance), nil
}

// UpdateBalanceAllowance refreshes the CLOB's cached view of the wallet's
// balance and allowances. Called after on-chain approvals change.
func (tc *TradingClient) UpdateBalanceAllowance(ctx context.Context) error {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("trading: creds: %w", err)
	}

	path := "/balance-allowance/update?asset_type=COLLATERAL"
	if err := tc.auth.doL2(ctx, http.MethodGet, path, nil, nil); err != nil {
		return fmt.Errorf("trading: balance-allowance update: %w", err)
	}
	return nil
}

// Simulate is the one-time dry run: derive credentials, sign the intent and
// ping the venue. Proves signing and connectivity without placing anything.
func (tc *TradingClient) Simulate(ctx context.Context, intent domain.OrderIntent) error {
	ctx, cancel := context.WithTimeout(ctx, simulateTimeout)
	defer cancel()

	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("trading: simulate creds: %w", err)
	}
	if _, err := tc.auth.buildSignedOrder(intent); err != nil {
		return fmt.Errorf("trading: simulate sign: %w", err)
	}

	var serverTime clobTimeResponse
	url := tc.auth.clobBase + "/time"
	if err := tc.auth.get(ctx, tc.auth.clobLimiter, url, &serverTime); err != nil {
		return fmt.Errorf("trading: simulate ping: %w", err)
	}
	return nil
}
