package polymarket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/polymirror/internal/adapters/polymarket"
	"github.com/alejandrodnm/polymirror/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Clave de test, nunca usada en ningún lado.
const testPrivateKey = "0000000000000000000000000000000000000000000000000000000000000001"

func credsHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("POLY_ADDRESS"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		assert.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"apiKey":     "api-key-test",
			"secret":     "c2VjcmV0LXNlY3JldC1zZWNyZXQ=",
			"passphrase": "passphrase-test",
		})
	}
}

func newTestTrading(t *testing.T, orderHandler http.HandlerFunc) (*polymarket.TradingClient, *httptest.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/derive-api-key", credsHandler(t))
	if orderHandler != nil {
		mux.HandleFunc("/order", orderHandler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	auth, err := polymarket.NewAuthClient(srv.URL, testPrivateKey)
	require.NoError(t, err)
	return polymarket.NewTradingClient(auth), srv
}

type capturedOrder struct {
	Order struct {
		Side        string `json:"side"`
		TokenID     string `json:"tokenId"`
		MakerAmount string `json:"makerAmount"`
		TakerAmount string `json:"takerAmount"`
		Signature   string `json:"signature"`
	} `json:"order"`
	Owner     string `json:"owner"`
	OrderType string `json:"orderType"`
}

func TestTradingClient_BuyAmounts(t *testing.T) {
	var got capturedOrder
	tc, _ := newTestTrading(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.NotEmpty(t, r.Header.Get("POLY_API_KEY"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"orderID":      "0xorder1",
			"status":       "matched",
			"takingAmount": "8060000",
			"makingAmount": "4997200",
		})
	})

	intent := domain.OrderIntent{
		MarketID:  "0xcond",
		TokenID:   "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		Side:      domain.SideBuy,
		Amount:    5,
		Price:     0.62,
		OrderType: domain.OrderTypeFAK,
	}

	ctx := context.Background()
	order, err := tc.CreateOrder(ctx, intent)
	require.NoError(t, err)

	vr, err := tc.Submit(ctx, order)
	require.NoError(t, err)

	// 5 USDC a 0.62: 806 centésimas de share → maker 4.9972 USDC, taker 8.06 tokens
	assert.Equal(t, "BUY", got.Order.Side)
	assert.Equal(t, intent.TokenID, got.Order.TokenID)
	assert.Equal(t, "4997200", got.Order.MakerAmount)
	assert.Equal(t, "8060000", got.Order.TakerAmount)
	assert.NotEmpty(t, got.Order.Signature)
	assert.Equal(t, "api-key-test", got.Owner)
	assert.Equal(t, "FAK", got.OrderType)

	assert.True(t, vr.Success)
	assert.Equal(t, "0xorder1", vr.OrderID)
	assert.Equal(t, "MATCHED", vr.Status)
	assert.True(t, vr.HasTaking)
	assert.InDelta(t, 8.06, vr.TakingAmount, 0.0001)
	assert.True(t, vr.HasMaking)
	assert.InDelta(t, 4.9972, vr.MakingAmount, 0.0001)
}

func TestTradingClient_SellAmounts(t *testing.T) {
	var got capturedOrder
	tc, _ := newTestTrading(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"orderID":      "0xorder2",
			"status":       "matched",
			"makingAmount": "8060000",
		})
	})

	intent := domain.OrderIntent{
		MarketID:  "0xcond",
		TokenID:   "123",
		Side:      domain.SideSell,
		Amount:    8.06,
		Price:     0.62,
		OrderType: domain.OrderTypeFAK,
	}

	ctx := context.Background()
	order, err := tc.CreateOrder(ctx, intent)
	require.NoError(t, err)

	vr, err := tc.Submit(ctx, order)
	require.NoError(t, err)

	// SELL invierte maker/taker: maker 8.06 tokens, taker 4.9972 USDC
	assert.Equal(t, "SELL", got.Order.Side)
	assert.Equal(t, "8060000", got.Order.MakerAmount)
	assert.Equal(t, "4997200", got.Order.TakerAmount)

	assert.True(t, vr.Success)
	assert.True(t, vr.HasMaking)
	assert.InDelta(t, 8.06, vr.MakingAmount, 0.0001)
	assert.False(t, vr.HasTaking)
}

func TestTradingClient_SubmitRejected(t *testing.T) {
	tc, _ := newTestTrading(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success":  false,
			"errorMsg": "not enough balance / allowance",
		})
	})

	intent := domain.OrderIntent{
		TokenID:   "123",
		Side:      domain.SideBuy,
		Amount:    5,
		Price:     0.62,
		OrderType: domain.OrderTypeFAK,
	}

	ctx := context.Background()
	order, err := tc.CreateOrder(ctx, intent)
	require.NoError(t, err)

	// Rechazo del venue: respuesta in-band, no error
	vr, err := tc.Submit(ctx, order)
	require.NoError(t, err)
	assert.False(t, vr.Success)
	assert.Empty(t, vr.OrderID)
	assert.Equal(t, "not enough balance / allowance", vr.ErrorMsg)
}

func TestTradingClient_GetBalance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/derive-api-key", credsHandler(t))
	mux.HandleFunc("/balance-allowance", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "COLLATERAL", r.URL.Query().Get("asset_type"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"balance": "123450000"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	auth, err := polymarket.NewAuthClient(srv.URL, testPrivateKey)
	require.NoError(t, err)
	tc := polymarket.NewTradingClient(auth)

	bal, err := tc.GetBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 123.45, bal, 0.0001)
}

func TestTradingClient_Simulate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/derive-api-key", credsHandler(t))
	mux.HandleFunc("/time", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("1724572800"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	auth, err := polymarket.NewAuthClient(srv.URL, testPrivateKey)
	require.NoError(t, err)
	tc := polymarket.NewTradingClient(auth)

	intent := domain.OrderIntent{
		TokenID:   "123",
		Side:      domain.SideBuy,
		Amount:    5,
		Price:     0.62,
		OrderType: domain.OrderTypeFAK,
	}
	assert.NoError(t, tc.Simulate(context.Background(), intent))
}
