package polymarket

import (
	"encoding/json"
	"math/big"
	"time"
)

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en trading.go y feed.go.

// --- CLOB API ---

// clobOrderRequest es el body del POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

// clobOrderBody es la orden firmada EIP-712 en formato wire.
type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

// clobOrderResponse es la respuesta del POST /order. TakingAmount y
// MakingAmount son strings en micro-unidades y pueden venir vacíos.
type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

// clobBalanceResponse es la respuesta de GET /balance-allowance.
type clobBalanceResponse struct {
	Balance string `json:"balance"`
}

// clobTimeResponse es la respuesta de GET /time (server timestamp).
type clobTimeResponse json.Number

// --- Activity feed (websocket) ---

// activityMessage es un mensaje del canal activity/trades del RTDS.
type activityMessage struct {
	Topic   string           `json:"topic"`
	Type    string           `json:"type"`
	Payload *activityPayload `json:"payload"`
}

// activityPayload es un trade del wallet observado. Los campos numéricos
// llegan como números JSON; timestamp en segundos o milisegundos Unix.
type activityPayload struct {
	Asset           string  `json:"asset"`
	ConditionID     string  `json:"conditionId"`
	EventSlug       string  `json:"eventSlug"`
	Outcome         string  `json:"outcome"`
	Price           float64 `json:"price"`
	Side            string  `json:"side"`
	Size            float64 `json:"size"`
	Timestamp       int64   `json:"timestamp"`
	TransactionHash string  `json:"transactionHash"`
	ProxyWallet     string  `json:"proxyWallet"`
}

// --- Helpers ---

// parseUSDC convierte un string en micro-unidades (ej. "1000000") a float.
// String vacío devuelve 0.
func parseUSDC(s string) float64 {
	if s == "" {
		return 0
	}
	n := new(big.Int)
	n.SetString(s, 10)
	f, _ := new(big.Float).SetInt(n).Float64()
	return f / 1_000_000
}

// parseUnixTimestamp acepta segundos o milisegundos.
func parseUnixTimestamp(ts int64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	if ts > 1e12 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
