package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"apexcore/core"
	"apexcore/crypto"
	"apexcore/native/amm"
	"apexcore/native/lending"
	"apexcore/storage"
)

const octas = 100_000_000

type staticFeed struct{}

func (staticFeed) USDPrice(asset amm.Asset) (*big.Int, error) {
	if asset != amm.AssetAPT {
		return nil, lending.ErrPriceUnavailable
	}
	return big.NewInt(470_000_000), nil
}

func newTestServer(t *testing.T) (*Server, *core.Node) {
	t.Helper()
	node := core.NewNode(storage.NewMemDB(), staticFeed{}, core.DefaultConfig())
	node.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return NewServer(node), node
}

func testAddress(t *testing.T, suffix byte) string {
	t.Helper()
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.ApexPrefix, raw).String()
}

func rpcCall(t *testing.T, handler http.Handler, method string, params interface{}) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(encoded))
	handler.ServeHTTP(recorder, request)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return recorder, resp
}

func resultField(t *testing.T, resp RPCResponse, field string) string {
	t.Helper()
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "result is not an object: %+v", resp)
	value, ok := result[field]
	require.True(t, ok, "missing field %q in %+v", field, result)
	return fmt.Sprintf("%v", value)
}

func TestRPCSwapFlow(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()
	provider := testAddress(t, 0x01)

	_, resp := rpcCall(t, router, "dex_addLiquidity", map[string]string{
		"provider":   provider,
		"amountApt":  fmt.Sprintf("%d", 100*octas),
		"amountApex": fmt.Sprintf("%d", 1000*octas),
	})
	require.Nil(t, resp.Error)

	_, resp = rpcCall(t, router, "dex_quote", map[string]string{
		"assetIn":  "APT",
		"amountIn": fmt.Sprintf("%d", 10*octas),
	})
	require.Nil(t, resp.Error)
	quoted := resultField(t, resp, "amountOut")

	_, resp = rpcCall(t, router, "dex_swap", map[string]string{
		"assetIn":  "APT",
		"amountIn": fmt.Sprintf("%d", 10*octas),
	})
	require.Nil(t, resp.Error)
	require.Equal(t, quoted, resultField(t, resp, "amountOut"))

	_, resp = rpcCall(t, router, "dex_getReserves", map[string]string{})
	require.Nil(t, resp.Error)
	require.Equal(t, fmt.Sprintf("%d", 110*octas), resultField(t, resp, "reserveApt"))
}

func TestRPCSlippageConflict(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()
	provider := testAddress(t, 0x02)

	_, resp := rpcCall(t, router, "dex_addLiquidity", map[string]string{
		"provider":   provider,
		"amountApt":  fmt.Sprintf("%d", 100*octas),
		"amountApex": fmt.Sprintf("%d", 1000*octas),
	})
	require.Nil(t, resp.Error)

	recorder, resp := rpcCall(t, router, "dex_swap", map[string]string{
		"assetIn":      "APT",
		"amountIn":     fmt.Sprintf("%d", 10*octas),
		"minAmountOut": fmt.Sprintf("%d", 1000*octas),
	})
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeStateConflict, resp.Error.Code)
}

func TestRPCLendingFlow(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()
	provider := testAddress(t, 0x03)
	borrower := testAddress(t, 0x04)

	_, resp := rpcCall(t, router, "dex_addLiquidity", map[string]string{
		"provider":   provider,
		"amountApt":  fmt.Sprintf("%d", 100*octas),
		"amountApex": fmt.Sprintf("%d", 1000*octas),
	})
	require.Nil(t, resp.Error)

	_, resp = rpcCall(t, router, "lend_depositCollateral", map[string]string{
		"address": borrower,
		"amount":  fmt.Sprintf("%d", 10*octas),
	})
	require.Nil(t, resp.Error)

	_, resp = rpcCall(t, router, "lend_borrow", map[string]string{
		"address": borrower,
		"amount":  fmt.Sprintf("%d", 50*octas),
	})
	require.Nil(t, resp.Error)
	// 0.1% borrow fee comes out of the disbursement.
	require.Equal(t, fmt.Sprintf("%d", 50*octas-50*octas/1000), resultField(t, resp, "disbursed"))

	_, resp = rpcCall(t, router, "lend_getPosition", map[string]string{"address": borrower})
	require.Nil(t, resp.Error)
	require.Equal(t, fmt.Sprintf("%d", 50*octas), resultField(t, resp, "principalDebt"))

	_, resp = rpcCall(t, router, "lend_collateralRatio", map[string]string{"address": borrower})
	require.Nil(t, resp.Error)

	_, resp = rpcCall(t, router, "lend_repay", map[string]string{
		"address": borrower,
		"amount":  fmt.Sprintf("%d", 50*octas),
	})
	require.Nil(t, resp.Error)
	require.Equal(t, fmt.Sprintf("%d", 50*octas), resultField(t, resp, "applied"))

	_, resp = rpcCall(t, router, "lend_getTotals", map[string]string{})
	require.Nil(t, resp.Error)
	require.Equal(t, "0", resultField(t, resp, "totalDebt"))
}

func TestRPCOraclePrice(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()
	provider := testAddress(t, 0x05)

	_, resp := rpcCall(t, router, "dex_addLiquidity", map[string]string{
		"provider":   provider,
		"amountApt":  fmt.Sprintf("%d", 100*octas),
		"amountApex": fmt.Sprintf("%d", 1000*octas),
	})
	require.Nil(t, resp.Error)

	_, resp = rpcCall(t, router, "oracle_price", map[string]string{"asset": "APEX"})
	require.Nil(t, resp.Error)
	require.Equal(t, "47000000", resultField(t, resp, "price"))
}

func TestRPCPositionNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	recorder, resp := rpcCall(t, router, "lend_getPosition", map[string]string{
		"address": testAddress(t, 0x06),
	})
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeNotFound, resp.Error.Code)
}

func TestRPCRejectsForeignAddress(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	recorder, resp := rpcCall(t, router, "lend_depositCollateral", map[string]string{
		"address": "cosmos1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq68d2cp",
		"amount":  "100",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestRPCMethodNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	recorder, resp := rpcCall(t, router, "dex_unknown", map[string]string{})
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRPCInvalidJSON(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader([]byte("{not json")))
	router.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeParseError, resp.Error.Code)
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	router := server.Router()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}
