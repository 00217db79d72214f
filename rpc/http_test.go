package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"mintvault/crypto"
	"mintvault/native/auction"
	"mintvault/native/position"
	"mintvault/native/rewards"
	"mintvault/state"
	"mintvault/storage"
)

type testVenue struct {
	server    *httptest.Server
	ledger    *state.Ledger
	positions *position.Engine
	auctions  *auction.Engine
	now       *int64
}

func testAddr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.NewAddress(crypto.MVPrefix, raw)
}

func newTestVenue(t *testing.T, secret string) *testVenue {
	t.Helper()
	ledger := state.NewLedger(storage.NewMemDB())

	treasury := crypto.ModuleAddress("reward-treasury")
	fund(t, ledger, treasury, 0, 0, 1_000_000)
	hook := rewards.NewHook(treasury, ledger, nil)

	now := int64(1_000_000)
	auctions := auction.NewEngine(crypto.ModuleAddress("auction-vault"), crypto.ModuleAddress("auction-proceeds"))
	auctions.SetState(ledger)
	auctions.SetRewards(hook)
	auctions.SetNowFunc(func() int64 { return now })

	positions := position.NewEngine(crypto.ModuleAddress("collateral-vault"), position.RiskParameters{
		CollateralRatioPercent: 150,
		InterestRatePercent:    5,
		BlocksPerYear:          100,
	})
	positions.SetState(ledger)
	positions.SetAuctioneer(auctions)
	positions.SetRewards(hook)

	server := NewServer(positions, auctions, nil, NewAuthorizer(secret))
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &testVenue{server: ts, ledger: ledger, positions: positions, auctions: auctions, now: &now}
}

func fund(t *testing.T, ledger *state.Ledger, addr crypto.Address, vlt, usdm, gmv int64) {
	t.Helper()
	account, err := ledger.GetAccount(addr)
	require.NoError(t, err)
	account = account.EnsureBalances()
	account.BalanceVLT.SetInt64(vlt)
	account.BalanceUSDM.SetInt64(usdm)
	account.BalanceGMV.SetInt64(gmv)
	require.NoError(t, ledger.PutAccount(addr, account))
}

func (v *testVenue) call(t *testing.T, token, method string, params ...interface{}) (*http.Response, RPCResponse) {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		rawParams = append(rawParams, raw)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  rawParams,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, v.server.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := v.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func resultInto(t *testing.T, decoded RPCResponse, out interface{}) {
	t.Helper()
	require.Nil(t, decoded.Error, "unexpected rpc error: %+v", decoded.Error)
	raw, err := json.Marshal(decoded.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestVaultLifecycle(t *testing.T) {
	venue := newTestVenue(t, "")
	borrower := testAddr(1)
	fund(t, venue.ledger, borrower, 10_000, 0, 0)

	resp, decoded := venue.call(t, "", "vault_initialize", map[string]string{
		"account": borrower.String(), "referencePrice": "1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack ackResult
	resultInto(t, decoded, &ack)
	require.True(t, ack.OK)

	_, decoded = venue.call(t, "", "vault_requiredCollateral", map[string]string{"amount": "1000"})
	var required vaultRequiredCollateralResult
	resultInto(t, decoded, &required)
	require.Equal(t, "1500", required.Required)

	_, decoded = venue.call(t, "", "vault_borrow", map[string]string{
		"account": borrower.String(), "collateral": "1500", "amount": "1000",
	})
	resultInto(t, decoded, &ack)

	_, decoded = venue.call(t, "", "vault_getPosition", map[string]string{"account": borrower.String()})
	var posResult vaultPositionResult
	resultInto(t, decoded, &posResult)
	require.NotNil(t, posResult.Position)
	require.Equal(t, "1500", posResult.Position.Collateral.String())
	require.Equal(t, "1000", posResult.Position.Borrowed.String())

	_, decoded = venue.call(t, "", "vault_healthCheck", map[string]string{"account": borrower.String()})
	var health vaultHealthResult
	resultInto(t, decoded, &health)
	require.True(t, health.Healthy)
	require.Equal(t, "1000", health.TotalDue)
	require.Equal(t, "1500", health.RequiredCollateral)

	_, decoded = venue.call(t, "", "vault_getSupply")
	var supply vaultSupplyResult
	resultInto(t, decoded, &supply)
	require.Equal(t, "1500", supply.Supply.TotalCollateral.String())
	require.Equal(t, "1000", supply.Supply.TotalDebt.String())

	_, decoded = venue.call(t, "", "vault_repay", map[string]string{
		"account": borrower.String(), "amount": "400",
	})
	resultInto(t, decoded, &ack)

	_, decoded = venue.call(t, "", "vault_repay", map[string]string{
		"account": borrower.String(), "amount": "600",
	})
	resultInto(t, decoded, &ack)

	_, decoded = venue.call(t, "", "vault_getPosition", map[string]string{"account": borrower.String()})
	resultInto(t, decoded, &posResult)
	require.Nil(t, posResult.Position, "closed position must read as null")

	account, err := venue.ledger.GetAccount(borrower)
	require.NoError(t, err)
	require.Equal(t, "10000", account.BalanceVLT.String())
	// Borrow reward: 1000 / 100 GMV.
	require.Equal(t, "10", account.BalanceGMV.String())
}

func TestLiquidationAndAuctionFlow(t *testing.T) {
	venue := newTestVenue(t, "")
	borrower := testAddr(1)
	liquidator := testAddr(2)
	bidder := testAddr(3)
	fund(t, venue.ledger, borrower, 10_000, 0, 0)
	fund(t, venue.ledger, bidder, 10_000, 0, 0)

	_, decoded := venue.call(t, "", "vault_initialize", map[string]string{
		"account": borrower.String(), "referencePrice": "1",
	})
	var ack ackResult
	resultInto(t, decoded, &ack)
	_, decoded = venue.call(t, "", "vault_borrow", map[string]string{
		"account": borrower.String(), "collateral": "1500", "amount": "1000",
	})
	resultInto(t, decoded, &ack)

	// Healthy positions cannot be liquidated.
	resp, decoded := venue.call(t, "", "vault_liquidate", map[string]string{
		"liquidator": liquidator.String(), "borrower": borrower.String(),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeRejected, decoded.Error.Code)

	// Accrue enough interest to break the collateral ratio.
	venue.positions.SetBlockHeight(10)
	_, decoded = venue.call(t, "", "vault_liquidate", map[string]string{
		"liquidator": liquidator.String(), "borrower": borrower.String(),
	})
	var liq vaultLiquidateResult
	resultInto(t, decoded, &liq)
	require.Equal(t, uint64(1), liq.AuctionID)

	_, decoded = venue.call(t, "", "auction_get", map[string]interface{}{"auctionId": liq.AuctionID})
	var record auctionResult
	resultInto(t, decoded, &record)
	require.True(t, record.Auction.Active)
	require.Equal(t, "1500", record.Auction.CollateralAmount.String())
	require.Equal(t, "3000", record.Auction.StartPrice.String())
	require.Equal(t, "750", record.Auction.EndPrice.String())

	// Halfway through the window: 3000 - 2250/2 = 1875.
	*venue.now += auction.DefaultWindowSeconds / 2
	_, decoded = venue.call(t, "", "auction_getPrice", map[string]interface{}{"auctionId": liq.AuctionID})
	var price auctionPriceResult
	resultInto(t, decoded, &price)
	require.Equal(t, "1875", price.Price)

	_, decoded = venue.call(t, "", "auction_bid", map[string]interface{}{
		"auctionId": liq.AuctionID, "bidder": bidder.String(), "payment": "2000",
	})
	resultInto(t, decoded, &ack)

	account, err := venue.ledger.GetAccount(bidder)
	require.NoError(t, err)
	// 10000 - 1875 price + 1500 collateral.
	require.Equal(t, "9625", account.BalanceVLT.String())
	// Clearing reward: 1875 / 50 GMV.
	require.Equal(t, "37", account.BalanceGMV.String())

	_, decoded = venue.call(t, "", "auction_get", map[string]interface{}{"auctionId": liq.AuctionID})
	resultInto(t, decoded, &record)
	require.False(t, record.Auction.Active, "settled auction must be inactive")

	// A second bid observes the dead auction.
	resp, decoded = venue.call(t, "", "auction_bid", map[string]interface{}{
		"auctionId": liq.AuctionID, "bidder": bidder.String(), "payment": "2000",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, codeRejected, decoded.Error.Code)
}

func TestMutationsRequireAuth(t *testing.T) {
	venue := newTestVenue(t, "testsecret")
	borrower := testAddr(1)
	fund(t, venue.ledger, borrower, 10_000, 0, 0)

	resp, decoded := venue.call(t, "", "vault_initialize", map[string]string{
		"account": borrower.String(), "referencePrice": "1",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)

	// Reads stay open without a token.
	resp, decoded = venue.call(t, "", "vault_getSupply")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)

	token := signToken(t, "testsecret", time.Now().Add(time.Hour))
	resp, decoded = venue.call(t, token, "vault_initialize", map[string]string{
		"account": borrower.String(), "referencePrice": "1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)

	expired := signToken(t, "testsecret", time.Now().Add(-time.Hour))
	resp, decoded = venue.call(t, expired, "vault_borrow", map[string]string{
		"account": borrower.String(), "collateral": "1500", "amount": "1000",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)

	wrongKey := signToken(t, "othersecret", time.Now().Add(time.Hour))
	resp, _ = venue.call(t, wrongKey, "vault_borrow", map[string]string{
		"account": borrower.String(), "collateral": "1500", "amount": "1000",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func signToken(t *testing.T, secret string, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": expiry.Unix()})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestErrorCodes(t *testing.T) {
	venue := newTestVenue(t, "")
	borrower := testAddr(1)

	resp, decoded := venue.call(t, "", "vault_unknown")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, codeMethodNotFound, decoded.Error.Code)

	resp, decoded = venue.call(t, "", "vault_initialize")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, codeInvalidParams, decoded.Error.Code)

	resp, decoded = venue.call(t, "", "vault_initialize", map[string]string{
		"account": "not-an-address", "referencePrice": "1",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, codeInvalidParams, decoded.Error.Code)

	// Borrowing without initializing rejects with the engine error.
	resp, decoded = venue.call(t, "", "vault_borrow", map[string]string{
		"account": borrower.String(), "collateral": "1500", "amount": "1000",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, codeRejected, decoded.Error.Code)

	resp, decoded = venue.call(t, "", "auction_getPrice", map[string]interface{}{"auctionId": 99})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, codeRejected, decoded.Error.Code)
}

func TestPausedModuleCode(t *testing.T) {
	venue := newTestVenue(t, "")
	venue.positions.SetPauses(pauseAll{})
	borrower := testAddr(1)

	resp, decoded := venue.call(t, "", "vault_initialize", map[string]string{
		"account": borrower.String(), "referencePrice": "1",
	})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, codeModulePaused, decoded.Error.Code)
}

type pauseAll struct{}

func (pauseAll) IsPaused(string) bool { return true }

func TestHealthz(t *testing.T) {
	venue := newTestVenue(t, "")
	resp, err := venue.server.Client().Get(venue.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
