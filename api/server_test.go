package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaultis-labs/go-vaultis/core/state"
	"github.com/vaultis-labs/go-vaultis/core/withdrawal"
	"github.com/vaultis-labs/go-vaultis/storage"
)

const (
	shareAccounting = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	orchestrator    = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	admin           = "0xcccccccccccccccccccccccccccccccccccccccc"
	treasury        = "0xdddddddddddddddddddddddddddddddddddddddd"
	user1           = "0x1000000000000000000000000000000000000001"
	assetA          = "0x200000000000000000000000000000000000000a"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	db, err := storage.NewBadgerStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledger, err := state.NewLedgerState(storage.NewLedgerStore(db), state.Capabilities{
		ShareAccounting:     shareAccounting,
		StakingOrchestrator: orchestrator,
		Admin:               admin,
		Treasury:            treasury,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, ledger.Load())

	srv := NewServer(ledger, ":0", false, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestHealthAndStatus(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	var status state.Status
	decodeBody(t, resp, &status)
	require.Equal(t, 0, status.RequestCount)
	require.NotEmpty(t, status.StateRoot)
}

func TestWithdrawalEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/withdrawal", map[string]interface{}{
		"caller":     shareAccounting,
		"request_id": "req-1",
		"user":       user1,
		"assets":     []string{assetA},
		"amounts":    []int64{100},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/v1/withdrawal/req-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var req withdrawal.Request
	decodeBody(t, resp, &req)
	require.Equal(t, "req-1", req.ID)
	require.Equal(t, []int64{100}, req.WithdrawableAmounts)
	require.False(t, req.Ready)

	resp, err = http.Get(ts.URL + "/api/v1/account/" + user1 + "/withdrawals")
	require.NoError(t, err)
	var listing map[string][]string
	decodeBody(t, resp, &listing)
	require.Equal(t, []string{"req-1"}, listing["request_ids"])

	// unknown request
	resp, err = http.Get(ts.URL + "/api/v1/withdrawal/req-ghost")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// wrong caller
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/withdrawal", map[string]interface{}{
		"caller":     user1,
		"request_id": "req-2",
		"user":       user1,
		"assets":     []string{assetA},
		"amounts":    []int64{10},
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestRedemptionEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/withdrawal", map[string]interface{}{
		"caller":     shareAccounting,
		"request_id": "req-1",
		"user":       user1,
		"assets":     []string{assetA},
		"amounts":    []int64{100},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/redemption", map[string]interface{}{
		"caller": orchestrator,
		"redemption": &withdrawal.Redemption{
			ID:              "red-1",
			RequestIDs:      []string{"req-1"},
			UnstakeRefs:     []string{"unstake-1"},
			Assets:          []string{assetA},
			PromisedAmounts: []int64{100},
			Receiver:        treasury,
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/api/v1/redemption/red-1")
	require.NoError(t, err)
	var rd withdrawal.Redemption
	decodeBody(t, resp, &rd)
	require.Equal(t, []string{"req-1"}, rd.RequestIDs)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/redemption/red-1/complete", map[string]interface{}{
		"caller":   orchestrator,
		"assets":   []string{assetA},
		"received": []int64{90},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var totals map[string][]int64
	decodeBody(t, resp, &totals)
	require.Equal(t, []int64{100}, totals["settled_totals"])

	// one-shot: repeat completion is gone
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/redemption/red-1/complete", map[string]interface{}{
		"caller":   orchestrator,
		"assets":   []string{assetA},
		"received": []int64{90},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// treasury got the received funds
	resp, err = http.Get(ts.URL + "/api/v1/account/" + treasury + "/balances")
	require.NoError(t, err)
	var balances map[string]map[string]int64
	decodeBody(t, resp, &balances)
	require.Equal(t, int64(90), balances["balances"][assetA])
}

func TestRedemptionIDAssignedWhenMissing(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/redemption", map[string]interface{}{
		"caller": orchestrator,
		"redemption": &withdrawal.Redemption{
			RequestIDs:      []string{"req-1"},
			Assets:          []string{assetA},
			PromisedAmounts: []int64{100},
			Receiver:        treasury,
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created["redemption_id"])

	resp, err := http.Get(ts.URL + "/api/v1/redemption/" + created["redemption_id"])
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestFulfillEndpointErrorMapping(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/withdrawal", map[string]interface{}{
		"caller":     shareAccounting,
		"request_id": "req-1",
		"user":       user1,
		"assets":     []string{assetA},
		"amounts":    []int64{100},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// delay not elapsed yet
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/withdrawal/req-1/fulfill", fulfillBody{Caller: user1})
	require.Equal(t, http.StatusTooEarly, resp.StatusCode)
	resp.Body.Close()

	// wrong owner
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/withdrawal/req-1/fulfill", fulfillBody{Caller: admin})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestDelayEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/delay")
	require.NoError(t, err)
	var delay map[string]int64
	decodeBody(t, resp, &delay)
	require.Equal(t, int64(7*24*3600), delay["delay_seconds"])

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/v1/delay", setDelayBody{
		Caller:       admin,
		DelaySeconds: int64((14 * 24 * time.Hour) / time.Second),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// out-of-range rejected
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/v1/delay", setDelayBody{
		Caller:       admin,
		DelaySeconds: int64((6 * 24 * time.Hour) / time.Second),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/delay")
	require.NoError(t, err)
	decodeBody(t, resp, &delay)
	require.Equal(t, int64(14*24*3600), delay["delay_seconds"])
}

func TestTreasuryCreditEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/treasury/credit", creditTreasuryBody{
		Caller:  orchestrator,
		Assets:  []string{assetA},
		Amounts: []int64{500},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/treasury/credit", creditTreasuryBody{
		Caller:  admin,
		Assets:  []string{assetA},
		Amounts: []int64{500},
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestInvalidJSONBody(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/withdrawal", bytes.NewBufferString("{nope"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestStatusReflectsActivity(t *testing.T) {
	_, ts := newTestServer(t)

	for i := 1; i <= 3; i++ {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/withdrawal", map[string]interface{}{
			"caller":     shareAccounting,
			"request_id": fmt.Sprintf("req-%d", i),
			"user":       user1,
			"assets":     []string{assetA},
			"amounts":    []int64{int64(i * 10)},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	var status state.Status
	decodeBody(t, resp, &status)
	require.Equal(t, 3, status.RequestCount)
	require.Equal(t, uint64(3), status.EventCount)
}
