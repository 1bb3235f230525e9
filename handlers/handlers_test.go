package handlers_test

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"equity-token/db"
	"equity-token/handlers"
	"equity-token/logger"
	"equity-token/models"
	"equity-token/repository"
	"equity-token/routers"
	"equity-token/vesting"
)

const (
	ownerHex    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	tokenHex    = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	aliceHex    = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	bobHex      = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	strangerHex = "0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65"

	cliffPeriod = 365 * 24 * time.Hour
)

func testServer(t *testing.T) (*mux.Router, *clock.Mock) {
	t.Helper()
	return serverOver(t, openLedger(t))
}

func openLedger(t *testing.T) *db.LevelDB {
	t.Helper()
	ldb, err := db.NewMemLevelDB()
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(func() { ldb.Close() })
	return ldb
}

func serverOver(t *testing.T, ldb *db.LevelDB) (*mux.Router, *clock.Mock) {
	t.Helper()
	logger.Logger = zap.NewNop()

	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))

	token, err := vesting.NewToken(repository.NewLedgerRepository(ldb), clk, vesting.Config{
		Address: common.HexToAddress(tokenHex),
		Owner:   common.HexToAddress(ownerHex),
	})
	if err != nil {
		t.Fatalf("new token: %v", err)
	}

	handler := handlers.NewHandler(token)
	router := mux.NewRouter()
	routers.RegisterRoutes(router, handler)
	return router, clk
}

func do(router *mux.Router, method, path, caller string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if caller != "" {
		req.Header.Set(handlers.CallerHeader, caller)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response: %v, body: %s", err, res.Body.String())
	}
	return out
}

func addParticipant(router *mux.Router, wallet string, pct int) *httptest.ResponseRecorder {
	return do(router, http.MethodPost, "/participants", ownerHex, map[string]interface{}{
		"first_name":            "Ivan",
		"last_name":             "Ivanov",
		"wallet":                wallet,
		"allocation_percentage": pct,
	})
}

func TestAddParticipant_Success(t *testing.T) {
	router, _ := testServer(t)

	res := addParticipant(router, aliceHex, 40)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d, body: %s", res.Code, res.Body.String())
	}

	participant, ok := decode(t, res)["participant"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing participant in response: %s", res.Body.String())
	}
	if participant["total_allocation"] != "4000000000000000000000000" {
		t.Fatalf("unexpected allocation %v", participant["total_allocation"])
	}

	count := decode(t, do(router, http.MethodGet, "/participants/count", "", nil))
	if count["count"] != float64(1) {
		t.Fatalf("expected count 1, got %v", count["count"])
	}
}

func TestAddParticipant_Errors(t *testing.T) {
	router, _ := testServer(t)

	if res := addParticipant(router, aliceHex, 40); res.Code != http.StatusCreated {
		t.Fatalf("expected first add 201, got %d", res.Code)
	}

	tests := []struct {
		name   string
		res    *httptest.ResponseRecorder
		status int
		kind   string
	}{
		{"duplicate", addParticipant(router, aliceHex, 10), http.StatusConflict, "DuplicateEntity"},
		{"zero wallet", addParticipant(router, "0x0000000000000000000000000000000000000000", 10), http.StatusBadRequest, "InvalidInput"},
		{"bad percentage", addParticipant(router, bobHex, 0), http.StatusBadRequest, "InvalidInput"},
		{"exceeds supply", addParticipant(router, bobHex, 61), http.StatusUnprocessableEntity, "CapacityExceeded"},
		{"not owner", do(router, http.MethodPost, "/participants", aliceHex, map[string]interface{}{
			"first_name": "A", "last_name": "B", "wallet": bobHex, "allocation_percentage": 10,
		}), http.StatusForbidden, "Unauthorized"},
		{"bad caller", do(router, http.MethodPost, "/participants", "nope", map[string]interface{}{
			"wallet": bobHex, "allocation_percentage": 10,
		}), http.StatusBadRequest, "InvalidInput"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.res.Code != tc.status {
				t.Fatalf("expected %d, got %d, body: %s", tc.status, tc.res.Code, tc.res.Body.String())
			}
			if kind := decode(t, tc.res)["kind"]; kind != tc.kind {
				t.Fatalf("expected kind %s, got %v", tc.kind, kind)
			}
		})
	}

	count := decode(t, do(router, http.MethodGet, "/participants/count", "", nil))
	if count["count"] != float64(1) {
		t.Fatalf("rejected adds must not register participants, count %v", count["count"])
	}
}

func TestVestingAndClaimFlow(t *testing.T) {
	router, clk := testServer(t)

	addParticipant(router, aliceHex, 40)

	if res := do(router, http.MethodPost, "/vesting/start", aliceHex, nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner start, got %d", res.Code)
	}
	if res := do(router, http.MethodPost, "/vesting/start", ownerHex, nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}

	res := do(router, http.MethodPost, "/vesting/claim", aliceHex, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 before cliff, got %d, body: %s", res.Code, res.Body.String())
	}

	clk.Add(2 * cliffPeriod)

	vested := decode(t, do(router, http.MethodGet, "/participants/"+aliceHex+"/vested", "", nil))
	if vested["vested"] != "2000000000000000000000000" {
		t.Fatalf("expected 2M vested, got %v", vested["vested"])
	}

	res = do(router, http.MethodPost, "/vesting/claim", aliceHex, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	if amount := decode(t, res)["amount"]; amount != "2000000000000000000000000" {
		t.Fatalf("unexpected claim amount %v", amount)
	}

	res = do(router, http.MethodPost, "/vesting/claim", aliceHex, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected second claim 409, got %d", res.Code)
	}
	if kind := decode(t, res)["kind"]; kind != "NothingToClaim" {
		t.Fatalf("expected NothingToClaim, got %v", kind)
	}

	// claimed and vested in one view describe the same moment
	p := decode(t, do(router, http.MethodGet, "/participants/"+aliceHex, "", nil))
	if p["claimed_amount"] != "2000000000000000000000000" || p["vested_balance"] != "0" {
		t.Fatalf("inconsistent participant view %v", p)
	}

	res = do(router, http.MethodPost, "/vesting/claim", strangerHex, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", res.Code)
	}

	balance := decode(t, do(router, http.MethodGet, "/balances/"+aliceHex, "", nil))
	if balance["balance"] != "2000000000000000000000000" {
		t.Fatalf("unexpected balance %v", balance["balance"])
	}
	pool := decode(t, do(router, http.MethodGet, "/balances/"+tokenHex, "", nil))
	if pool["balance"] != "8000000000000000000000000" {
		t.Fatalf("unexpected pool balance %v", pool["balance"])
	}

	report := do(router, http.MethodGet, "/ledger/validate", "", nil)
	if report.Code != http.StatusOK || decode(t, report)["ok"] != true {
		t.Fatalf("ledger should be consistent, body: %s", report.Body.String())
	}
}

func TestSetStatus_LeaverCannotClaim(t *testing.T) {
	router, clk := testServer(t)
	addParticipant(router, aliceHex, 40)
	do(router, http.MethodPost, "/vesting/start", ownerHex, nil)
	clk.Add(cliffPeriod + 24*time.Hour)

	res := do(router, http.MethodPut, "/participants/"+aliceHex+"/status", ownerHex,
		map[string]bool{"is_active": false, "is_leaver": true})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}

	vested := decode(t, do(router, http.MethodGet, "/participants/"+aliceHex+"/vested", "", nil))
	if vested["vested"] != "0" {
		t.Fatalf("leaver should have nothing vested, got %v", vested["vested"])
	}

	res = do(router, http.MethodPost, "/vesting/claim", aliceHex, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	if msg := decode(t, res)["error"]; msg != vesting.ReasonNotActive {
		t.Fatalf("unexpected error %v", msg)
	}

	res = do(router, http.MethodPut, "/participants/"+bobHex+"/status", ownerHex,
		map[string]bool{"is_active": false, "is_leaver": true})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown participant, got %d", res.Code)
	}
}

func TestTransfers_Rejected(t *testing.T) {
	router, _ := testServer(t)

	for _, path := range []string{"/transfer", "/transfer-from"} {
		res := do(router, http.MethodPost, path, aliceHex, map[string]string{
			"from": aliceHex, "to": bobHex, "amount": "1000",
		})
		if res.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, res.Code)
		}
		body := decode(t, res)
		if body["kind"] != "OperationNotPermitted" || body["error"] != vesting.ReasonTransfersDisabled {
			t.Fatalf("%s: unexpected body %v", path, body)
		}
	}
}

func TestTransfers_MalformedRequestStillRejected(t *testing.T) {
	router, _ := testServer(t)

	for _, path := range []string{"/transfer", "/transfer-from"} {
		req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString("{not json"))
		req.Header.Set(handlers.CallerHeader, "not-an-address")
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)

		if res.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, res.Code)
		}
		if body := decode(t, res); body["kind"] != "OperationNotPermitted" {
			t.Fatalf("%s: unexpected body %v", path, body)
		}
	}
}

func TestParticipantListingAndLookup(t *testing.T) {
	router, _ := testServer(t)
	addParticipant(router, bobHex, 35)
	addParticipant(router, aliceHex, 40)

	list := decode(t, do(router, http.MethodGet, "/participants", "", nil))
	participants, ok := list["participants"].([]interface{})
	if !ok || len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %v", list["participants"])
	}
	first := participants[0].(map[string]interface{})
	if first["wallet"] != common.HexToAddress(bobHex).Hex() {
		t.Fatalf("expected insertion order, first was %v", first["wallet"])
	}

	byIndex := decode(t, do(router, http.MethodGet, "/participants/index/1", "", nil))
	if byIndex["wallet"] != common.HexToAddress(aliceHex).Hex() {
		t.Fatalf("expected alice at index 1, got %v", byIndex["wallet"])
	}

	if res := do(router, http.MethodGet, "/participants/index/2", "", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if res := do(router, http.MethodGet, "/participants/"+strangerHex, "", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if res := do(router, http.MethodGet, "/participants/not-an-address", "", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestTokenInfoAndValuation(t *testing.T) {
	router, _ := testServer(t)
	addParticipant(router, aliceHex, 40)

	info := decode(t, do(router, http.MethodGet, "/token", "", nil))
	if info["symbol"] != "DFX" || info["token_price"] != "1000000000000000000" {
		t.Fatalf("unexpected token info %v", info)
	}
	if info["remaining_supply"] != "6000000000000000000000000" {
		t.Fatalf("unexpected remaining supply %v", info["remaining_supply"])
	}

	res := do(router, http.MethodPut, "/token/valuation", aliceHex, map[string]uint64{"valuation": 20_000_000})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	res = do(router, http.MethodPut, "/token/valuation", ownerHex, map[string]uint64{"valuation": 20_000_000})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	if price := decode(t, res)["token_price"]; price != "2000000000000000000" {
		t.Fatalf("expected price 2e18, got %v", price)
	}
}

func TestListEvents(t *testing.T) {
	router, _ := testServer(t)
	addParticipant(router, aliceHex, 40)
	do(router, http.MethodPost, "/vesting/start", ownerHex, nil)

	res := do(router, http.MethodGet, "/events?limit=1", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var events []map[string]interface{}
	if err := json.Unmarshal(res.Body.Bytes(), &events); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(events) != 1 || events[0]["kind"] != "VestingStarted" {
		t.Fatalf("unexpected events %v", events)
	}

	res = do(router, http.MethodGet, "/events", "", nil)
	events = nil
	if err := json.Unmarshal(res.Body.Bytes(), &events); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(events) != 2 || events[0]["kind"] != "ParticipantAdded" {
		t.Fatalf("unexpected events %v", events)
	}
	// amounts are decimal strings and wallets checksummed, as everywhere else
	if events[0]["amount"] != "4000000000000000000000000" {
		t.Fatalf("expected string amount, got %#v", events[0]["amount"])
	}
	if events[0]["wallet"] != common.HexToAddress(aliceHex).Hex() {
		t.Fatalf("expected checksummed wallet, got %v", events[0]["wallet"])
	}

	if res := do(router, http.MethodGet, "/events?limit=x", "", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestValidateLedger(t *testing.T) {
	router, _ := testServer(t)
	addParticipant(router, aliceHex, 40)

	res := do(router, http.MethodGet, "/ledger/validate", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if body := decode(t, res); body["ok"] != true {
		t.Fatalf("expected consistent ledger, got %v", body)
	}
}

func TestValidateLedger_Inconsistent(t *testing.T) {
	ldb := openLedger(t)
	err := repository.NewLedgerRepository(ldb).Commit(&repository.Changeset{State: &models.TokenState{
		AllocatedTotal:   new(big.Int),
		PoolBalance:      big.NewInt(5),
		ProjectValuation: vesting.DefaultProjectValuation,
	}})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}
	router, _ := serverOver(t, ldb)

	res := do(router, http.MethodGet, "/ledger/validate", "", nil)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	body := decode(t, res)
	violations, _ := body["violations"].([]interface{})
	if body["ok"] != false || len(violations) != 1 ||
		violations[0] != "pool balance 5, expected 10000000000000000000000000" {
		t.Fatalf("unexpected report %v", body)
	}
}
