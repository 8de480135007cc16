package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/labaccess/internal/httpapi"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/service"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store/memory"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/types"
)

var testNow = time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

// newTestServer wires up the full dependency graph over the memory store,
// seeded with user 1 (card AABBCCDD) and an airlock on room 101, and
// returns an httptest.Server whose URL can be hit with a plain http.Client.
func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	st := memory.New()
	err := st.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.UpsertUser(ctx, store.UserRecord{ID: 1, Name: "Ada", Active: true}, testNow); err != nil {
			return err
		}
		for uid, loc := range map[string]store.Location{"reader-101-out": store.LocationOutside, "reader-101-in": store.LocationInside} {
			if _, err := tx.InsertReader(ctx, store.ReaderRecord{ReaderUID: uid, RoomID: 101, Location: loc, Active: true}, testNow); err != nil {
				return err
			}
		}
		owner := int64(1)
		_, err := tx.UpsertCard(ctx, store.CardRecord{CardUID: "AABBCCDD", OwnerUserID: &owner}, testNow)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	clk := testclock.NewClock(testNow)
	reg := prometheus.NewRegistry()
	m := service.NewMetrics(reg)
	doors := service.NewDoorService(st, clk, 0, logger)
	t.Cleanup(doors.Close)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger,
		Addr:           ":0",
		AccessService:  service.NewAccessService(st, doors, clk, logger, m),
		DoorService:    doors,
		Registry:       service.NewRegistry(st, clk),
		LedgerService:  service.NewLedgerService(st, clk, logger, m),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSOrigins:    []string{"https://admin.example"},
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

// ── Scan ─────────────────────────────────────────────────────────────────────

func TestScan_JSON_Entry(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/scan", `{"card_uid":"AABBCCDD","reader_uid":"reader-101-out"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res types.ScanResult
	decode(t, resp, &res)
	if !res.Authorized || !res.DoorShouldOpen || !res.IsEntry {
		t.Errorf("expected open entry, got %+v", res)
	}
	if res.UserName != "Ada" {
		t.Errorf("user_name = %q", res.UserName)
	}
}

func TestScan_UnknownCard_StillOK(t *testing.T) {
	ts, st := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/scan", `{"card_uid":"00000000","reader_uid":"reader-101-out"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res types.ScanResult
	decode(t, resp, &res)
	if res.Authorized || res.Reason != service.ReasonUnknownCard {
		t.Errorf("expected unknown_card denial, got %+v", res)
	}
	if n := len(st.Events()); n != 1 {
		t.Errorf("expected 1 event, got %d", n)
	}
}

func TestScan_Malformed_400(t *testing.T) {
	ts, st := newTestServer(t)

	for name, body := range map[string]string{
		"not json":       `not json at all`,
		"missing card":   `{"reader_uid":"reader-101-out"}`,
		"missing reader": `{"card_uid":"AABBCCDD"}`,
		"unknown field":  `{"card_uid":"AABBCCDD","reader_uid":"reader-101-out","extra":1}`,
	} {
		resp := postJSON(t, ts.URL+"/v1/scan", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
	if n := len(st.Events()); n != 0 {
		t.Errorf("expected no events for malformed scans, got %d", n)
	}
}

func TestScan_Protobuf(t *testing.T) {
	ts, _ := newTestServer(t)

	msg, err := structpb.NewStruct(map[string]any{"card_uid": "AABBCCDD", "reader_uid": "reader-101-in"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	body, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := http.Post(ts.URL+"/v1/scan", "application/x-protobuf", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Fatalf("content-type = %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out structpb.Struct
	if err := proto.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	f := out.GetFields()
	if !f["authorized"].GetBoolValue() || f["door_should_open"].GetBoolValue() || !f["is_entry"].GetBoolValue() {
		t.Errorf("expected entry without open via inside reader, got %v", f)
	}
}

// ── Door status ──────────────────────────────────────────────────────────────

func TestDoorStatus_JSONAndProtobuf(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/scan", `{"card_uid":"AABBCCDD","reader_uid":"reader-101-out"}`)

	resp, err := http.Get(ts.URL + "/v1/doors/101")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var status types.DoorStatus
	decode(t, resp, &status)
	if status.RoomID != 101 || status.IsOpen || status.LastUpdatedAt == "" {
		t.Errorf("unexpected door status %+v", status)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/doors/101", nil)
	req.Header.Set("Accept", "application/x-protobuf")
	presp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get proto: %v", err)
	}
	defer presp.Body.Close()
	raw, _ := io.ReadAll(presp.Body)
	var msg structpb.Struct
	if err := proto.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := msg.GetFields()["room_id"].GetNumberValue(); got != 101 {
		t.Errorf("room_id = %v", got)
	}
}

func TestDoorStatus_BadRoom_400(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/doors/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ── Administration ───────────────────────────────────────────────────────────

func TestCards_RegisterAndRevoke(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/cards", `{"user_id":1,"card_uid":"CAFEBABE"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var card types.CardView
	decode(t, resp, &card)
	if card.CardUID != "CAFEBABE" || !card.Active {
		t.Errorf("unexpected card %+v", card)
	}

	if resp := postJSON(t, ts.URL+"/v1/cards", `{"user_id":99,"card_uid":"CAFEBABE"}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", resp.StatusCode)
	}

	for uid, want := range map[string]int{"CAFEBABE": http.StatusNoContent, "NOPE": http.StatusNotFound} {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/cards/"+uid, nil)
		dresp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		dresp.Body.Close()
		if dresp.StatusCode != want {
			t.Errorf("revoke %s: expected %d, got %d", uid, want, dresp.StatusCode)
		}
	}
}

func TestReaders_ConflictIs409(t *testing.T) {
	ts, _ := newTestServer(t)

	if resp := postJSON(t, ts.URL+"/v1/readers", `{"reader_uid":"r-7","room_id":7,"location":"Outside"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, ts.URL+"/v1/readers", `{"reader_uid":"r-7","room_id":7,"location":"outside"}`); resp.StatusCode != http.StatusCreated {
		t.Errorf("identical re-provision: expected 201, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, ts.URL+"/v1/readers", `{"reader_uid":"r-7","room_id":7,"location":"inside"}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, ts.URL+"/v1/readers", `{"reader_uid":"r-8","room_id":7,"location":"roof"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad location: expected 400, got %d", resp.StatusCode)
	}
}

func TestReaders_Deactivate(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/readers/reader-101-out/active", strings.NewReader(`{"active":false}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	sresp := postJSON(t, ts.URL+"/v1/scan", `{"card_uid":"AABBCCDD","reader_uid":"reader-101-out"}`)
	var res types.ScanResult
	decode(t, sresp, &res)
	if res.Reason != service.ReasonReaderInactive {
		t.Errorf("expected reader_inactive, got %+v", res)
	}
}

func TestOccupancy_ListsInside(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/scan", `{"card_uid":"AABBCCDD","reader_uid":"reader-101-out"}`)

	resp, err := http.Get(ts.URL + "/v1/occupancy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var occ []types.OccupantView
	decode(t, resp, &occ)
	if len(occ) != 1 || occ[0].UserID != 1 || occ[0].RoomID != 101 {
		t.Errorf("unexpected occupancy %+v", occ)
	}
}

// ── Scores ───────────────────────────────────────────────────────────────────

func TestScores_AdjustAndHistory(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/scores", `{"user_id":1,"points":"1.25","reason":"helped with inventory","created_by":2}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var hist types.ScoreHistoryResponse
	decode(t, resp, &hist)
	if hist.TotalScore.StringFixed(2) != "1.25" || !hist.Consistent || len(hist.Entries) != 1 {
		t.Errorf("unexpected history %+v", hist)
	}
	if hist.Entries[0].Category != string(store.CategoryAdjustment) {
		t.Errorf("category = %q", hist.Entries[0].Category)
	}

	for name, body := range map[string]string{
		"zero":      `{"user_id":1,"points":0,"reason":"x"}`,
		"no reason": `{"user_id":1,"points":1}`,
	} {
		if resp := postJSON(t, ts.URL+"/v1/scores", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
	if resp := postJSON(t, ts.URL+"/v1/scores", `{"user_id":42,"points":1,"reason":"x"}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown user: expected 404, got %d", resp.StatusCode)
	}

	gresp, err := http.Get(ts.URL + "/v1/users/1/scores")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer gresp.Body.Close()
	if gresp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", gresp.StatusCode)
	}
}

func TestTasks_Award(t *testing.T) {
	ts, st := newTestServer(t)
	err := st.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		assignee, category := int64(1), 2
		return tx.UpsertTask(ctx, store.TaskRecord{
			ID:             9,
			Title:          "clean fume hood",
			AssigneeUserID: &assignee,
			Status:         store.TaskDone,
			ScoreCategory:  &category,
		}, testNow)
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	resp := postJSON(t, ts.URL+"/v1/tasks/9/award", ``)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var award types.TaskAwardResponse
	decode(t, resp, &award)
	if award.Points.StringFixed(2) != "1.00" || award.AlreadyProcessed {
		t.Errorf("unexpected award %+v", award)
	}

	resp = postJSON(t, ts.URL+"/v1/tasks/9/award", `{"awarded_by":2}`)
	decode(t, resp, &award)
	if !award.AlreadyProcessed {
		t.Error("expected second award to report already processed")
	}

	if resp := postJSON(t, ts.URL+"/v1/tasks/404/award", ``); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown task: expected 404, got %d", resp.StatusCode)
	}
}

// ── Ambient ──────────────────────────────────────────────────────────────────

func TestMetrics_Exposed(t *testing.T) {
	ts, _ := newTestServer(t)
	postJSON(t, ts.URL+"/v1/scan", `{"card_uid":"AABBCCDD","reader_uid":"reader-101-out"}`)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `labaccess_scans_total{outcome="granted"} 1`) {
		t.Errorf("metrics missing scan counter:\n%s", body)
	}
}

func TestCORS_Preflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/v1/cards", nil)
	req.Header.Set("Origin", "https://admin.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://admin.example" {
		t.Errorf("allow-origin = %q", got)
	}
}
