package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	return NewServer("127.0.0.1", 0, st, st), st
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	if err := st.Upsert(ctx, store.Identity{ID: "alice", DisplayName: "Alice", Signature: []float32{1}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	score := 0.9
	if err := st.Append(ctx, store.Attempt{
		ID:         "a",
		IdentityID: "alice",
		Outcome:    store.OutcomeMatched,
		Score:      &score,
		LatencyMS:  100,
		CreatedAt:  st.Now(),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Enrolled != 1 || body.PresentToday != 1 || body.TotalAttempts != 1 {
		t.Errorf("unexpected status: %+v", body)
	}
}

func TestAttemptsEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := st.Append(ctx, store.Attempt{
			ID:      string(rune('a' + i)),
			Outcome: store.OutcomeNoFace,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts?limit=2", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Attempts []attemptResponse `json:"attempts"`
		Count    int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 2 || len(body.Attempts) != 2 {
		t.Errorf("expected 2 attempts, got %+v", body)
	}
}

func TestAttemptsEndpointRejectsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, limit := range []string{"0", "-1", "bogus", "100000"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts?limit="+limit, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, rec.Code)
		}
	}
}
