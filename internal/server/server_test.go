package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tripweaver/tripweaver/internal/orchestrator"
	"github.com/tripweaver/tripweaver/internal/session"
)

type stubProcessor struct {
	resp    *orchestrator.Response
	err     error
	lastReq orchestrator.Request
	resets  []string
	deletes []string
}

func (p *stubProcessor) ProcessTurn(_ context.Context, req orchestrator.Request) (*orchestrator.Response, error) {
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}

func (p *stubProcessor) Reset(_ context.Context, id string) error {
	p.resets = append(p.resets, id)
	if id == "sess_missing" {
		return session.ErrNotFound
	}
	return nil
}

func (p *stubProcessor) Delete(_ context.Context, id string) error {
	p.deletes = append(p.deletes, id)
	if id == "sess_missing" {
		return session.ErrNotFound
	}
	return nil
}

func postChat(t *testing.T, handler http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsOrchestratorResponse(t *testing.T) {
	stub := &stubProcessor{resp: &orchestrator.Response{
		SessionID: "sess_1",
		State:     orchestrator.StateResponded,
		Message:   "Here are your options",
	}}
	srv := NewServer(stub)

	rec := postChat(t, srv.Handler(), `{"message": "trip to Seattle"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp orchestrator.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "sess_1" {
		t.Errorf("SessionID = %q, want sess_1", resp.SessionID)
	}
	if stub.lastReq.Message != "trip to Seattle" {
		t.Errorf("forwarded message = %q", stub.lastReq.Message)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv := NewServer(&stubProcessor{})

	rec := postChat(t, srv.Handler(), `{"message": "  "}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = postChat(t, srv.Handler(), `not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}
}

func TestChatSupersededMapsTo409(t *testing.T) {
	stub := &stubProcessor{err: orchestrator.ErrSuperseded}
	srv := NewServer(stub)

	rec := postChat(t, srv.Handler(), `{"message": "hello"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestChatInternalError(t *testing.T) {
	stub := &stubProcessor{err: fmt.Errorf("store down")}
	srv := NewServer(stub)

	rec := postChat(t, srv.Handler(), `{"message": "hello"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	stub := &stubProcessor{resp: &orchestrator.Response{SessionID: "sess_1"}}
	srv := NewServer(stub, WithAPIKey("secret"))
	handler := srv.Handler()

	rec := postChat(t, handler, `{"message": "hi"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	rec = postChat(t, handler, `{"message": "hi"}`, map[string]string{"X-API-Key": "secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("X-API-Key: status = %d, want 200", rec.Code)
	}

	rec = postChat(t, handler, `{"message": "hi"}`, map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("bearer token: status = %d, want 200", rec.Code)
	}

	// Health stays open.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recH := httptest.NewRecorder()
	handler.ServeHTTP(recH, req)
	if recH.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200 without key", recH.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	stub := &stubProcessor{}
	srv := NewServer(stub)

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/sess_1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if len(stub.deletes) != 1 || stub.deletes[0] != "sess_1" {
		t.Errorf("deletes = %v, want [sess_1]", stub.deletes)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/sess_missing", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", rec.Code)
	}
}

func TestResetSession(t *testing.T) {
	stub := &stubProcessor{}
	srv := NewServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sess_2/reset", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if len(stub.resets) != 1 || stub.resets[0] != "sess_2" {
		t.Errorf("resets = %v, want [sess_2]", stub.resets)
	}
}
