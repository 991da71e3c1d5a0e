package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/corehost/internal/core"
	"github.com/danmuck/corehost/internal/extensions"
	"github.com/danmuck/corehost/internal/modules"
	"github.com/danmuck/corehost/internal/testutil/testlog"
)

type stubHost struct {
	phase core.Phase
	sent  [][]byte
	err   error
}

func (h *stubHost) Phase() core.Phase { return h.phase }

func (h *stubHost) Status() core.Status {
	return core.Status{Phase: h.phase.String(), Program: "/progs/boot.bin"}
}

func (h *stubHost) SendBytes(b []byte) error {
	if h.err != nil {
		return h.err
	}
	h.sent = append(h.sent, b)
	return nil
}

type stubExt struct{ report extensions.Report }

func (s stubExt) Report() extensions.Report { return s.report }

func do(t *testing.T, s *Server, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	var decoded map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return rr, decoded
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	host := &stubHost{phase: core.PhaseInitialized}
	s := New(":0", host, nil, nil)

	rr, body := do(t, s, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health: %d %v", rr.Code, body)
	}

	rr, body = do(t, s, http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusServiceUnavailable || body["ready"] != false || body["phase"] != "initialized" {
		t.Fatalf("unexpected ready before run: %d %v", rr.Code, body)
	}
	host.phase = core.PhaseRunning
	rr, body = do(t, s, http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusOK || body["ready"] != true {
		t.Fatalf("unexpected ready while running: %d %v", rr.Code, body)
	}
	host.phase = core.PhaseStopped
	rr, body = do(t, s, http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusServiceUnavailable || body["done"] != true {
		t.Fatalf("unexpected ready after run: %d %v", rr.Code, body)
	}
	t.Logf("admin/http: GET /ready status=%d phase=%v", rr.Code, body["phase"])
}

func TestStatusIncludesExtensions(t *testing.T) {
	testlog.Start(t)
	host := &stubHost{phase: core.PhaseRunning}
	s := New(":0", host, stubExt{report: extensions.Report{Found: 3, Opened: 2, Loaded: 1}}, nil)

	rr, body := do(t, s, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code %d", rr.Code)
	}
	coreBody, _ := body["core"].(map[string]any)
	if coreBody["phase"] != "running" || coreBody["program"] != "/progs/boot.bin" {
		t.Fatalf("unexpected core status: %v", body)
	}
	ext, _ := body["extensions"].(map[string]any)
	if ext["found"] != float64(3) || ext["loaded"] != float64(1) {
		t.Fatalf("unexpected extension report: %v", body)
	}
}

func TestSendBytes(t *testing.T) {
	testlog.Start(t)
	host := &stubHost{phase: core.PhaseRunning}
	s := New(":0", host, nil, nil)

	rr, body := do(t, s, http.MethodPost, "/gpu/bytes", []byte("frame-0"))
	if rr.Code != http.StatusOK || body["bytes"] != float64(7) {
		t.Fatalf("unexpected send: %d %v", rr.Code, body)
	}
	if len(host.sent) != 1 || string(host.sent[0]) != "frame-0" {
		t.Fatalf("payload not forwarded: %q", host.sent)
	}

	host.err = fmt.Errorf("gpu: %w", modules.ErrNotInitialized)
	rr, _ = do(t, s, http.MethodPost, "/gpu/bytes", []byte("x"))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 before init, got %d", rr.Code)
	}

	host.err = errors.New("gpu module send_bytes() failed")
	rr, _ = do(t, s, http.MethodPost, "/gpu/bytes", []byte("x"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on module failure, got %d", rr.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	testlog.Start(t)
	s := New(":0", &stubHost{}, nil, nil)
	do(t, s, http.MethodGet, "/health", nil)

	rr, _ := do(t, s, http.MethodGet, MetricsPath, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "corehost_http_requests_total") {
		t.Fatalf("request counter not exported")
	}
}
