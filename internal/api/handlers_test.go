package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LeventeLantos/zenvia-go/internal/repo"
	"github.com/LeventeLantos/zenvia-go/internal/scheduler"
	"github.com/LeventeLantos/zenvia-go/model"
	"github.com/LeventeLantos/zenvia-go/webhook"
)

type fakeRepo struct {
	// capture args
	got repo.EventFilter

	// behavior
	items []repo.StoredEvent
	err   error
}

var _ repo.EventRepository = (*fakeRepo)(nil)

func (f *fakeRepo) SaveEvent(ctx context.Context, event model.Event) error {
	return errors.New("not implemented")
}

func (f *fakeRepo) ListEvents(ctx context.Context, filter repo.EventFilter) ([]repo.StoredEvent, error) {
	f.got = filter
	return f.items, f.err
}

type fakeCreator struct {
	calls atomic.Int64
	err   error
}

func (f *fakeCreator) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	f.calls.Add(1)
	return sub, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	sched      *scheduler.Scheduler
	controller *webhook.Controller
	mux        http.Handler
}

func newTestServer(t *testing.T, r repo.EventRepository, creator webhook.SubscriptionCreator, messages *atomic.Int64) *testServer {
	t.Helper()

	controller := webhook.New(webhook.Config{
		MessageEventHandler: func(ctx context.Context, e *model.MessageEvent) error {
			if messages != nil {
				messages.Add(1)
			}
			return nil
		},
		Path:    "/zenvia",
		Client:  creator,
		URL:     "https://me.example/zenvia",
		Channel: model.SMS,
		Logger:  quietLogger(),
	})

	// Long interval so only the immediate tick happens.
	s, err := scheduler.New(time.Hour, controller.Reconcile, scheduler.WithName("reconcile"), scheduler.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	t.Cleanup(func() { s.Stop() })

	h := NewHandler(s, r, controller)
	return &testServer{sched: s, controller: controller, mux: Router(h, controller)}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

func serve(ts *testServer, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{}, nil, nil)

	rr := serve(ts, http.MethodGet, "/v1/health", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}

	body := decodeJSON(t, rr)
	if v, ok := body["ok"].(bool); !ok || !v {
		t.Fatalf("expected {ok:true}, got %v", body)
	}
	if v, ok := body["initialized"].(bool); !ok || v {
		t.Fatalf("expected initialized=false before Init, got %v", body)
	}

	if err := ts.controller.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	body = decodeJSON(t, serve(ts, http.MethodGet, "/v1/health", nil))
	if v, ok := body["initialized"].(bool); !ok || !v {
		t.Fatalf("expected initialized=true after Init, got %v", body)
	}
}

func TestReconcilerEndpoints(t *testing.T) {
	creator := &fakeCreator{}
	ts := newTestServer(t, &fakeRepo{}, creator, nil)

	// Initially should be false.
	{
		rr := serve(ts, http.MethodGet, "/v1/reconciler/status", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
		}
		body := decodeJSON(t, rr)
		if running, ok := body["running"].(bool); !ok || running {
			t.Fatalf("expected running=false, got %v", body)
		}
		if body["name"] != "reconcile" {
			t.Fatalf("expected scheduler name in status, got %v", body)
		}
	}

	// Start
	{
		rr := serve(ts, http.MethodPost, "/v1/reconciler/start", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
		}
		body := decodeJSON(t, rr)
		if running, ok := body["running"].(bool); !ok || !running {
			t.Fatalf("expected running=true after start, got %v", body)
		}
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for creator.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected the immediate tick to reconcile")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Stop
	{
		rr := serve(ts, http.MethodPost, "/v1/reconciler/stop", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
		}
		body := decodeJSON(t, rr)
		if running, ok := body["running"].(bool); !ok || running {
			t.Fatalf("expected running=false after stop, got %v", body)
		}
	}
}

func TestReconcilerEndpoints_DisabledScheduler(t *testing.T) {
	controller := webhook.New(webhook.Config{Logger: quietLogger()})
	mux := Router(NewHandler(nil, nil, controller), controller)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/reconciler/status"},
		{http.MethodPost, "/v1/reconciler/start"},
		{http.MethodPost, "/v1/reconciler/stop"},
	} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503, got %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestReconcileNow(t *testing.T) {
	creator := &fakeCreator{}
	ts := newTestServer(t, &fakeRepo{}, creator, nil)

	rr := serve(ts, http.MethodPost, "/v1/reconciler/run", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if creator.calls.Load() != 1 {
		t.Fatalf("expected one subscription call, got %d", creator.calls.Load())
	}

	creator.err = errors.New("upstream down")
	rr = serve(ts, http.MethodPost, "/v1/reconciler/run", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "upstream down") {
		t.Fatalf("expected error in body, got %q", rr.Body.String())
	}
}

func TestReconcileNow_ManagementDisabled(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{}, nil, nil)

	rr := serve(ts, http.MethodPost, "/v1/reconciler/run", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestListEvents_DefaultsAndArgs(t *testing.T) {
	fr := &fakeRepo{
		items: []repo.StoredEvent{
			{ID: "evt-1", Type: model.EventMessageStatus, MessageID: "m1", Payload: json.RawMessage(`{}`)},
		},
	}
	ts := newTestServer(t, fr, nil, nil)

	// No query params => defaults (limit=50, offset=0)
	rr := serve(ts, http.MethodGet, "/v1/events", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fr.got.Limit != 50 || fr.got.Offset != 0 || fr.got.MessageID != "" {
		t.Fatalf("expected repo called with defaults, got %+v", fr.got)
	}

	body := decodeJSON(t, rr)
	items, ok := body["items"].([]any)
	if !ok {
		t.Fatalf("expected items array, got %T %v", body["items"], body)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestListEvents_ParsesQuery(t *testing.T) {
	fr := &fakeRepo{}
	ts := newTestServer(t, fr, nil, nil)

	rr := serve(ts, http.MethodGet, "/v1/events?messageId=m1&limit=10&offset=5", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fr.got.Limit != 10 || fr.got.Offset != 5 || fr.got.MessageID != "m1" {
		t.Fatalf("unexpected filter %+v", fr.got)
	}

	body := decodeJSON(t, rr)
	if items, ok := body["items"].([]any); !ok || len(items) != 0 {
		t.Fatalf("expected empty items array, got %v", body)
	}
}

func TestListEvents_InvalidLimitOffsetFallsBackToDefaults(t *testing.T) {
	fr := &fakeRepo{}
	ts := newTestServer(t, fr, nil, nil)

	rr := serve(ts, http.MethodGet, "/v1/events?limit=abc&offset=zzz", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fr.got.Limit != 50 || fr.got.Offset != 0 {
		t.Fatalf("expected defaults limit=50 offset=0, got %+v", fr.got)
	}
}

func TestListEvents_RepoErrorReturns500(t *testing.T) {
	fr := &fakeRepo{err: errors.New("db down")}
	ts := newTestServer(t, fr, nil, nil)

	rr := serve(ts, http.MethodGet, "/v1/events", nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "db down") {
		t.Fatalf("expected error body to contain repo error, got %q", rr.Body.String())
	}
}

func TestListEvents_StoreDisabled(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)

	rr := serve(ts, http.MethodGet, "/v1/events", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestWebhookMounted(t *testing.T) {
	var messages atomic.Int64
	ts := newTestServer(t, &fakeRepo{}, nil, &messages)

	body := `{"id":"e1","type":"MESSAGE","channel":"sms","direction":"IN","message":{"id":"m1","from":"a","to":"b","contents":[]}}`
	rr := serve(ts, http.MethodPost, "/zenvia", strings.NewReader(body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if messages.Load() != 1 {
		t.Fatalf("expected webhook dispatch, got %d", messages.Load())
	}
}

func TestRouterRoot(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{}, nil, nil)

	rr := serve(ts, http.MethodGet, "/", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "zenvia-go" {
		t.Fatalf("expected body %q, got %q", "zenvia-go", got)
	}
}
