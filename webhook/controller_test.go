package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/LeventeLantos/zenvia-go/client"
	"github.com/LeventeLantos/zenvia-go/model"
)

type fakeCreator struct {
	mu    sync.Mutex
	subs  []model.Subscription
	errFn func(sub model.Subscription) error
}

var _ SubscriptionCreator = (*fakeCreator)(nil)

func (f *fakeCreator) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
	if f.errFn != nil {
		if err := f.errFn(sub); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

func (f *fakeCreator) calls() []model.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Subscription(nil), f.subs...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func onMessageNoop(context.Context, *model.MessageEvent) error             { return nil }
func onMessageStatusNoop(context.Context, *model.MessageStatusEvent) error { return nil }

func httpStatusError(status int) error {
	return &client.UnsuccessfulRequestError{Method: http.MethodPost, URL: "https://api/v1/subscriptions", StatusCode: status}
}

func TestNew_NormalizesPath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":        "/",
		"/":       "/",
		"hooks":   "/hooks",
		"/zenvia": "/zenvia",
	}
	for in, want := range cases {
		if got := New(Config{Path: in, Logger: quietLogger()}).Path(); got != want {
			t.Fatalf("path %q normalized to %q, want %q", in, got, want)
		}
	}
}

func TestInit_NoOpWithoutManagementInputs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  func(f *fakeCreator) Config
	}{
		{"no client", func(f *fakeCreator) Config {
			return Config{MessageEventHandler: onMessageNoop, URL: "https://me", Channel: model.SMS}
		}},
		{"nil client pointer", func(f *fakeCreator) Config {
			var zc *client.Client
			return Config{MessageEventHandler: onMessageNoop, Client: zc, URL: "https://me", Channel: model.SMS}
		}},
		{"nil fake pointer", func(f *fakeCreator) Config {
			var nf *fakeCreator
			return Config{MessageEventHandler: onMessageNoop, Client: nf, URL: "https://me", Channel: model.SMS}
		}},
		{"no url", func(f *fakeCreator) Config {
			return Config{MessageEventHandler: onMessageNoop, Client: f, Channel: model.SMS}
		}},
		{"no channel", func(f *fakeCreator) Config {
			return Config{MessageEventHandler: onMessageNoop, Client: f, URL: "https://me"}
		}},
		{"no handlers", func(f *fakeCreator) Config {
			return Config{Client: f, URL: "https://me", Channel: model.SMS}
		}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := &fakeCreator{}
			cfg := tc.cfg(f)
			cfg.Logger = quietLogger()
			c := New(cfg)

			if c.Initialized() {
				t.Fatalf("expected uninitialized controller before Init")
			}
			if err := c.Init(context.Background()); err != nil {
				t.Fatalf("Init() error: %v", err)
			}
			if !c.Initialized() {
				t.Fatalf("expected initialized controller after Init")
			}
			if n := len(f.calls()); n != 0 {
				t.Fatalf("expected no subscription calls, got %d", n)
			}
		})
	}
}

func TestManages_NilClientPointerIsAbsent(t *testing.T) {
	t.Parallel()

	var zc *client.Client
	c := New(Config{
		MessageEventHandler: onMessageNoop,
		Client:              zc,
		URL:                 "https://me",
		Channel:             model.SMS,
		Logger:              quietLogger(),
	})
	if c.Manages() {
		t.Fatalf("expected a nil *client.Client to disable management")
	}
}

func TestInit_CreatesSubscriptionsForRegisteredHandlers(t *testing.T) {
	t.Parallel()

	f := &fakeCreator{}
	c := New(Config{
		MessageEventHandler:       onMessageNoop,
		MessageStatusEventHandler: onMessageStatusNoop,
		Client:                    f,
		URL:                       "https://me.example/hook",
		Channel:                   model.WhatsApp,
		Logger:                    quietLogger(),
	})

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	subs := f.calls()
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(subs))
	}

	msg, ok := subs[0].(*model.MessageSubscription)
	if !ok {
		t.Fatalf("expected first to be *MessageSubscription, got %T", subs[0])
	}
	if msg.Criteria.Channel != model.WhatsApp || msg.Criteria.Direction != model.DirectionIn {
		t.Fatalf("unexpected message criteria %#v", msg.Criteria)
	}
	if msg.Webhook.URL != "https://me.example/hook" || len(msg.Webhook.Headers) != 0 {
		t.Fatalf("unexpected webhook %#v", msg.Webhook)
	}

	status, ok := subs[1].(*model.MessageStatusSubscription)
	if !ok {
		t.Fatalf("expected second to be *MessageStatusSubscription, got %T", subs[1])
	}
	if status.Criteria.Channel != model.WhatsApp {
		t.Fatalf("unexpected status criteria %#v", status.Criteria)
	}
}

func TestInit_OnlyStatusHandler(t *testing.T) {
	t.Parallel()

	f := &fakeCreator{}
	c := New(Config{
		MessageStatusEventHandler: onMessageStatusNoop,
		Client:                    f,
		URL:                       "https://me",
		Channel:                   model.SMS,
		Logger:                    quietLogger(),
	})

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	subs := f.calls()
	if len(subs) != 1 || subs[0].EventType() != model.EventMessageStatus {
		t.Fatalf("expected a single status subscription, got %#v", subs)
	}
}

func TestInit_ConflictIsTolerated(t *testing.T) {
	t.Parallel()

	f := &fakeCreator{errFn: func(model.Subscription) error { return httpStatusError(http.StatusConflict) }}
	c := New(Config{
		MessageEventHandler:       onMessageNoop,
		MessageStatusEventHandler: onMessageStatusNoop,
		Client:                    f,
		URL:                       "https://me",
		Channel:                   model.SMS,
		Logger:                    quietLogger(),
	})

	for i := 0; i < 2; i++ {
		if err := c.Init(context.Background()); err != nil {
			t.Fatalf("Init() run %d error: %v", i, err)
		}
	}
	if n := len(f.calls()); n != 4 {
		t.Fatalf("expected both subscriptions attempted on each run, got %d calls", n)
	}
}

func TestInit_ConflictOnMessageStillCreatesStatus(t *testing.T) {
	t.Parallel()

	f := &fakeCreator{errFn: func(sub model.Subscription) error {
		if sub.EventType() == model.EventMessage {
			return httpStatusError(http.StatusConflict)
		}
		return nil
	}}
	c := New(Config{
		MessageEventHandler:       onMessageNoop,
		MessageStatusEventHandler: onMessageStatusNoop,
		Client:                    f,
		URL:                       "https://me",
		Channel:                   model.SMS,
		Logger:                    quietLogger(),
	})

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	subs := f.calls()
	if len(subs) != 2 || subs[1].EventType() != model.EventMessageStatus {
		t.Fatalf("expected status subscription attempted after conflict, got %#v", subs)
	}
}

func TestInit_OtherFailuresAbort(t *testing.T) {
	t.Parallel()

	f := &fakeCreator{errFn: func(model.Subscription) error { return httpStatusError(http.StatusInternalServerError) }}
	c := New(Config{
		MessageEventHandler:       onMessageNoop,
		MessageStatusEventHandler: onMessageStatusNoop,
		Client:                    f,
		URL:                       "https://me",
		Channel:                   model.SMS,
		Logger:                    quietLogger(),
	})

	err := c.Init(context.Background())
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if code, ok := client.StatusCode(err); !ok || code != http.StatusInternalServerError {
		t.Fatalf("expected 500 to propagate, got %v", err)
	}
	if n := len(f.calls()); n != 1 {
		t.Fatalf("expected init to stop after the first failure, got %d calls", n)
	}
	if !c.Initialized() {
		t.Fatalf("expected controller to be initialized even after a failed reconcile")
	}
}

func TestInit_TransportFailureAborts(t *testing.T) {
	t.Parallel()

	boom := &client.TransportError{Kind: client.ErrConnectionFailed, Method: http.MethodPost, URL: "x", Err: errors.New("refused")}
	f := &fakeCreator{errFn: func(sub model.Subscription) error {
		if sub.EventType() == model.EventMessageStatus {
			return boom
		}
		return nil
	}}
	c := New(Config{
		MessageEventHandler:       onMessageNoop,
		MessageStatusEventHandler: onMessageStatusNoop,
		Client:                    f,
		URL:                       "https://me",
		Channel:                   model.SMS,
		Logger:                    quietLogger(),
	})

	if err := c.Init(context.Background()); !errors.Is(err, client.ErrConnectionFailed) {
		t.Fatalf("expected connection failure, got %v", err)
	}
}

func TestInit_AgainstRealClient(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		posts int
		seen  = map[string]bool{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/subscriptions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		posts++
		if seen[string(body)] {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"ALREADY_EXISTS","message":"exists"}`))
			return
		}
		seen[string(body)] = true
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	api, err := client.New(client.Config{APIToken: "t", BaseURL: srv.URL, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("client.New() error: %v", err)
	}
	defer api.Close()

	c := New(Config{
		MessageEventHandler:       onMessageNoop,
		MessageStatusEventHandler: onMessageStatusNoop,
		Client:                    api,
		URL:                       "https://me",
		Channel:                   model.Facebook,
		Logger:                    quietLogger(),
	})

	for i := 0; i < 2; i++ {
		if err := c.Init(context.Background()); err != nil {
			t.Fatalf("Init() run %d error: %v", i, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if posts != 4 || len(seen) != 2 {
		t.Fatalf("expected 4 posts for 2 distinct subscriptions, got posts=%d distinct=%d", posts, len(seen))
	}
}

func TestDispatch_RoutesByType(t *testing.T) {
	t.Parallel()

	var gotMessage, gotStatus string
	c := New(Config{
		MessageEventHandler: func(ctx context.Context, e *model.MessageEvent) error {
			gotMessage = e.Message.ID
			return nil
		},
		MessageStatusEventHandler: func(ctx context.Context, e *model.MessageStatusEvent) error {
			gotStatus = e.MessageID
			return nil
		},
		Logger: quietLogger(),
	})

	c.Dispatch(context.Background(), &model.MessageEvent{Message: model.Message{ID: "m1"}})
	c.Dispatch(context.Background(), &model.MessageStatusEvent{MessageID: "m2"})

	if gotMessage != "m1" || gotStatus != "m2" {
		t.Fatalf("unexpected dispatch results message=%q status=%q", gotMessage, gotStatus)
	}
}

func TestDispatch_SwallowsHandlerFailures(t *testing.T) {
	t.Parallel()

	c := New(Config{
		MessageEventHandler: func(ctx context.Context, e *model.MessageEvent) error {
			return errors.New("handler broke")
		},
		MessageStatusEventHandler: func(ctx context.Context, e *model.MessageStatusEvent) error {
			panic("boom")
		},
		Logger: quietLogger(),
	})

	c.Dispatch(context.Background(), &model.MessageEvent{})
	c.Dispatch(context.Background(), &model.MessageStatusEvent{})
}

func TestDispatch_MissingHandlerIsIgnored(t *testing.T) {
	t.Parallel()

	c := New(Config{Logger: quietLogger()})
	c.Dispatch(context.Background(), &model.MessageEvent{})
	c.Dispatch(context.Background(), &model.MessageStatusEvent{})
}
