package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"checkout/internal/core/errs"
)

func testConfig(endpoint string) Config {
	cfg := DefaultConfig(endpoint)
	cfg.RetryBackoff = 5 * time.Millisecond
	cfg.Timeout = 2 * time.Second
	cfg.LogErrors = false
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		violations int
	}{
		{"valid", DefaultConfig("http://api.local"), 0},
		{"missing endpoint", Config{Timeout: time.Second}, 1},
		{"relative endpoint", Config{BaseEndpoint: "/api", Timeout: time.Second}, 1},
		{"zero timeout", Config{BaseEndpoint: "http://api.local"}, 1},
		{"negative retries and backoff", Config{BaseEndpoint: "http://api.local", Timeout: time.Second, RetryAttempts: -1, RetryBackoff: -time.Second}, 2},
	}

	for _, tt := range tests {
		if got := len(tt.cfg.Validate()); got != tt.violations {
			t.Errorf("%s: got %d violations (%v), want %d", tt.name, got, tt.cfg.Validate(), tt.violations)
		}
	}
}

func TestNew_RefusesInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

// A transient transport error twice then success must yield exactly three
// attempts with retryAttempts = 2.
func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Do(context.Background(), http.MethodPost, "/sales", map[string]string{"x": "y"})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("status = %d", resp.Status)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := New(testConfig(srv.URL))
	_, err := c.Do(context.Background(), http.MethodGet, "/stock", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errs.IsKind(err, errs.KindNetwork) || !errs.IsRetryable(err) {
		t.Errorf("final error should stay a retryable network classification, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (1 + 2 retries)", got)
	}
}

// Validation, permission and stock classifications are definitionally
// non-retryable: one attempt, no backoff, regardless of remaining attempts.
func TestDo_NonRetryableClassifications(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   errs.Kind
	}{
		{"permission", http.StatusForbidden, ``, errs.KindPermission},
		{"validation", http.StatusUnprocessableEntity, `{"fields":{"payment_method":"unknown"}}`, errs.KindValidation},
		{"stock conflict", http.StatusConflict, `{"shortfalls":[{"item_id":"A","requested":5,"available":3}]}`, errs.KindStockInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := New(testConfig(srv.URL))
			_, err := c.Do(context.Background(), http.MethodPost, "/sales", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errs.IsKind(err, tt.kind) {
				t.Errorf("kind = %v, want %v", errs.From(err).Kind, tt.kind)
			}
			if errs.IsRetryable(err) {
				t.Error("must not be retryable")
			}
			if got := calls.Load(); got != 1 {
				t.Errorf("attempts = %d, want 1", got)
			}
		})
	}
}

func TestDo_ConflictCarriesShortfalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"shortfalls":[{"item_id":"A","name":"Widget","requested":5,"available":3}]}`))
	}))
	defer srv.Close()

	c, _ := New(testConfig(srv.URL))
	_, err := c.Do(context.Background(), http.MethodPost, "/sales", nil)

	ce := errs.From(err)
	if len(ce.Shortfalls) != 1 || ce.Shortfalls[0].Available != 3 {
		t.Errorf("shortfall details lost: %+v", ce.Shortfalls)
	}
}

// Cancelling during the backoff wait abandons the request and reports a
// network/abort classification.
func TestDo_CancelledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryBackoff = 500 * time.Millisecond
	c, _ := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c.Do(ctx, http.MethodPost, "/sales", nil)
	ce := errs.From(err)
	if ce.Kind != errs.KindNetwork || ce.NetworkType != errs.NetworkAbort {
		t.Errorf("expected network/abort, got %v/%v", ce.Kind, ce.NetworkType)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (retry suppressed)", got)
	}
}

// A deadline expiring during the backoff wait is a timeout, not an abort.
func TestDo_DeadlineExpiresDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryBackoff = 500 * time.Millisecond
	c, _ := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, http.MethodPost, "/sales", nil)
	ce := errs.From(err)
	if ce.Kind != errs.KindNetwork || ce.NetworkType != errs.NetworkTimeout {
		t.Errorf("expected network/timeout, got %v/%v", ce.Kind, ce.NetworkType)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (retry suppressed)", got)
	}
}

func TestPresets(t *testing.T) {
	diag, err := NewDiagnostic("http://api.local")
	if err != nil {
		t.Fatal(err)
	}
	quiet, err := NewQuiet("http://api.local")
	if err != nil {
		t.Fatal(err)
	}

	dc, qc := diag.Config(), quiet.Config()
	if !dc.LogRequests || !dc.LogResponses || !dc.LogErrors || !dc.Debug {
		t.Errorf("diagnostic preset should enable all logging: %+v", dc)
	}
	if qc.LogRequests || qc.LogResponses || qc.Debug || !qc.LogErrors {
		t.Errorf("quiet preset should log errors only: %+v", qc)
	}

	// Presets differ in observability only, never in retry semantics.
	if dc.RetryAttempts != qc.RetryAttempts || dc.RetryBackoff != qc.RetryBackoff || dc.Timeout != qc.Timeout {
		t.Errorf("presets must share retry semantics: %+v vs %+v", dc, qc)
	}
}

func TestTestConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	c, _ := New(testConfig(srv.URL))
	report := c.TestConnectivity(context.Background())
	if !report.Success || report.Status != http.StatusOK {
		t.Errorf("expected healthy report, got %+v", report)
	}

	srv.Close()
	report = c.TestConnectivity(context.Background())
	if report.Success || report.Error == "" {
		t.Errorf("expected failure report after shutdown, got %+v", report)
	}
}
