package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/praisemwanza53/genset-monitoring/alerting"
	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/models"
)

type stubClient struct {
	text  string
	err   error
	calls chan models.SensorReading
}

func (s *stubClient) Advise(_ context.Context, r models.SensorReading, _ []alerting.Alert) (string, error) {
	s.calls <- r
	return s.text, s.err
}

func TestDisabledServiceIgnoresSubmit(t *testing.T) {
	s := NewService(nil, time.Second)
	if s.Enabled() {
		t.Fatal("service without client reported enabled")
	}
	if s.Submit(models.SensorReading{Timestamp: "2025-07-15 08:33:42"}, nil) {
		t.Fatal("disabled service accepted a reading")
	}
	if _, ok := s.Latest(); ok {
		t.Fatal("disabled service has advice")
	}
}

func TestServiceStoresLatestAdvice(t *testing.T) {
	client := &stubClient{text: "Refuel soon.", calls: make(chan models.SensorReading, 1)}
	s := NewService(client, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	r := models.SensorReading{Timestamp: "2025-07-15 08:33:42", FuelLevel: 12, Temperature: 40}
	if !s.Submit(r, nil) {
		t.Fatal("submit rejected on idle service")
	}

	select {
	case got := <-client.calls:
		if got != r {
			t.Fatalf("client saw %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client was not called")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if advice, ok := s.Latest(); ok {
			if advice.Text != "Refuel soon." || advice.ReadingTimestamp != r.Timestamp {
				t.Fatalf("advice = %+v", advice)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("advice never recorded")
}

func TestServiceKeepsPreviousAdviceOnError(t *testing.T) {
	client := &stubClient{err: errors.New("boom"), calls: make(chan models.SensorReading, 1)}
	s := NewService(client, time.Second)
	s.latest = &Advice{Text: "old"}

	s.advise(context.Background(), job{reading: models.SensorReading{Timestamp: "x"}})
	<-client.calls

	advice, ok := s.Latest()
	if !ok || advice.Text != "old" {
		t.Fatalf("advice = %+v, %v", advice, ok)
	}
}

func TestSubmitNeverBlocks(t *testing.T) {
	client := &stubClient{calls: make(chan models.SensorReading, 1)}
	s := NewService(client, time.Second)

	// no worker running: first submit fills the queue, the rest are dropped
	if !s.Submit(models.SensorReading{Timestamp: "a"}, nil) {
		t.Fatal("first submit rejected")
	}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Submit(models.SensorReading{Timestamp: "b"}, nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked with a full queue")
	}
}

func TestNewGroqClientRequiresKey(t *testing.T) {
	if c := NewGroqClient(config.AdvisoryConfig{}); c != nil {
		t.Fatal("expected nil client without API key")
	}
}

func TestGroqClientAdvise(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		if !strings.Contains(req.Messages[1].Content, "Low fuel") {
			t.Errorf("user prompt missing alert: %q", req.Messages[1].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"  Refuel within the hour.  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewGroqClient(config.AdvisoryConfig{APIKey: "test-key", Model: "test-model", Endpoint: srv.URL, Timeout: 5})
	alerts := []alerting.Alert{{Kind: alerting.KindFuelLow, Message: "Low fuel: level is 12.0%"}}
	text, err := c.Advise(context.Background(), models.SensorReading{Timestamp: "2025-07-15 08:33:42", FuelLevel: 12}, alerts)
	if err != nil {
		t.Fatal(err)
	}
	if text != "Refuel within the hour." {
		t.Fatalf("text = %q", text)
	}
}

func TestGroqClientReportsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	c := NewGroqClient(config.AdvisoryConfig{APIKey: "bad", Endpoint: srv.URL, Timeout: 5})
	_, err := c.Advise(context.Background(), models.SensorReading{}, nil)
	if err == nil || !strings.Contains(err.Error(), "invalid api key") || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v", err)
	}
}

func TestGroqClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c2","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	c := NewGroqClient(config.AdvisoryConfig{APIKey: "k", Endpoint: srv.URL + "/chat/completions", Timeout: 5})
	if _, err := c.Advise(context.Background(), models.SensorReading{}, nil); !errors.Is(err, ErrNoAdvice) {
		t.Fatalf("err = %v, want ErrNoAdvice", err)
	}
}

func TestGroqClientHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewGroqClient(config.AdvisoryConfig{APIKey: "k", Endpoint: srv.URL, Timeout: 30})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Advise(ctx, models.SensorReading{}, nil); err == nil {
		t.Fatal("expected error after context deadline")
	}
}
