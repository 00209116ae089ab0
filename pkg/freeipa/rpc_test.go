package freeipa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

// capturedEnvelope decodes the wire form of an rpcRequest for assertions.
type capturedEnvelope struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newRPCClient returns an authenticated client backed by handler.
func newRPCClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ipa/session/json", handler)

	c, _ := newTestClient(t, mux)
	if err := c.SetVersion("2.156"); err != nil {
		t.Fatalf("setting version: %v", err)
	}
	c.authenticated = true
	c.referer = c.baseURL + "/ipa"
	return c
}

func okHandler(t *testing.T, capture *[]capturedEnvelope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env capturedEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decoding envelope: %v", err)
		}
		*capture = append(*capture, env)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"summary":"ok"},"error":null}`))
	}
}

func TestCall_MethodValidation(t *testing.T) {
	tests := []struct {
		name   string
		method string
	}{
		{"empty", ""},
		{"spaces", "dns record add"},
		{"punctuation", "dnsrecord-add!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &recordingTransport{}
			c := NewClient(
				WithHTTPClient(&http.Client{Transport: transport}),
				WithLogger(discardLogger()),
			)

			_, err := c.Call(context.Background(), tt.method, nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !IsValidation(err) {
				t.Errorf("expected ValidationError, got %T: %v", err, err)
			}
			if transport.calls != 0 {
				t.Errorf("expected zero network calls, got %d", transport.calls)
			}
		})
	}
}

func TestCall_StateChecks(t *testing.T) {
	t.Run("no hostname", func(t *testing.T) {
		c := NewClient(WithLogger(discardLogger()))
		_, err := c.Call(context.Background(), "ping", nil)
		if !IsState(err) {
			t.Errorf("expected StateError, got %T: %v", err, err)
		}
	})

	t.Run("malformed referer", func(t *testing.T) {
		c := NewClient(WithLogger(discardLogger()))
		c.referer = "not a url"
		_, err := c.Call(context.Background(), "ping", nil)
		if !IsState(err) {
			t.Errorf("expected StateError, got %T: %v", err, err)
		}
	})

	t.Run("no version", func(t *testing.T) {
		c := NewClient(WithLogger(discardLogger()))
		if err := c.SetHostname("ipa.example.com"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := c.Call(context.Background(), "ping", nil)
		if !IsState(err) {
			t.Errorf("expected StateError, got %T: %v", err, err)
		}
	})

	t.Run("not authenticated", func(t *testing.T) {
		c := NewClient(WithLogger(discardLogger()))
		if err := c.SetHostname("ipa.example.com"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.SetVersion("2.156"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := c.Call(context.Background(), "ping", nil)
		if !IsState(err) {
			t.Errorf("expected StateError, got %T: %v", err, err)
		}
	})
}

func TestCall_IDsStrictlyIncreasing(t *testing.T) {
	var envelopes []capturedEnvelope
	c := newRPCClient(t, okHandler(t, &envelopes))

	for i := 0; i < 3; i++ {
		if _, err := c.Call(context.Background(), "ping", nil); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}

	if len(envelopes) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(envelopes))
	}
	for i, env := range envelopes {
		if env.ID != uint64(i) {
			t.Errorf("envelope %d: expected id %d, got %d", i, i, env.ID)
		}
	}
}

func TestCall_EnvelopeShape(t *testing.T) {
	var envelopes []capturedEnvelope
	c := newRPCClient(t, okHandler(t, &envelopes))

	_, err := c.Call(context.Background(), "dnsrecord_add", map[string]any{
		"idnsname": "smoke",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env := envelopes[0]
	if env.Method != "dnsrecord_add" {
		t.Errorf("unexpected method: %s", env.Method)
	}
	if len(env.Params) != 2 {
		t.Fatalf("expected 2 params members, got %d", len(env.Params))
	}

	var positional []any
	if err := json.Unmarshal(env.Params[0], &positional); err != nil {
		t.Fatalf("decoding positional params: %v", err)
	}
	if len(positional) != 0 {
		t.Errorf("expected empty positional params, got %v", positional)
	}

	var named map[string]any
	if err := json.Unmarshal(env.Params[1], &named); err != nil {
		t.Fatalf("decoding named params: %v", err)
	}
	if named["version"] != "2.156" {
		t.Errorf("expected injected version 2.156, got %v", named["version"])
	}
	if named["idnsname"] != "smoke" {
		t.Errorf("expected idnsname smoke, got %v", named["idnsname"])
	}
}

func TestCall_DoesNotMutateCallerParams(t *testing.T) {
	var envelopes []capturedEnvelope
	c := newRPCClient(t, okHandler(t, &envelopes))

	params := map[string]any{"idnsname": "smoke"}
	if _, err := c.Call(context.Background(), "ping", params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := params["version"]; ok {
		t.Error("caller's params map was mutated with version")
	}
}

func TestCall_ResultRoundTrip(t *testing.T) {
	c := newRPCClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"summary":"Added DNS record"},"error":null}`))
	})

	result, err := c.Call(context.Background(), "dnsrecord_add", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if decoded["summary"] != "Added DNS record" {
		t.Errorf("unexpected result: %v", decoded)
	}
}

func TestCall_ProtocolError(t *testing.T) {
	c := newRPCClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":null,"error":{"name":"X","code":1,"message":"bad"}}`))
	})

	_, err := c.Call(context.Background(), "dnsrecord_add", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != 1 {
		t.Errorf("expected code 1, got %d", rpcErr.Code)
	}
	if rpcErr.Name != "X" {
		t.Errorf("expected name X, got %s", rpcErr.Name)
	}
	if rpcErr.Message != "bad" {
		t.Errorf("expected message bad, got %s", rpcErr.Message)
	}
	if rpcErr.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", rpcErr.Status)
	}
}

func TestCall_HTTPError(t *testing.T) {
	c := newRPCClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	})

	_, err := c.Call(context.Background(), "ping", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rpcErr.Status)
	}
}

func TestCall_RefererHeader(t *testing.T) {
	var referer string
	c := newRPCClient(t, func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{},"error":null}`))
	})

	if _, err := c.Call(context.Background(), "ping", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if referer != c.baseURL+"/ipa" {
		t.Errorf("expected referer %s/ipa, got %s", c.baseURL, referer)
	}
}

func TestPing(t *testing.T) {
	var envelopes []capturedEnvelope
	c := newRPCClient(t, okHandler(t, &envelopes))

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envelopes) != 1 || envelopes[0].Method != "ping" {
		t.Errorf("expected one ping call, got %v", envelopes)
	}
}
