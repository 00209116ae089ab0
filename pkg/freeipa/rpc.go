package freeipa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"gitlab.bluewillows.net/root/ipadns/internal/metrics"
)

var methodRe = regexp.MustCompile(`^\w+$`)

// rpcRequest is the JSON-RPC envelope FreeIPA expects: positional arguments
// first (always empty here), then the named-argument mapping. Named
// parameters are a map, so encoding/json emits them with sorted keys and
// payloads stay diffable across runs.
type rpcRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params [2]any `json:"params"`
}

// rpcResponse is the JSON-RPC response envelope. Exactly one of Result and
// Error is populated by the server.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call issues a JSON-RPC request to the session endpoint and returns the raw
// result member. The configured API version is injected into the named
// parameters; the caller's map is not mutated. A populated error member or a
// non-200 HTTP status yields an RPCError.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	if method == "" {
		return nil, errMissing("method")
	}
	if !methodRe.MatchString(method) {
		return nil, &ValidationError{
			Field:   "method",
			Message: fmt.Sprintf("%q is not a word-like method name", method),
		}
	}
	if err := c.checkCallState(); err != nil {
		return nil, err
	}

	named := make(map[string]any, len(params)+1)
	for k, v := range params {
		named[k] = v
	}
	named["version"] = c.apiVersion

	envelope := rpcRequest{
		ID:     c.nextID.Add(1) - 1,
		Method: method,
		Params: [2]any{[]any{}, named},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshaling rpc request: %w", err)
	}

	c.logger.Debug("rpc request",
		slog.Uint64("id", envelope.ID),
		slog.String("method", method),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+rpcPath,
		bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating rpc request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", c.referer)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveRPC(method, time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("executing rpc request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading rpc response: %w", err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			metrics.RecordRPCError(method)
			return nil, &RPCError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decoding rpc response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		rpcErr := decoded.Error
		if rpcErr == nil {
			rpcErr = &RPCError{}
		}
		rpcErr.Status = resp.StatusCode
		metrics.RecordRPCError(method)

		c.logger.Debug("rpc error",
			slog.Uint64("id", envelope.ID),
			slog.String("method", method),
			slog.Int("status", resp.StatusCode),
			slog.String("name", rpcErr.Name),
			slog.Int("code", rpcErr.Code),
		)

		return nil, rpcErr
	}

	return decoded.Result, nil
}

// checkCallState enforces the linear session lifecycle before any RPC I/O.
func (c *Client) checkCallState() error {
	if c.referer == "" {
		return &StateError{Message: "hostname must be configured before rpc calls"}
	}
	u, err := url.Parse(c.referer)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return &StateError{Message: fmt.Sprintf("referer %q is not a well-formed http(s) URL", c.referer)}
	}
	if c.apiVersion == "" {
		return &StateError{Message: "api version must be configured before rpc calls"}
	}
	if !c.authenticated {
		return &StateError{Message: "login must succeed before rpc calls"}
	}
	return nil
}
