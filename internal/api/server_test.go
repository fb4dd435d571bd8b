package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/unenki/internal/api"
	"github.com/ajitpratap0/unenki/pkg/ansiencode"
)

// newTestServer creates a test HTTP server backed by the default encoder.
func newTestServer(t *testing.T, authToken string, defaults *ansiencode.Options) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := api.NewServer(ansiencode.New(nil), defaults, logger, authToken, 1024)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func doRequest(t *testing.T, method, url string, body io.Reader, token string) *http.Response {
	t.Helper()
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeMap(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAPI_Healthz(t *testing.T) {
	ts := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeMap(t, resp)["status"])
}

func TestAPI_Encode(t *testing.T) {
	ts := newTestServer(t, "", nil)

	body := jsonBody(t, map[string]any{
		"text": "\x1b[32m\"Test\"\x1b[39m",
		"keep": []string{`"`},
	})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/encode", body, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `\u001b[32m"Test"\u001b[39m`, decodeMap(t, resp)["result"])
}

func TestAPI_EncodeForce(t *testing.T) {
	ts := newTestServer(t, "", nil)

	body := jsonBody(t, map[string]any{
		"text":  "a\nb",
		"force": map[string]string{"\n": `\n`, "b": "B"},
	})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/encode", body, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `a\nB`, decodeMap(t, resp)["result"])
}

func TestAPI_EncodeMergesDefaults(t *testing.T) {
	ts := newTestServer(t, "", &ansiencode.Options{
		Keep:  []rune{'\''},
		Force: map[rune]string{'b': "B"},
	})

	body := jsonBody(t, map[string]any{
		"text":  "'a' & b",
		"force": map[string]string{"a": "A"},
	})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/encode", body, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `'A' \u0026 B`, decodeMap(t, resp)["result"])
}

func TestAPI_EncodeRejectsMultiCharacterKeep(t *testing.T) {
	ts := newTestServer(t, "", nil)

	body := jsonBody(t, map[string]any{"text": "x", "keep": []string{"ab"}})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/encode", body, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeMap(t, resp)["error"], "keep")
}

func TestAPI_NonStringText(t *testing.T) {
	ts := newTestServer(t, "", nil)

	endpoints := map[string]string{
		"/v1/encode":        "ansiencode.Encode: you must pass a string",
		"/v1/strip":         "ansiencode.Strip: you must pass a string",
		"/v1/strip-encoded": "ansiencode.StripEncoded: you must pass a string",
	}
	bodies := map[string]string{
		"missing": `{}`,
		"null":    `{"text": null}`,
		"number":  `{"text": 1}`,
		"boolean": `{"text": true}`,
		"object":  `{"text": {}}`,
		"array":   `{"text": ["a"]}`,
	}
	for path, msg := range endpoints {
		for name, body := range bodies {
			t.Run(path+"/"+name, func(t *testing.T) {
				resp := doRequest(t, http.MethodPost, ts.URL+path, strings.NewReader(body), "")
				defer resp.Body.Close()

				assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
				assert.Equal(t, msg, decodeMap(t, resp)["error"])
			})
		}
	}
}

func TestAPI_EmptyStringSucceeds(t *testing.T) {
	ts := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/strip", strings.NewReader(`{"text": ""}`), "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", decodeMap(t, resp)["result"])
}

func TestAPI_Strip(t *testing.T) {
	ts := newTestServer(t, "", nil)

	body := jsonBody(t, map[string]any{"text": "\x1b[32mTest\x1b[39m"})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/strip", body, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Test", decodeMap(t, resp)["result"])
}

func TestAPI_StripEncoded(t *testing.T) {
	ts := newTestServer(t, "", nil)

	body := jsonBody(t, map[string]any{"text": `\u001b[32mTest\u001b[39m`})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/strip-encoded", body, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Test", decodeMap(t, resp)["result"])
}

func TestAPI_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/encode", strings.NewReader("{not json"), "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request body", decodeMap(t, resp)["error"])
}

func TestAPI_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, "", nil)

	body := jsonBody(t, map[string]any{"text": strings.Repeat("x", 4096)})
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/encode", body, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAPI_Auth(t *testing.T) {
	ts := newTestServer(t, "s3cret", nil)

	body := `{"text": "x"}`
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/encode", strings.NewReader(body), "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, ts.URL+"/v1/encode", strings.NewReader(body), "wrong")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, ts.URL+"/v1/encode", strings.NewReader(body), "s3cret")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Health check stays open.
	resp = doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_RequestID(t *testing.T) {
	ts := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "")
	resp.Body.Close()
	_, err := uuid.Parse(resp.Header.Get(api.RequestIDHeader))
	assert.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL+"/healthz", http.NoBody)
	require.NoError(t, err)
	req.Header.Set(api.RequestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(api.RequestIDHeader))
}

func TestAPI_DebugVars(t *testing.T) {
	ts := newTestServer(t, "", nil)

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/encode", strings.NewReader(`{"text": "x"}`), "")
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, ts.URL+"/debug/vars", nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var vars map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vars))
	assert.Contains(t, vars, "unenki_encode_total")
	assert.GreaterOrEqual(t, vars["unenki_encode_total"], float64(1))
}
