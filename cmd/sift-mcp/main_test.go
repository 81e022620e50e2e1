package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/sift/internal/app"
	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
	"github.com/bobmcallan/sift/internal/server"
)

type fixedProvider struct{}

func (fixedProvider) Name() string { return "fixed" }

func (fixedProvider) FetchSeries(_ context.Context, symbol string, period models.Period) (*models.MarketSeries, error) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := &models.MarketSeries{Symbol: symbol, Source: "fixed", Period: period}
	for i := 0; i < 40; i++ {
		c := 20 + float64(i)/2
		s.Bars = append(s.Bars, models.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 500})
	}
	return s, nil
}

func (fixedProvider) FetchFundamentals(_ context.Context, symbol string) (*models.FundamentalInfo, error) {
	return &models.FundamentalInfo{Symbol: symbol, Name: symbol + " Inc"}, nil
}

func newSiftServer(t *testing.T) *httptest.Server {
	t.Helper()

	config := common.NewDefaultConfig()
	config.LLM.Provider = ""

	a, err := app.New(config, common.NewSilentLogger(), app.WithProviders(fixedProvider{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	ts := httptest.NewServer(server.NewServer(a).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func runLines(t *testing.T, p *StdioProxy, lines ...string) []map[string]interface{} {
	t.Helper()

	var out bytes.Buffer
	require.NoError(t, p.RunWithIO(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out))

	var msgs []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		msgs = append(msgs, m)
	}
	return msgs
}

func TestStdioProxy_AgainstSiftServer(t *testing.T) {
	ts := newSiftServer(t)
	p := NewStdioProxy(ts.URL + "/")

	msgs := runLines(t, p,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"resolve_symbol","arguments":{"query":"Tesla Inc"}}}`,
	)

	require.Len(t, msgs, 2)
	assert.EqualValues(t, 1, msgs[0]["id"])
	assert.Contains(t, msgs[0], "result")

	assert.EqualValues(t, 2, msgs[1]["id"])
	raw, err := json.Marshal(msgs[1]["result"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "TSLA")
}

func TestStdioProxy_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer ts.Close()

	msgs := runLines(t, NewStdioProxy(ts.URL), `{"jsonrpc":"2.0","id":"abc","method":"tools/list"}`)

	require.Len(t, msgs, 1)
	assert.Equal(t, "abc", msgs[0]["id"])
	errObj, ok := msgs[0]["error"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, -32000, errObj["code"])
	assert.Contains(t, errObj["message"], "502")
}

func TestStdioProxy_ServerUnavailable(t *testing.T) {
	msgs := runLines(t, NewStdioProxy("http://127.0.0.1:1"),
		`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	)

	require.Len(t, msgs, 1)
	assert.EqualValues(t, 7, msgs[0]["id"])
	assert.Contains(t, msgs[0], "error")
}

func TestStdioProxy_EventStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mcp", r.URL.Path)
		assert.Contains(t, r.Header.Get("Accept"), "text/event-stream")
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"id":3`)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\"}\n\n")
		io.WriteString(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":3,\"result\":{}}\n\n")
	}))
	defer ts.Close()

	msgs := runLines(t, NewStdioProxy(ts.URL), `{"jsonrpc":"2.0","id":3,"method":"ping"}`)

	require.Len(t, msgs, 1)
	assert.EqualValues(t, 3, msgs[0]["id"])
	assert.Contains(t, msgs[0], "result")
}

func TestLastEventData(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", ""},
		{"single", "data: {\"a\":1}\n\n", `{"a":1}`},
		{"no trailing blank", "data: {\"a\":1}", `{"a":1}`},
		{"crlf", "event: message\r\ndata: {\"b\":2}\r\n\r\n", `{"b":2}`},
		{"last wins", "data: 1\n\ndata: 2\n\n", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(lastEventData([]byte(tt.body))))
		})
	}
}

func TestExtractID(t *testing.T) {
	assert.Equal(t, "5", string(extractID([]byte(`{"id":5}`))))
	assert.Equal(t, `"x"`, string(extractID([]byte(`{"id":"x"}`))))
	assert.Equal(t, "null", string(extractID([]byte(`{"method":"ping"}`))))
	assert.Equal(t, "null", string(extractID([]byte(`not json`))))
}

func TestIsNotification(t *testing.T) {
	assert.True(t, isNotification([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	assert.False(t, isNotification([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))
	assert.False(t, isNotification([]byte(`garbage`)))
}
