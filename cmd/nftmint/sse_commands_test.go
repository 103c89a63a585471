package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mint3 = `{"contract_address":"0x1234","token_id":3,"minter":"0xaaa","counter":3,"published_at":"2026-10-17T12:00:00Z"}`
	mint7 = `{"contract_address":"0x1234","token_id":7,"minter":"0xbbb","counter":7,"published_at":"2026-10-17T12:00:05Z"}`
)

func TestMintFilter(t *testing.T) {
	tests := []struct {
		name    string
		filters []string
		data    string
		want    bool
		wantErr bool
	}{
		{name: "no filters matches", data: mint3, want: true},
		{name: "truthy", filters: []string{".token_id > 5"}, data: mint7, want: true},
		{name: "falsy", filters: []string{".token_id > 5"}, data: mint3, want: false},
		{name: "all must hold", filters: []string{".token_id > 5", `.minter == "0xaaa"`}, data: mint7, want: false},
		{name: "null is falsy", filters: []string{".missing"}, data: mint7, want: false},
		{name: "string is truthy", filters: []string{".minter"}, data: mint7, want: true},
		{name: "no output", filters: []string{"empty"}, data: mint7, want: false},
		{name: "runtime error", filters: []string{".minter + 1"}, data: mint7, wantErr: true},
		{name: "bad json", data: "{", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := compileFilters(tt.filters)
			require.NoError(t, err)
			got, _, err := f.match([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileFilters_Invalid(t *testing.T) {
	_, err := compileFilters([]string{".token_id >"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func sseServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/mints", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: connected\ndata: {\"stream\":\"MINTS\"}\n\n"))
		for _, ev := range events {
			w.Write([]byte("event: mint\ndata: " + ev + "\n\n"))
		}
	}))
}

func TestStreamCommand_JQFilter(t *testing.T) {
	server := sseServer(t, mint3, mint7)
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "--json", "sse", "stream", "--jq", ".token_id > 5")
	require.NoError(t, err)
	assert.Equal(t, mint7+"\n", out)
}

func TestStreamCommand_Count(t *testing.T) {
	server := sseServer(t, mint3, mint7)
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "sse", "stream", "--count", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Token:      #3")
	assert.False(t, strings.Contains(out, "#7"))
}

func TestStreamCommand_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n"))
	}))
	defer server.Close()

	_, err := runApp(t, "--server-url", server.URL, "sse", "stream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error: failed to subscribe")
}
