package pricing

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRateClient_FetchRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rate": 28.4}`))
	}))
	defer srv.Close()

	client := NewRateClient(srv.URL, 5*time.Second)
	rate, err := client.FetchRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 28.4, rate)
}

func TestRateClient_FetchRate_BadResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: ""},
		{name: "zero rate", status: http.StatusOK, body: `{"rate": 0}`},
		{name: "garbage body", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewRateClient(srv.URL, 5*time.Second)
			_, err := client.FetchRate(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestRefresh_KeepsLastKnownRateOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	holder := NewRateHolder(26.5, nil, newNoopLogger())
	client := NewRateClient(srv.URL, 5*time.Second)

	Refresh(context.Background(), client, holder, newNoopLogger())
	assert.Equal(t, 26.5, holder.CurrentRate())
}

func TestRefresh_UpdatesHolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rate": 31.0}`))
	}))
	defer srv.Close()

	holder := NewRateHolder(26.5, nil, newNoopLogger())
	client := NewRateClient(srv.URL, 5*time.Second)

	Refresh(context.Background(), client, holder, newNoopLogger())
	assert.Equal(t, 31.0, holder.CurrentRate())
}
