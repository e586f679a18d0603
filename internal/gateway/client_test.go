package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightmoyo/wabot-billing/internal/models"
)

func TestClient_Send(t *testing.T) {
	var got models.OutgoingMessage
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "gw-token", 5*time.Second)
	err := client.Send(context.Background(), models.OutgoingMessage{
		RecipientID: "263771234567",
		Text:        "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer gw-token", gotAuth)
	assert.Equal(t, "263771234567", got.RecipientID)
	assert.Equal(t, "hello", got.Text)
}

func TestClient_Send_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "gw-token", 5*time.Second)
	err := client.Send(context.Background(), models.OutgoingMessage{RecipientID: "x"})
	assert.Error(t, err)
}
