package forceactivate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brightmoyo/wabot-billing/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ForceActivate(ctx context.Context, phone, planKey string) (models.UserAccount, error) {
	args := m.Called(ctx, phone, planKey)
	return args.Get(0).(models.UserAccount), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestForceActivateHandler_ServeHTTP(t *testing.T) {
	expiry := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		requestBody    any
		mockAccount    *models.UserAccount
		mockErr        error
		wantStatusCode int
		wantError      string
	}{
		{
			name:        "valid activation",
			requestBody: Request{PhoneNumber: "263771234567", Plan: "weekly"},
			mockAccount: &models.UserAccount{
				PhoneNumber:        "263771234567",
				SubscriptionType:   "weekly",
				SubscriptionExpiry: &expiry,
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "unsupported plan",
			requestBody:    Request{PhoneNumber: "263771234567", Plan: "lifetime"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Plan has unsupported value",
		},
		{
			name:           "service error",
			requestBody:    Request{PhoneNumber: "263771234567", Plan: "weekly"},
			mockAccount:    &models.UserAccount{},
			mockErr:        errors.New("boom"),
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "could not activate subscription",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock := new(ServiceMock)
			handler := New(newNoopLogger(), serviceMock)

			if tt.mockAccount != nil {
				req := tt.requestBody.(Request)
				serviceMock.On("ForceActivate", mock.Anything, req.PhoneNumber, req.Plan).
					Return(*tt.mockAccount, tt.mockErr).Once()
			}

			body, err := json.Marshal(tt.requestBody)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/admin/activate", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

			if tt.wantError != "" {
				assert.Contains(t, resp["error"], tt.wantError)
			} else {
				data := resp["data"].(map[string]any)
				assert.Equal(t, "263771234567", data["phone_number"])
				assert.Equal(t, "weekly", data["plan"])
			}
			serviceMock.AssertExpectations(t)
		})
	}
}
