package currency

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/travelagent/internal/core/domain"
)

func TestFrankfurterClient_Convert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("amount"))
		assert.Equal(t, "USD", r.URL.Query().Get("from"))
		assert.Equal(t, "JPY", r.URL.Query().Get("to"))
		fmt.Fprint(w, `{"amount":100.0,"base":"USD","date":"2024-05-10","rates":{"JPY":15560.5}}`)
	}))
	defer srv.Close()

	c := NewFrankfurterClient(srv.URL+"/", time.Second)
	rate, err := c.Convert(context.Background(), 100, "USD", "JPY")
	require.NoError(t, err)
	assert.Equal(t, 15560.5, rate.Value)
	assert.Equal(t, "2024-05-10", rate.Date)
	assert.Equal(t, "frankfurter", rate.Provider)
}

func TestFrankfurterClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"missing rate", http.StatusOK, `{"amount":1,"base":"USD","date":"2024-05-10","rates":{"EUR":0.9}}`, "no rate for JPY"},
		{"bad status", http.StatusUnprocessableEntity, `{"message":"not found"}`, "status 422"},
		{"bad json", http.StatusOK, `<html>`, "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewFrankfurterClient(srv.URL, time.Second).Convert(context.Background(), 1, "USD", "JPY")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUpstream)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewFrankfurterClient(url, time.Second).Convert(context.Background(), 1, "USD", "JPY")
		assert.ErrorIs(t, err, domain.ErrUpstream)
	})
}
