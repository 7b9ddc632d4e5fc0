package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "string rate",
			body: `{"currency":"USD","rate":"12650.40"}`,
			want: "12650.40",
		},
		{
			name: "numeric rate",
			body: `{"rate": 90}`,
			want: "90",
		},
		{
			name: "extra fields skipped",
			body: `{"updated_at":"2026-03-01T10:00:00Z","rate":"90.5","source":"cbr"}`,
			want: "90.5",
		},
		{
			name:    "rate missing",
			body:    `{"currency":"USD"}`,
			wantErr: true,
		},
		{
			name:    "zero rate rejected",
			body:    `{"rate":"0"}`,
			wantErr: true,
		},
		{
			name:    "negative rate rejected",
			body:    `{"rate":"-1"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `rate=90`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRate([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			want, err := decimal.NewFromString(tt.want)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "got %s, want %s", got, want)
		})
	}
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rate", r.URL.Path)
		_, _ = w.Write([]byte(`{"rate":"90"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	got, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(90)))
}

func TestClient_FetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"rate":"90"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.backoff = 0

	got, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, int64(3), calls.Load())
}

func TestClient_FetchGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.backoff = 0

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
}
