package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/vault_ledger/internal/config"
	"github.com/congo-pay/vault_ledger/internal/logging"
)

func TestNewRendersJSONErrors(t *testing.T) {
	cfg := config.Config{
		AppName:        "VaultLedger",
		Env:            "development",
		Port:           "0",
		FeeRate:        "0.01",
		JWTSecret:      "a",
		RefreshSecret:  "r",
		AccessTokenTTL: time.Minute,
		LockTTL:        time.Second,
	}
	srv, err := New(cfg, nil, nil, nil, logging.Discard())
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/v1/vault", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "missing bearer token", body["error"])
}
