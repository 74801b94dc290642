package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacsops/dcmmove/internal/auth"
	"github.com/pacsops/dcmmove/internal/dcm4chee"
)

// TestConcurrent401sShareOneRefresh wires the executor to a real credential
// manager and verifies the batch-wide single-flight property: a whole pool of
// workers hitting 401 at the same moment drives exactly one token request to
// the identity provider, not one per worker.
func TestConcurrent401sShareOneRefresh(t *testing.T) {
	const workers = 6

	var idpRequests atomic.Int64
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := idpRequests.Add(1)
		token := "stale"
		if n > 1 {
			// Slow refresh keeps the flight open long enough for every
			// 401-struck worker to attach to it.
			time.Sleep(150 * time.Millisecond)
			token = "fresh"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"expires_in":   3600,
		})
	}))
	defer idp.Close()

	manager, err := auth.NewManager(auth.Options{
		TokenEndpoint: idp.URL,
		ClientID:      "client",
		ClientSecret:  "secret",
	})
	require.NoError(t, err)

	// The archive rejects the stale token, but only after every worker's
	// first attempt has arrived, so all 401s land simultaneously.
	var (
		mu       sync.Mutex
		arrivals int
		release  = make(chan struct{})
	)
	archive := newFakeArchive(func(_ context.Context, token string, _ dcm4chee.MoveRequest) (*dcm4chee.Outcome, error) {
		if token == "fresh" {
			return &dcm4chee.Outcome{StatusCode: http.StatusOK}, nil
		}
		mu.Lock()
		arrivals++
		if arrivals == workers {
			close(release)
		}
		mu.Unlock()
		<-release
		return &dcm4chee.Outcome{StatusCode: http.StatusUnauthorized}, nil
	})

	ex := NewExecutor(archive, manager, Options{Concurrency: workers})
	records := ex.Execute(context.Background(), makeItems(workers))

	require.Len(t, records, workers)
	for _, rec := range records {
		assert.Equal(t, StatusOK, rec.Status)
		assert.Equal(t, 2, rec.Attempts)
	}
	assert.Equal(t, int64(2), idpRequests.Load(),
		"expected one initial fetch plus exactly one coalesced refresh")
}
