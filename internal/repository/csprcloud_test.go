package repository_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspr_rewarder/internal/config"
	"cspr_rewarder/internal/repository"
)

func newClient(serverURL string) repository.ReadAPI {
	return repository.NewCsprCloudClient(&config.Config{
		RestURL:                serverURL,
		APIKey:                 "test-key",
		Validator:              "V",
		NFTContractPackageHash: "hash-cafebabe",
		PageSize:               2,
	})
}

func TestCsprCloudClient(t *testing.T) {
	t.Parallel()

	t.Run("it pages delegations with the configured page size", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/validators/V/delegations", r.URL.Path)
			assert.Equal(t, "2", r.URL.Query().Get("page_size"))
			assert.Equal(t, "test-key", r.Header.Get("Authorization"))

			switch r.URL.Query().Get("page") {
			case "1":
				fmt.Fprint(w, `{"data":[{"public_key":"D1","stake":"1000000000"},{"public_key":"D2","stake":"2000000000"}],"page_count":2}`)
			case "2":
				fmt.Fprint(w, `{"data":[{"public_key":"D3","stake":"3000000000"}],"page_count":2}`)
			default:
				http.Error(w, "bad page", http.StatusBadRequest)
			}
		}))
		t.Cleanup(server.Close)

		client := newClient(server.URL)

		page1, pageCount, err := client.GetDelegations(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, 2, pageCount)
		require.Len(t, page1, 2)
		assert.Equal(t, "D1", page1[0].PublicKey)
		assert.Equal(t, "1000000000", page1[0].Stake)

		page2, _, err := client.GetDelegations(context.Background(), 2)
		require.NoError(t, err)
		require.Len(t, page2, 1)
		assert.Equal(t, "D3", page2[0].PublicKey)
	})

	t.Run("it reports ownership from the data array", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/accounts/D1/nft-token-ownership", r.URL.Path)
			// Package hash is passed without the "hash-" prefix.
			assert.Equal(t, "cafebabe", r.URL.Query().Get("contract_package_hash"))

			fmt.Fprint(w, `{"data":[{"owner_public_key":"D1"}]}`)
		}))
		t.Cleanup(server.Close)

		owned, err := newClient(server.URL).OwnsNFT(context.Background(), "D1")
		require.NoError(t, err)
		assert.True(t, owned)
	})

	t.Run("it treats an empty data array as unrewarded", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[]}`)
		}))
		t.Cleanup(server.Close)

		owned, err := newClient(server.URL).OwnsNFT(context.Background(), "D1")
		require.NoError(t, err)
		assert.False(t, owned)
	})

	t.Run("it retries transient server errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "upstream hiccup", http.StatusBadGateway)
				return
			}
			fmt.Fprint(w, `{"data":[],"page_count":1}`)
		}))
		t.Cleanup(server.Close)

		_, _, err := newClient(server.URL).GetDelegations(context.Background(), 1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, calls.Load(), int64(2))
	})

	t.Run("it gives up after the retry budget", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		t.Cleanup(server.Close)

		_, _, err := newClient(server.URL).GetDelegations(context.Background(), 1)
		assert.Error(t, err)
	})
}
