package providers_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspr_rewarder/internal/providers"
)

func writeSourceImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.png")
	require.NoError(t, os.WriteFile(path, []byte("source-png"), 0o644))
	return path
}

func TestOpenAIClient(t *testing.T) {
	t.Parallel()

	t.Run("it requests one base64 edit and decodes the result", func(t *testing.T) {
		t.Parallel()

		image := []byte("generated-png")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/images/edits", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "make it artsy", r.FormValue("prompt"))
			assert.Equal(t, "1", r.FormValue("n"))
			assert.Equal(t, "b64_json", r.FormValue("response_format"))

			file, _, err := r.FormFile("image")
			require.NoError(t, err)
			defer file.Close()

			fmt.Fprintf(w, `{"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString(image))
		}))
		t.Cleanup(server.Close)

		client := providers.NewOpenAIClientWithHTTP(server.Client(), server.URL, "sk-test", writeSourceImage(t), "make it artsy")
		got, err := client.Generate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, image, got)
	})

	t.Run("it fails on a provider error without panicking", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"billing hard limit reached"}}`, http.StatusTooManyRequests)
		}))
		t.Cleanup(server.Close)

		client := providers.NewOpenAIClientWithHTTP(server.Client(), server.URL, "sk-test", writeSourceImage(t), "p")
		_, err := client.Generate(context.Background())
		assert.ErrorContains(t, err, "429")
	})

	t.Run("it fails when the response has no image", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[]}`)
		}))
		t.Cleanup(server.Close)

		client := providers.NewOpenAIClientWithHTTP(server.Client(), server.URL, "sk-test", writeSourceImage(t), "p")
		_, err := client.Generate(context.Background())
		assert.Error(t, err)
	})
}

func TestFilebaseClient(t *testing.T) {
	t.Parallel()

	t.Run("it uploads under the given key and returns the CID", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v0/add", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get("Authorization"))

			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			assert.Equal(t, "steuer-nft-123", header.Filename)

			fmt.Fprint(w, `{"Name":"steuer-nft-123","Hash":"QmUploadedCid","Size":"42"}`)
		}))
		t.Cleanup(server.Close)

		client := providers.NewFilebaseClientWithHTTP(server.Client(), server.URL, "key", "secret", "bucket")
		cid, err := client.Publish(context.Background(), "steuer-nft-123", []byte("png"))
		require.NoError(t, err)
		assert.Equal(t, "QmUploadedCid", cid)
	})

	t.Run("it fails on an upload error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		t.Cleanup(server.Close)

		client := providers.NewFilebaseClientWithHTTP(server.Client(), server.URL, "key", "secret", "bucket")
		_, err := client.Publish(context.Background(), "k", []byte("png"))
		assert.Error(t, err)
	})
}
