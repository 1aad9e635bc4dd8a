package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// FilebaseClient pins image bytes to IPFS through Filebase's RPC endpoint and
// returns the resulting content address.
type FilebaseClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewFilebaseClient(apiKey, apiSecret, bucket string) *FilebaseClient {
	return &FilebaseClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: "https://rpc.filebase.io",
		// The RPC endpoint authenticates with key:secret:bucket, base64-encoded.
		token: base64.StdEncoding.EncodeToString([]byte(apiKey + ":" + apiSecret + ":" + bucket)),
	}
}

func NewFilebaseClientWithHTTP(httpClient *http.Client, baseURL, apiKey, apiSecret, bucket string) *FilebaseClient {
	client := NewFilebaseClient(apiKey, apiSecret, bucket)
	client.httpClient = httpClient
	client.baseURL = baseURL
	return client
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

func (c *FilebaseClient) Publish(ctx context.Context, key string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", key)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/add", body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var response addResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if response.Hash == "" {
		return "", fmt.Errorf("upload response contained no CID")
	}
	return response.Hash, nil
}
