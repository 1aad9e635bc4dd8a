package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// OpenAIClient requests one edited image from the images API, built from a
// fixed source image and prompt. The result comes back base64-encoded and is
// returned as raw bytes.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	imagePath  string
	prompt     string
}

func NewOpenAIClient(apiKey, imagePath, prompt string) *OpenAIClient {
	return &OpenAIClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL:   "https://api.openai.com",
		apiKey:    apiKey,
		imagePath: imagePath,
		prompt:    prompt,
	}
}

func NewOpenAIClientWithHTTP(httpClient *http.Client, baseURL, apiKey, imagePath, prompt string) *OpenAIClient {
	return &OpenAIClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		imagePath:  imagePath,
		prompt:     prompt,
	}
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (c *OpenAIClient) Generate(ctx context.Context) ([]byte, error) {
	source, err := os.ReadFile(c.imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source image: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filepath.Base(c.imagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(source); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	_ = writer.WriteField("prompt", c.prompt)
	_ = writer.WriteField("n", "1")
	_ = writer.WriteField("response_format", "b64_json")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/edits", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, detail)
	}

	var response imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("image response contained no data")
	}

	image, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding image payload: %w", err)
	}
	return image, nil
}
