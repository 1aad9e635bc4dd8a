package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"cspr_rewarder/internal/config"
	"cspr_rewarder/internal/models"
)

// ReadAPI is the CSPR.cloud REST surface the backfill needs: the paged
// delegation listing for the watched validator and the NFT ownership lookup
// that serves as the authoritative "already rewarded" check.
type ReadAPI interface {
	GetDelegations(ctx context.Context, page int) ([]models.Delegation, int, error)
	OwnsNFT(ctx context.Context, publicKey string) (bool, error)
}

type csprCloudClient struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	validator       string
	contractPackage string
	pageSize        int
	maxTries        uint
}

func NewCsprCloudClient(config *config.Config) ReadAPI {
	return &csprCloudClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:   strings.TrimSuffix(config.RestURL, "/"),
		apiKey:    config.APIKey,
		validator: config.Validator,
		// The ownership endpoint takes the bare package hash without the
		// "hash-" prefix used elsewhere.
		contractPackage: strings.TrimPrefix(config.NFTContractPackageHash, "hash-"),
		pageSize:        config.PageSize,
		maxTries:        3,
	}
}

type delegationsResponse struct {
	Data      []models.Delegation `json:"data"`
	PageCount int                 `json:"page_count"`
}

// GetDelegations fetches one page (1-based) of current delegations to the
// watched validator and returns the page plus the total page count.
func (c *csprCloudClient) GetDelegations(ctx context.Context, page int) ([]models.Delegation, int, error) {
	endpoint := fmt.Sprintf("%s/validators/%s/delegations?page_size=%d&page=%d", c.baseURL, c.validator, c.pageSize, page)

	var response delegationsResponse
	if err := c.getJSON(ctx, endpoint, &response); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch delegations page %d: %w", page, err)
	}
	return response.Data, response.PageCount, nil
}

type ownershipResponse struct {
	Data []json.RawMessage `json:"data"`
}

// OwnsNFT reports whether the account already holds a token of the target
// collection. An empty data array means the delegator was never rewarded.
func (c *csprCloudClient) OwnsNFT(ctx context.Context, publicKey string) (bool, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/nft-token-ownership?contract_package_hash=%s&includes=owner_public_key",
		c.baseURL, url.PathEscape(publicKey), c.contractPackage)

	var response ownershipResponse
	if err := c.getJSON(ctx, endpoint, &response); err != nil {
		return false, fmt.Errorf("failed to fetch NFT ownership for %s: %w", publicKey, err)
	}
	return len(response.Data) > 0, nil
}

func (c *csprCloudClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return struct{}{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	return err
}
