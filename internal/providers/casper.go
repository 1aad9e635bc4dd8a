package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"cspr_rewarder/internal/config"
	"cspr_rewarder/internal/models"
)

// Fixed payment for a CEP-78 mint, in motes.
var mintPayment = big.NewInt(1_600_000_000)

// CasperClient submits CEP-78 mint deploys to a Casper node over JSON-RPC.
type CasperClient struct {
	httpClient   *http.Client
	nodeURL      string
	chainName    string
	contractHash string
	keys         *KeyPair
	now          func() time.Time
}

func NewCasperClient(config *config.Config, keys *KeyPair) *CasperClient {
	return &CasperClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		nodeURL:      config.NodeURL,
		chainName:    config.NetworkName,
		contractHash: StripHashPrefix(config.NFTContractHash),
		keys:         keys,
		now:          time.Now,
	}
}

func NewCasperClientWithHTTP(httpClient *http.Client, nodeURL, chainName, contractHash string, keys *KeyPair) *CasperClient {
	return &CasperClient{
		httpClient:   httpClient,
		nodeURL:      nodeURL,
		chainName:    chainName,
		contractHash: StripHashPrefix(contractHash),
		keys:         keys,
		now:          time.Now,
	}
}

// Mint builds, signs and submits the mint deploy for one delegator and returns
// the deploy hash.
func (c *CasperClient) Mint(ctx context.Context, owner string, meta models.NFTMetadata) (string, error) {
	session, err := c.mintSession(owner, meta)
	if err != nil {
		return "", err
	}

	deploy := BuildDeploy(c.keys, c.chainName, mintPayment, session, c.now())
	return c.putDeploy(ctx, deploy)
}

func (c *CasperClient) mintSession(owner string, meta models.NFTMetadata) (StoredContractByHash, error) {
	ownerHash, err := AccountHash(owner)
	if err != nil {
		return StoredContractByHash{}, fmt.Errorf("failed to derive owner account hash: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return StoredContractByHash{}, fmt.Errorf("failed to marshal token metadata: %w", err)
	}

	return StoredContractByHash{
		Hash:       c.contractHash,
		EntryPoint: "mint",
		Args: []NamedArg{
			{
				Name:  "token_owner",
				Value: CLValue{Type: "Key", Bytes: accountKeyBytes(ownerHash), Parsed: "account-hash-" + fmt.Sprintf("%x", ownerHash)},
			},
			{
				Name:  "token_meta_data",
				Value: CLValue{Type: "String", Bytes: stringBytes(string(metaJSON)), Parsed: string(metaJSON)},
			},
		},
	}, nil
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	Result struct {
		DeployHash string `json:"deploy_hash"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *CasperClient) putDeploy(ctx context.Context, deploy Deploy) (string, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "account_put_deploy",
		Params:  map[string]interface{}{"deploy": deploy},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal deploy: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var response rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("deploy rejected: %s (code %d)", response.Error.Message, response.Error.Code)
	}
	if response.Result.DeployHash == "" {
		return "", fmt.Errorf("node returned no deploy hash")
	}
	return response.Result.DeployHash, nil
}
