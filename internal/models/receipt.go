package models

// MintReceipt is the terminal record of a completed reward pipeline run.
type MintReceipt struct {
	Delegator  string `bson:"delegator"`
	StakeCSPR  string `bson:"stakeCspr"`
	ImageCID   string `bson:"imageCid"`
	DeployHash string `bson:"deployHash"`
}

// NFTMetadata is the metadata document attached to a minted token.
type NFTMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Asset       string `json:"asset"`
}

// Delegation is one record of the read API's paged delegation listing.
type Delegation struct {
	PublicKey string `json:"public_key"`
	Stake     string `json:"stake"`
}
