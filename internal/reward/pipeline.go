package reward

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"

	"cspr_rewarder/internal/models"
	"cspr_rewarder/internal/utils"
)

// Stage failures. Each wraps the provider's cause; the job is abandoned at the
// failing stage and a later backfill pass may retry the whole pipeline.
var (
	ErrImageGenFailed = errors.New("image generation failed")
	ErrUploadFailed   = errors.New("image upload failed")
	ErrMintFailed     = errors.New("mint deploy failed")
)

// ImageGenerator produces one image from the fixed source image and prompt.
type ImageGenerator interface {
	Generate(ctx context.Context) ([]byte, error)
}

// Publisher stores image bytes under a unique key and returns the content address.
type Publisher interface {
	Publish(ctx context.Context, key string, data []byte) (string, error)
}

// Minter submits the signed CEP-78 mint deploy and returns the deploy hash.
type Minter interface {
	Mint(ctx context.Context, owner string, meta models.NFTMetadata) (string, error)
}

// KeyFunc produces the storage key for an upload. Defaults to a time-suffixed
// key so repeated runs never collide.
type KeyFunc func() string

// Pipeline executes the generate, publish, mint sequence for one delegator.
type Pipeline struct {
	generator ImageGenerator
	publisher Publisher
	minter    Minter
	gateway   string
	keyFunc   KeyFunc
}

func NewPipeline(generator ImageGenerator, publisher Publisher, minter Minter, gateway string, keyFunc KeyFunc) *Pipeline {
	return &Pipeline{
		generator: generator,
		publisher: publisher,
		minter:    minter,
		gateway:   gateway,
		keyFunc:   keyFunc,
	}
}

const nftName = "I Stake With Steuer"

func nftDescription(cspr *big.Int) string {
	return fmt.Sprintf("I delegated %s $CSPR to the SteuerNode, and all I got to show for it is this artsy NFT", utils.FormatCSPR(cspr))
}

// Run executes the three stages strictly in order. A failing stage aborts the
// job without touching the later stages; partially published images are
// harmless garbage, not a consistency problem.
func (p *Pipeline) Run(ctx context.Context, job models.RewardJob) (models.MintReceipt, error) {
	log.Printf("Preparing NFT for delegator: %s with CSPR stake of: %s", job.Delegator, utils.FormatCSPR(job.StakeCSPR))

	image, err := p.generator.Generate(ctx)
	if err != nil {
		return models.MintReceipt{}, fmt.Errorf("%w: %w", ErrImageGenFailed, err)
	}
	log.Println("Retrieved image from provider...")

	cid, err := p.publisher.Publish(ctx, p.keyFunc(), image)
	if err != nil {
		return models.MintReceipt{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	log.Println("Uploaded image to IPFS: " + p.gateway + cid)

	meta := models.NFTMetadata{
		Name:        nftName,
		Description: nftDescription(job.StakeCSPR),
		Asset:       p.gateway + cid,
	}
	deployHash, err := p.minter.Mint(ctx, job.Delegator, meta)
	if err != nil {
		return models.MintReceipt{}, fmt.Errorf("%w: %w", ErrMintFailed, err)
	}
	log.Println("Mint Deploy: " + deployHash)

	return models.MintReceipt{
		Delegator:  job.Delegator,
		StakeCSPR:  job.StakeCSPR.String(),
		ImageCID:   cid,
		DeployHash: deployHash,
	}, nil
}
