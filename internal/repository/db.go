package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cspr_rewarder/internal/config"
	"cspr_rewarder/internal/models"
)

// DbRepository persists mint receipts. It is optional: without a configured
// database receipts are only logged, which the core treats as acceptable.
type DbRepository interface {
	Health() error
	Disconnect() error
	SaveReceipt(ctx context.Context, receipt models.MintReceipt) error
	ListRewardedDelegators(ctx context.Context) ([]string, error)
}

type mongoRepository struct {
	client *mongo.Client
	dbName string
}

func ConnectToDb(config *config.Config) (DbRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	host := config.Db.Host
	port := config.Db.Port
	user := config.Db.User
	password := config.Db.Password
	dbName := config.Db.DbName

	uri := fmt.Sprintf("mongodb://%s:%d", host, port)
	if user != "" && password != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", user, password, host, port)
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}
	log.Println("✅ Db connected")

	return &mongoRepository{
		client: client,
		dbName: dbName,
	}, nil
}

func (r *mongoRepository) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	return r.client.Ping(ctx, nil)
}

func (r *mongoRepository) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return r.client.Disconnect(ctx)
}

func (r *mongoRepository) receipts() *mongo.Collection {
	return r.client.Database(r.dbName).Collection("receipts")
}

func (r *mongoRepository) SaveReceipt(ctx context.Context, receipt models.MintReceipt) error {
	doc := bson.M{
		"delegator":  receipt.Delegator,
		"stakeCspr":  receipt.StakeCSPR,
		"imageCid":   receipt.ImageCID,
		"deployHash": receipt.DeployHash,
		"created_at": time.Now(),
	}
	if _, err := r.receipts().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert receipt: %v", err)
	}
	return nil
}

// ListRewardedDelegators loads the delegators with a stored receipt, used to
// warm the in-memory ledger at startup. The on-chain ownership record stays the
// source of truth for the backfill path.
func (r *mongoRepository) ListRewardedDelegators(ctx context.Context) ([]string, error) {
	cursor, err := r.receipts().Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"delegator": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %v", err)
	}
	var docs []models.MintReceipt
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode receipts: %v", err)
	}

	delegators := make([]string, 0, len(docs))
	for _, doc := range docs {
		delegators = append(delegators, doc.Delegator)
	}
	return delegators, nil
}
