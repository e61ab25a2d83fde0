package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

const datasetID = "dataset"

// MongoStore keeps the dataset as one MongoDB document.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type datasetDocument struct {
	ID              string `bson:"_id"`
	models.Document `bson:",inline"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func NewMongoStore(ctx context.Context, cfg *config.MongoDBConfig) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (m *MongoStore) Load(ctx context.Context) (*models.Document, error) {
	var doc datasetDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": datasetID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return doc.Document.Normalize(), nil
}

func (m *MongoStore) Save(ctx context.Context, doc *models.Document) error {
	replacement := datasetDocument{
		ID:        datasetID,
		Document:  *doc.Clone().Normalize(),
		UpdatedAt: time.Now(),
	}

	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": datasetID}, replacement, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
