package repomanager

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/idkeeper/internal/server/repositories/accounts"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// DefaultMongoDatabase is used when the URI has no database path.
const DefaultMongoDatabase = "idkeeper"

// MongoRepositoryManager vends the MongoDB-backed account repository.
type MongoRepositoryManager struct {
	client *mongo.Client
	repo   *accounts.MongoRepository
}

// OpenMongo creates a client for uri. The driver connects lazily.
func OpenMongo(uri string) (*MongoRepositoryManager, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("open mongodb: %w", err)
	}
	db := client.Database(databaseName(uri))
	return &MongoRepositoryManager{client: client, repo: accounts.NewMongoRepository(db)}, nil
}

func databaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return DefaultMongoDatabase
}

func (m *MongoRepositoryManager) Accounts() accounts.Repository {
	return m.repo
}

// RunMigrations creates the collection indexes, including the unique email index.
func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	return m.repo.EnsureIndexes(ctx)
}

func (m *MongoRepositoryManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
