package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vidtube/internal/server/repositories/users"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoRepositoryManager vends MongoDB-backed repositories. Reads use the
// primary so a refresh-token check always sees the latest rotation.
type MongoRepositoryManager struct {
	client *mongo.Client
	users  *users.MongoRepository
}

// mongoConnect is a seam for testing mongo.Connect.
var mongoConnect = func(opts ...*options.ClientOptions) (*mongo.Client, error) {
	return mongo.Connect(opts...)
}

// NewMongoRepositoryManager creates a client for uri. The driver connects
// lazily, so reachability is checked by Ping or the first query.
func NewMongoRepositoryManager(_ context.Context, uri, database string) (*MongoRepositoryManager, error) {
	client, err := mongoConnect(options.Client().ApplyURI(uri).SetReadPreference(readpref.Primary()))
	if err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}

	return &MongoRepositoryManager{
		client: client,
		users:  users.NewMongoRepository(client.Database(database)),
	}, nil
}

func (m *MongoRepositoryManager) Users() users.Repository {
	return m.users
}

// RunMigrations creates the unique indexes the store relies on.
func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	return m.users.EnsureIndexes(ctx)
}

func (m *MongoRepositoryManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
