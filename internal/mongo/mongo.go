package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mongotable/internal/common"
)

const defaultServerSelectionTimeout = 10 * time.Second

// Client is a MongoDB connection bound to a default database.
// Other databases on the same connection stay reachable through Collection.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect establishes a connection to MongoDB and binds it to databaseName.
func Connect(ctx context.Context, cfg common.ConfigProvider, databaseName string) (*Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.GetMongoURI()).
		SetServerSelectionTimeout(defaultServerSelectionTimeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection.
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client:   client,
		database: client.Database(databaseName),
	}, nil
}

// Database returns the default database.
func (c *Client) Database() *mongo.Database {
	return c.database
}

// DefaultDatabase returns the name of the default database.
func (c *Client) DefaultDatabase() string {
	return c.database.Name()
}

// Collection addresses a collection in any database on this connection.
func (c *Client) Collection(database, name string) *mongo.Collection {
	if database == "" || database == c.database.Name() {
		return c.database.Collection(name)
	}
	return c.client.Database(database).Collection(name)
}

// Disconnect closes the connection.
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}
