package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mongotable/internal/config"
)

func TestConnect_InvalidURI(t *testing.T) {
	cfg := &config.Config{MongoURI: "postgres://localhost:5432"}

	client, err := Connect(context.Background(), cfg, "Proj1")

	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect to MongoDB")
}

func TestConnect_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for server selection")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	cfg := &config.Config{MongoHost: "127.0.0.1", MongoPort: "1"}
	client, err := Connect(ctx, cfg, "Proj1")

	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to ping MongoDB")
}
