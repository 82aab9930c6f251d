package integration

import (
	"context"
	"encoding/json"
	"os/exec"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mongotable/internal/config"
	"mongotable/internal/exporter"
	"mongotable/internal/table"
)

// startContainer starts image and returns its host and the mapped port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) (host, mapped string) {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate %s container: %v", req.Image, err)
		}
	})

	host, err = c.Host(ctx)
	require.NoError(t, err)
	p, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host, p.Port()
}

func startMongo(t *testing.T) (host, port string) {
	return startContainer(t, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort(nat.Port("27017/tcp")),
	}, "27017/tcp")
}

func startLocalStack(t *testing.T) (host, port string) {
	return startContainer(t, testcontainers.ContainerRequest{
		Image:        "localstack/localstack:latest",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES":            "dynamodb",
			"DEFAULT_REGION":      "us-east-1",
			"SKIP_SSL_VALIDATION": "1",
		},
		WaitingFor: wait.ForListeningPort(nat.Port("4566/tcp")),
	}, "4566/tcp")
}

// seedUsers inserts the users fixture into database.
func seedUsers(t *testing.T, host, port, database string, docs ...bson.D) {
	t.Helper()
	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+host+":"+port))
	require.NoError(t, err)
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			t.Logf("Warning: failed to disconnect from MongoDB: %v", err)
		}
	}()

	records := make([]any, len(docs))
	for i, d := range docs {
		records[i] = d
	}
	_, err = client.Database(database).Collection("users").InsertMany(ctx, records)
	require.NoError(t, err)
}

var usersFixture = []bson.D{
	{{Key: "name", Value: "Alice"}, {Key: "age", Value: "na"}},
	{{Key: "name", Value: "Bob"}, {Key: "age", Value: int32(30)}},
}

func TestExporter_AgainstMongo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	host, port := startMongo(t)
	seedUsers(t, host, port, config.DefaultDatabaseName, usersFixture...)
	seedUsers(t, host, port, "archive", bson.D{{Key: "name", Value: "Carol"}, {Key: "email", Value: "carol@example.com"}})

	ctx := context.Background()
	cfg := &config.Config{MongoHost: host, MongoPort: port, MongoDB: config.DefaultDatabaseName}
	exp, err := exporter.New(ctx, cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, exp.Close(ctx)) }()

	t.Run("users scenario", func(t *testing.T) {
		tbl, err := exp.Export(ctx, "users")
		require.NoError(t, err)

		assert.Equal(t, []string{"name", "age"}, tbl.Columns())
		assert.Equal(t, [][]any{{"Alice", table.NA}, {"Bob", int32(30)}}, tbl.Rows())
	})

	t.Run("repeated export is equal", func(t *testing.T) {
		first, err := exp.Export(ctx, "users")
		require.NoError(t, err)
		second, err := exp.Export(ctx, "users")
		require.NoError(t, err)
		assert.True(t, first.Equal(second))
	})

	t.Run("other database", func(t *testing.T) {
		tbl, err := exp.Export(ctx, "users", exporter.WithDatabase("archive"))
		require.NoError(t, err)

		assert.Equal(t, []string{"name", "email"}, tbl.Columns())
		assert.Equal(t, [][]any{{"Carol", "carol@example.com"}}, tbl.Rows())
	})

	t.Run("missing collection is empty", func(t *testing.T) {
		tbl, err := exp.Export(ctx, "does_not_exist")
		require.NoError(t, err)
		assert.Zero(t, tbl.Len())
		assert.Zero(t, tbl.Width())
	})
}

func TestExportCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	host, port := startMongo(t)
	seedUsers(t, host, port, config.DefaultDatabaseName, usersFixture...)

	cmd := exec.Command("go", "run", "../../main.go", "export", "users",
		"--mongo-host", host,
		"--mongo-port", port,
		"--format", "json",
	)
	stdout, err := cmd.Output()
	if err != nil {
		var stderr []byte
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = exitErr.Stderr
		}
		t.Fatalf("CLI export failed: %v\n%s", err, stderr)
	}

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(stdout, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"name": "Alice", "age": nil}, rows[0])
	assert.Equal(t, map[string]any{"name": "Bob", "age": float64(30)}, rows[1])
}

// createDynamoTable creates a table keyed by name and waits for it to become active.
func createDynamoTable(t *testing.T, client *dynamodb.Client, tableName string) {
	ctx := context.Background()

	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("name"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("name"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	require.NoError(t, err)

	waiter := dynamodb.NewTableExistsWaiter(client)
	require.NoError(t, waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, time.Minute))
}

func TestLoadCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	mongoHost, mongoPort := startMongo(t)
	lsHost, lsPort := startLocalStack(t)
	seedUsers(t, mongoHost, mongoPort, config.DefaultDatabaseName, usersFixture...)

	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	endpoint := "http://" + lsHost + ":" + lsPort
	awsCfg, err := awsConfig.LoadDefaultConfig(context.Background())
	require.NoError(t, err)
	dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	createDynamoTable(t, dynamoClient, "users")

	cmd := exec.Command("go", "run", "../../main.go", "load", "users",
		"--mongo-host", mongoHost,
		"--mongo-port", mongoPort,
		"--dynamo-table", "users",
		"--dynamo-endpoint", endpoint,
		"--auto-approve",
	)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "CLI load failed:\n%s", output)
	assert.Contains(t, string(output), "Loaded 2 rows into users")

	result, err := dynamoClient.GetItem(context.Background(), &dynamodb.GetItemInput{
		TableName: aws.String("users"),
		Key:       map[string]types.AttributeValue{"name": &types.AttributeValueMemberS{Value: "Alice"}},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Item)

	var alice map[string]any
	require.NoError(t, attributevalue.UnmarshalMap(result.Item, &alice))
	assert.Equal(t, map[string]any{"name": "Alice"}, alice)

	result, err = dynamoClient.GetItem(context.Background(), &dynamodb.GetItemInput{
		TableName: aws.String("users"),
		Key:       map[string]types.AttributeValue{"name": &types.AttributeValueMemberS{Value: "Bob"}},
	})
	require.NoError(t, err)

	var bob map[string]any
	require.NoError(t, attributevalue.UnmarshalMap(result.Item, &bob))
	assert.Equal(t, float64(30), bob["age"])
}

func TestVersionCommand(t *testing.T) {
	cmd := exec.Command("go", "run", "../../main.go", "version")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "CLI version command should not fail")

	assert.Regexp(t, `^mongotable \S+\n  commit:  \S+\n  built:   \S+\n  go:      go\S+ \S+/\S+\n$`, string(output))
}
