package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mongotable/internal/common"
	"mongotable/internal/retry"
	"mongotable/internal/table"
)

// MockDBClient is a mock implementation of DBClient for testing.
type MockDBClient struct {
	mock.Mock
}

func (m *MockDBClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, params)
	if err := args.Error(1); err != nil {
		return nil, fmt.Errorf("mock error: %w", err)
	}
	return args.Get(0).(*dynamodb.BatchWriteItemOutput), nil
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) AddLoadedItems(table string, count int) {
	m.Called(table, count)
}

func (m *mockRecorder) IncrementLoadErrors(table, errorType string) {
	m.Called(table, errorType)
}

func fastRetry(maxRetries int) *retry.Config {
	cfg := retry.NewConfig().WithMaxRetries(maxRetries)
	cfg.BackoffConfig.BaseDelay = time.Millisecond
	cfg.BackoffConfig.MaxDelay = 2 * time.Millisecond
	return cfg
}

func usersTable(n int) *table.Table {
	docs := make([]bson.D, n)
	for i := range docs {
		docs[i] = bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "name", Value: fmt.Sprintf("user-%d", i)},
			{Key: "age", Value: int32(20 + i)},
		}
	}
	return table.FromDocuments(docs, table.IDField)
}

func batchOf(size int) any {
	return mock.MatchedBy(func(input *dynamodb.BatchWriteItemInput) bool {
		return len(input.RequestItems["users"]) == size
	})
}

func TestNew(t *testing.T) {
	client := &MockDBClient{}
	l := New(client, "users")

	assert.Equal(t, client, l.client)
	assert.Equal(t, "users", l.table)
	assert.NotNil(t, l.marshal)
	assert.Equal(t, retry.DefaultMaxRetries, l.retry.MaxRetries)
}

func TestLoader_Load_Batches(t *testing.T) {
	client := &MockDBClient{}
	recorder := &mockRecorder{}
	l := New(client, "users", WithMetrics(recorder), WithRetryConfig(fastRetry(2)))

	client.On("BatchWriteItem", mock.Anything, batchOf(25)).Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()
	client.On("BatchWriteItem", mock.Anything, batchOf(5)).Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()
	recorder.On("AddLoadedItems", "users", 25).Once()
	recorder.On("AddLoadedItems", "users", 5).Once()

	written, err := l.Load(context.Background(), usersTable(30))

	require.NoError(t, err)
	assert.Equal(t, 30, written)
	client.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestLoader_Load_ReportsProgress(t *testing.T) {
	client := &MockDBClient{}
	var batches []int
	l := New(client, "users", WithProgress(func(n int) { batches = append(batches, n) }))

	client.On("BatchWriteItem", mock.Anything, mock.Anything).Return(&dynamodb.BatchWriteItemOutput{}, nil)

	_, err := l.Load(context.Background(), usersTable(60))

	require.NoError(t, err)
	assert.Equal(t, []int{25, 25, 10}, batches)
}

func TestLoader_Load_EmptyTable(t *testing.T) {
	client := &MockDBClient{}
	l := New(client, "users")

	written, err := l.Load(context.Background(), table.FromDocuments(nil, table.IDField))

	require.NoError(t, err)
	assert.Zero(t, written)
	client.AssertNotCalled(t, "BatchWriteItem", mock.Anything, mock.Anything)
}

func TestLoader_Load_OmitsNA(t *testing.T) {
	client := &MockDBClient{}
	l := New(client, "users")

	tbl := table.FromDocuments([]bson.D{
		{{Key: "name", Value: "Alice"}, {Key: "age", Value: "na"}},
		{{Key: "name", Value: "Bob"}, {Key: "age", Value: int32(30)}},
	}, table.IDField)

	var sent []types.WriteRequest
	client.On("BatchWriteItem", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(*dynamodb.BatchWriteItemInput).RequestItems["users"]
	}).Return(&dynamodb.BatchWriteItemOutput{}, nil)

	_, err := l.Load(context.Background(), tbl)
	require.NoError(t, err)
	require.Len(t, sent, 2)

	alice := sent[0].PutRequest.Item
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Alice"}, alice["name"])
	assert.NotContains(t, alice, "age")

	bob := sent[1].PutRequest.Item
	assert.Equal(t, &types.AttributeValueMemberN{Value: "30"}, bob["age"])
}

func TestLoader_Load_RetriesUnprocessedItems(t *testing.T) {
	client := &MockDBClient{}
	l := New(client, "users", WithRetryConfig(fastRetry(3)))

	tbl := usersTable(3)
	leftover := []types.WriteRequest{{PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{
		"name": &types.AttributeValueMemberS{Value: "user-2"},
	}}}}

	client.On("BatchWriteItem", mock.Anything, batchOf(3)).Return(&dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{"users": leftover},
	}, nil).Once()
	client.On("BatchWriteItem", mock.Anything, batchOf(1)).Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()

	written, err := l.Load(context.Background(), tbl)

	require.NoError(t, err)
	assert.Equal(t, 3, written)
	client.AssertExpectations(t)
}

func TestLoader_Load_UnprocessedItemsExhausted(t *testing.T) {
	client := &MockDBClient{}
	recorder := &mockRecorder{}
	l := New(client, "users", WithRetryConfig(fastRetry(2)), WithMetrics(recorder))

	leftover := []types.WriteRequest{{PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{}}}}
	client.On("BatchWriteItem", mock.Anything, mock.Anything).Return(&dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{"users": leftover},
	}, nil)
	recorder.On("IncrementLoadErrors", "users", "unprocessed").Once()

	written, err := l.Load(context.Background(), usersTable(2))

	require.Error(t, err)
	assert.Zero(t, written)
	var opErr *common.DatabaseOperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "batch write (unprocessed items)", opErr.Op)
	client.AssertNumberOfCalls(t, "BatchWriteItem", 3)
	recorder.AssertExpectations(t)
}

func TestLoader_Load_WriteErrorIsNotRetried(t *testing.T) {
	client := &MockDBClient{}
	l := New(client, "users", WithRetryConfig(fastRetry(5)))

	client.On("BatchWriteItem", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	_, err := l.Load(context.Background(), usersTable(1))

	require.Error(t, err)
	var opErr *common.DatabaseOperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "batch write", opErr.Op)
	assert.Contains(t, err.Error(), "access denied")
	client.AssertNumberOfCalls(t, "BatchWriteItem", 1)
}

func TestLoader_Load_MarshalError(t *testing.T) {
	client := &MockDBClient{}
	recorder := &mockRecorder{}
	l := New(client, "users",
		WithMetrics(recorder),
		WithMarshal(func(any) (map[string]types.AttributeValue, error) {
			return nil, errors.New("cannot marshal")
		}))
	recorder.On("IncrementLoadErrors", "users", "marshal").Once()

	_, err := l.Load(context.Background(), usersTable(1))

	var valErr *common.DataValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "marshal", valErr.Op)
	client.AssertNotCalled(t, "BatchWriteItem", mock.Anything, mock.Anything)
	recorder.AssertExpectations(t)
}

func TestLoader_Load_ContextCancelled(t *testing.T) {
	client := &MockDBClient{}
	l := New(client, "users")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Load(ctx, usersTable(1))

	assert.ErrorIs(t, err, context.Canceled)
	client.AssertNotCalled(t, "BatchWriteItem", mock.Anything, mock.Anything)
}

func TestItemValue(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	row := map[string]any{
		"id":      oid,
		"created": primitive.NewDateTimeFromTime(when),
		"address": bson.D{{Key: "city", Value: "Oslo"}},
		"tags":    primitive.A{"a", oid},
		"score":   3.5,
	}

	item := toItem(row)

	assert.Equal(t, oid.Hex(), item["id"])
	assert.Equal(t, "2024-05-01T12:00:00Z", item["created"])
	assert.Equal(t, map[string]any{"city": "Oslo"}, item["address"])
	assert.Equal(t, []any{"a", oid.Hex()}, item["tags"])
	assert.Equal(t, 3.5, item["score"])
}

func TestItemValue_NonFiniteFloats(t *testing.T) {
	item := toItem(map[string]any{"nan": math.NaN(), "inf": math.Inf(-1), "nested": bson.D{{Key: "v", Value: math.Inf(1)}}})

	assert.Nil(t, item["nan"])
	assert.Nil(t, item["inf"])
	assert.Equal(t, map[string]any{"v": nil}, item["nested"])

	_, err := attributevalue.MarshalMap(item)
	assert.NoError(t, err)
}
