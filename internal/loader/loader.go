package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"mongotable/internal/common"
	"mongotable/internal/dynamo"
	"mongotable/internal/retry"
	"mongotable/internal/table"
)

// batchSize is the BatchWriteItem limit.
const batchSize = 25

var errUnprocessedItems = errors.New("unprocessed items remain")

// DBClient defines the interface for DynamoDB operations used by Loader.
type DBClient interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// MarshalFunc converts an item to DynamoDB attribute values.
type MarshalFunc func(item any) (map[string]types.AttributeValue, error)

// Recorder receives load measurements. *metrics.Metrics implements it.
type Recorder interface {
	AddLoadedItems(table string, count int)
	IncrementLoadErrors(table, errorType string)
}

// Loader writes table rows into a DynamoDB table.
type Loader struct {
	client   DBClient
	table    string
	marshal  MarshalFunc
	retry    *retry.Config
	logger   *zap.Logger
	recorder Recorder
	progress func(written int)
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the recorder that receives load measurements.
func WithMetrics(recorder Recorder) Option {
	return func(l *Loader) {
		l.recorder = recorder
	}
}

// WithRetryConfig sets how unprocessed items are retried.
func WithRetryConfig(cfg *retry.Config) Option {
	return func(l *Loader) {
		if cfg != nil {
			l.retry = cfg
		}
	}
}

// WithProgress registers fn to be called with the size of every written batch.
func WithProgress(fn func(written int)) Option {
	return func(l *Loader) {
		l.progress = fn
	}
}

// WithMarshal replaces the attribute value marshaller.
func WithMarshal(marshal MarshalFunc) Option {
	return func(l *Loader) {
		if marshal != nil {
			l.marshal = marshal
		}
	}
}

// New creates a loader that writes to tableName through client.
func New(client DBClient, tableName string, opts ...Option) *Loader {
	l := &Loader{
		client:  client,
		table:   tableName,
		marshal: attributevalue.MarshalMap,
		retry:   retry.NewConfig(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.retry.WithLogger(l.logger)
	return l
}

// NewDataLoader connects to DynamoDB and returns a loader for the configured table.
func NewDataLoader(ctx context.Context, cfg common.ConfigProvider, opts ...Option) (*Loader, error) {
	client, err := dynamo.Connect(ctx, cfg)
	if err != nil {
		return nil, &common.DatabaseConnectionError{Database: "DynamoDB", Reason: err.Error(), Err: err}
	}
	defaults := []Option{WithRetryConfig(retry.NewConfig().WithMaxRetries(cfg.GetMaxRetries()))}
	return New(client, cfg.GetDynamoTable(), append(defaults, opts...)...), nil
}

// Load writes every row of t as one item and returns the number of items written.
// NA cells are left out of the item.
func (l *Loader) Load(ctx context.Context, t *table.Table) (int, error) {
	written := 0
	pending := make([]types.WriteRequest, 0, batchSize)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := l.batchWrite(ctx, pending); err != nil {
			return err
		}
		written += len(pending)
		if l.recorder != nil {
			l.recorder.AddLoadedItems(l.table, len(pending))
		}
		if l.progress != nil {
			l.progress(len(pending))
		}
		l.logger.Debug("batch written", zap.String("table", l.table), zap.Int("items", len(pending)), zap.Int("total", written))
		pending = make([]types.WriteRequest, 0, batchSize)
		return nil
	}

	for i := 0; i < t.Len(); i++ {
		av, err := l.marshal(toItem(t.Row(i)))
		if err != nil {
			l.recordError("marshal")
			return written, &common.DataValidationError{
				Database: "DynamoDB",
				Op:       "marshal",
				Reason:   fmt.Sprintf("row %d: %v", i, err),
				Err:      err,
			}
		}
		pending = append(pending, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})

		if len(pending) == batchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}

	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

// batchWrite sends one batch and resends unprocessed items with backoff.
func (l *Loader) batchWrite(ctx context.Context, writeRequests []types.WriteRequest) error {
	remaining := writeRequests

	err := retry.DoWithConfig(ctx, l.retry, func(ctx context.Context) error {
		output, err := l.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{l.table: remaining},
		})
		if err != nil {
			return retry.Permanent(&common.DatabaseOperationError{
				Database: "DynamoDB",
				Op:       "batch write",
				Reason:   err.Error(),
				Err:      err,
			})
		}
		unprocessed := output.UnprocessedItems[l.table]
		if len(unprocessed) == 0 {
			return nil
		}
		remaining = unprocessed
		return errUnprocessedItems
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errUnprocessedItems):
		l.recordError("unprocessed")
		return &common.DatabaseOperationError{
			Database: "DynamoDB",
			Op:       "batch write (unprocessed items)",
			Reason:   fmt.Sprintf("%d items still unprocessed after %d retries", len(remaining), l.retry.MaxRetries),
			Err:      err,
		}
	default:
		l.recordError("batch_write")
		return err
	}
}

func (l *Loader) recordError(errorType string) {
	if l.recorder != nil {
		l.recorder.IncrementLoadErrors(l.table, errorType)
	}
}
