package exporter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	goMongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"mongotable/internal/common"
	"mongotable/internal/config"
	"mongotable/internal/mongo"
	"mongotable/internal/table"
)

// DefaultMongoBatchSize is the number of documents fetched from MongoDB per round trip.
const DefaultMongoBatchSize = 1000

// ErrEmptyCollectionName is returned when Export is called without a collection name.
var ErrEmptyCollectionName = errors.New("collection name cannot be empty")

// Collection defines the interface for MongoDB collection operations needed by the exporter.
type Collection interface {
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (Cursor, error)
}

// Cursor defines the interface for MongoDB cursor operations needed by the exporter.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Close(ctx context.Context) error
	Err() error
}

// Store addresses collections on one connection that is bound to a default database.
type Store interface {
	Collection(database, name string) Collection
	DefaultDatabase() string
	Disconnect(ctx context.Context) error
}

// Recorder receives export measurements. *metrics.Metrics implements it.
type Recorder interface {
	RecordExport(collection, database, status string, rows, columns int, duration time.Duration)
	IncrementExportErrors(collection, database, op string)
}

// CollectionExporter reads whole collections and returns them as tables.
// It is not safe for concurrent use.
type CollectionExporter struct {
	store     Store
	batchSize int
	logger    *zap.Logger
	recorder  Recorder
}

// Option configures a CollectionExporter.
type Option func(*CollectionExporter)

// WithLogger sets the logger used for export diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(e *CollectionExporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the recorder that receives export measurements.
func WithMetrics(recorder Recorder) Option {
	return func(e *CollectionExporter) {
		e.recorder = recorder
	}
}

// WithBatchSize sets the MongoDB cursor batch size, capped at math.MaxInt32.
func WithBatchSize(size int) Option {
	return func(e *CollectionExporter) {
		if size > 0 {
			e.batchSize = min(size, math.MaxInt32)
		}
	}
}

// New connects to MongoDB and binds the exporter to the configured default database.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*CollectionExporter, error) {
	database := cfg.GetMongoDB()
	if database == "" {
		database = config.DefaultDatabaseName
	}
	client, err := mongo.Connect(ctx, cfg, database)
	if err != nil {
		return nil, common.NewDataAccessError("connect", err)
	}
	return NewWithStore(&mongoStore{client: client}, opts...), nil
}

// NewWithStore creates an exporter on top of an existing store.
func NewWithStore(store Store, opts ...Option) *CollectionExporter {
	e := &CollectionExporter{
		store:     store,
		batchSize: DefaultMongoBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type exportOptions struct {
	database string
}

// ExportOption configures a single Export call.
type ExportOption func(*exportOptions)

// WithDatabase reads the collection from database instead of the default one.
func WithDatabase(database string) ExportOption {
	return func(o *exportOptions) {
		if database != "" {
			o.database = database
		}
	}
}

// Export reads every document of collectionName and returns them as a table without the
// identifier column and with "na" values replaced by table.NA.
// Every failure is returned as *common.DataAccessError.
func (e *CollectionExporter) Export(ctx context.Context, collectionName string, opts ...ExportOption) (tbl *table.Table, err error) {
	o := exportOptions{database: e.store.DefaultDatabase()}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	log := e.logger.With(zap.String("database", o.database), zap.String("collection", collectionName))

	defer func() {
		if r := recover(); r != nil {
			tbl = nil
			err = common.NewDataAccessError("export", fmt.Errorf("panic while building table: %v", r))
		}
		e.record(collectionName, o.database, tbl, err, time.Since(start))
		if err != nil {
			log.Error("export failed", zap.Error(err))
		}
	}()

	if collectionName == "" {
		return nil, common.NewDataAccessError("export", ErrEmptyCollectionName)
	}

	log.Debug("exporting collection")

	docs, err := e.readAll(ctx, e.store.Collection(o.database, collectionName))
	if err != nil {
		return nil, common.NewDataAccessError("export", err)
	}

	tbl = table.FromDocuments(docs, table.IDField)

	log.Debug("collection exported",
		zap.Int("rows", tbl.Len()),
		zap.Int("columns", tbl.Width()),
		zap.Duration("elapsed", time.Since(start)))
	return tbl, nil
}

// readAll drains an unfiltered find over collection. Documents are decoded as bson.D so
// the field order of each document is kept.
func (e *CollectionExporter) readAll(ctx context.Context, collection Collection) ([]bson.D, error) {
	findOptions := options.Find().SetBatchSize(int32(e.batchSize))

	cursor, err := collection.Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return nil, &common.DatabaseOperationError{Database: "MongoDB", Op: "find", Reason: err.Error(), Err: err}
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			e.logger.Debug("failed to close cursor", zap.Error(err))
		}
	}()

	var docs []bson.D
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, &common.DataValidationError{
				Database: "MongoDB",
				Op:       "decode",
				Reason:   err.Error(),
				Err:      err,
			}
		}
		docs = append(docs, doc)
	}

	if err := cursor.Err(); err != nil {
		return nil, &common.DatabaseOperationError{Database: "MongoDB", Op: "cursor", Reason: err.Error(), Err: err}
	}
	return docs, nil
}

func (e *CollectionExporter) record(collection, database string, tbl *table.Table, err error, elapsed time.Duration) {
	if e.recorder == nil {
		return
	}
	if err != nil {
		op := "export"
		var dbErr *common.DatabaseOperationError
		var valErr *common.DataValidationError
		switch {
		case errors.As(err, &dbErr):
			op = dbErr.Op
		case errors.As(err, &valErr):
			op = valErr.Op
		}
		e.recorder.IncrementExportErrors(collection, database, op)
		e.recorder.RecordExport(collection, database, "failure", 0, 0, elapsed)
		return
	}
	e.recorder.RecordExport(collection, database, "success", tbl.Len(), tbl.Width(), elapsed)
}

// Close disconnects the underlying store.
func (e *CollectionExporter) Close(ctx context.Context) error {
	if err := e.store.Disconnect(ctx); err != nil {
		return common.NewDataAccessError("close", err)
	}
	return nil
}

// mongoStore adapts *mongo.Client to Store.
type mongoStore struct {
	client *mongo.Client
}

func (s *mongoStore) Collection(database, name string) Collection {
	return &mongoCollectionWrapper{s.client.Collection(database, name)}
}

func (s *mongoStore) DefaultDatabase() string {
	return s.client.DefaultDatabase()
}

func (s *mongoStore) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// mongoCollectionWrapper wraps *mongo.Collection to implement Collection interface.
type mongoCollectionWrapper struct {
	Collection *goMongo.Collection
}

// Find executes a MongoDB find operation on the wrapped collection.
func (w *mongoCollectionWrapper) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (Cursor, error) {
	cursor, err := w.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return &mongoCursorWrapper{cursor}, nil
}

// mongoCursorWrapper wraps *mongo.Cursor to implement Cursor interface.
type mongoCursorWrapper struct {
	*goMongo.Cursor
}
