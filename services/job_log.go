package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stock_refresher/models"
)

// MongoDB names for the job audit log
const (
	MongoDBName            = "stock_refresher"
	MongoJobsCollection    = "refresh_jobs"
	mongoConnectionTimeout = 30 * time.Second
)

// MongoJobLog stores one audit document per refresh invocation in a
// MongoDB collection. Append-only: documents are inserted once and
// never updated. When MONGODB_URI is unset the log is disabled and
// every write is a no-op, mirroring how the rest of the service
// degrades without optional backends.
type MongoJobLog struct {
	client      *mongo.Client
	collection  *mongo.Collection
	isConnected bool
	lastError   string
}

// NewMongoJobLog initializes the job log from MONGODB_URI.
func NewMongoJobLog() (*MongoJobLog, error) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Println("MONGODB_URI not set, job audit log disabled")
		return &MongoJobLog{
			lastError: "MONGODB_URI environment variable not set",
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectionTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(mongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(mongoConnectionTimeout).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Printf("Failed to connect to MongoDB: %v", err)
		return &MongoJobLog{lastError: err.Error()}, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Printf("Failed to ping MongoDB: %v", err)
		client.Disconnect(ctx)
		return &MongoJobLog{lastError: err.Error()}, err
	}

	log.Println("Job audit log connected to MongoDB")
	return &MongoJobLog{
		client:      client,
		collection:  client.Database(MongoDBName).Collection(MongoJobsCollection),
		isConnected: true,
	}, nil
}

// IsConnected reports whether the audit log has a live backend.
func (l *MongoJobLog) IsConnected() bool {
	return l != nil && l.isConnected
}

// Write appends one job record. No-op when the log is disabled.
func (l *MongoJobLog) Write(ctx context.Context, job models.RefreshJob) error {
	if !l.IsConnected() {
		return nil
	}

	_, err := l.collection.InsertOne(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to insert job record %s: %w", job.JobID, err)
	}
	return nil
}

// Recent returns the most recent job records, newest first.
func (l *MongoJobLog) Recent(ctx context.Context, limit int) ([]models.RefreshJob, error) {
	if !l.IsConnected() {
		return []models.RefreshJob{}, nil
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := l.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query job records: %w", err)
	}
	defer cursor.Close(ctx)

	var jobs []models.RefreshJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode job records: %w", err)
	}
	return jobs, nil
}

// Close disconnects from MongoDB.
func (l *MongoJobLog) Close() error {
	if !l.IsConnected() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.client.Disconnect(ctx)
}
