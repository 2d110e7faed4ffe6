package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"assembly-ledger/pkg/domain"
)

// RecordDocument is the MongoDB shape of a ledger row. The composite identity
// is the document id.
type RecordDocument struct {
	ID                       string            `bson:"_id"`
	SessionNumber            string            `bson:"session_number"`
	SessionDate              string            `bson:"session_date"`
	PageURL                  string            `bson:"page_url,omitempty"`
	AgendaURL                string            `bson:"agenda_url,omitempty"`
	ProvisionalTranscriptURL string            `bson:"provisional_transcript_url,omitempty"`
	FinalTranscriptURL       string            `bson:"final_transcript_url,omitempty"`
	AttachmentURL            string            `bson:"attachment_url,omitempty"`
	VideoID                  string            `bson:"video_id"`
	VideoDate                string            `bson:"video_date"`
	VideoTime                string            `bson:"video_time"`
	StreamURL                string            `bson:"stream_url,omitempty"`
	VideoPageURL             string            `bson:"video_page_url,omitempty"`
	ExternalID               string            `bson:"external_id,omitempty"`
	LastCheck                string            `bson:"last_check,omitempty"`
	Status                   string            `bson:"status,omitempty"`
	FailureReason            string            `bson:"failure_reason,omitempty"`
	Extra                    map[string]string `bson:"extra,omitempty"`
}

// NewRecordDocument converts a ledger row.
func NewRecordDocument(rec domain.VideoRecord) RecordDocument {
	return RecordDocument{
		ID:                       rec.Identity().String(),
		SessionNumber:            rec.SessionNumber,
		SessionDate:              rec.SessionDate,
		PageURL:                  rec.PageURL,
		AgendaURL:                rec.AgendaURL,
		ProvisionalTranscriptURL: rec.ProvisionalTranscriptURL,
		FinalTranscriptURL:       rec.FinalTranscriptURL,
		AttachmentURL:            rec.AttachmentURL,
		VideoID:                  rec.VideoID,
		VideoDate:                rec.VideoDate,
		VideoTime:                rec.VideoTime,
		StreamURL:                rec.StreamURL,
		VideoPageURL:             rec.VideoPageURL,
		ExternalID:               rec.ExternalID,
		LastCheck:                rec.LastCheck,
		Status:                   rec.Status,
		FailureReason:            rec.FailureReason,
		Extra:                    rec.Extra,
	}
}

// Client wraps the MongoDB client and the mirror collection.
type Client struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	collection  *mongo.Collection
}

// NewClient creates a new database client. Connection errors surface in Connect.
func NewClient(connectionString, databaseName, collectionName string) *Client {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return &Client{}
	}

	database := mongoClient.Database(databaseName)
	collection := database.Collection(collectionName)

	return &Client{
		mongoClient: mongoClient,
		database:    database,
		collection:  collection,
	}
}

// Connect verifies the connection to MongoDB.
func (c *Client) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// SaveRecords upserts documents by id in one unordered bulk write and
// returns how many were inserted or modified.
func (c *Client) SaveRecords(ctx context.Context, docs []RecordDocument) (int64, error) {
	if c.collection == nil {
		return 0, fmt.Errorf("collection not initialized")
	}
	if len(docs) == 0 {
		return 0, nil
	}

	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	res, err := c.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("bulk upsert: %w", err)
	}
	return res.UpsertedCount + res.ModifiedCount, nil
}

// DeleteExcept removes every document whose id is not in keep.
func (c *Client) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	if c.collection == nil {
		return 0, fmt.Errorf("collection not initialized")
	}
	if keep == nil {
		keep = []string{}
	}
	res, err := c.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$nin": keep}})
	if err != nil {
		return 0, fmt.Errorf("delete stale documents: %w", err)
	}
	return res.DeletedCount, nil
}
