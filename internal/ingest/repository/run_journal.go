package repository

import (
	"context"

	"video_ingest_service/internal/ingest/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RunJournal append-only log of pipeline runs
type RunJournal interface {
	Record(ctx context.Context, run domain.IngestRun) error
	RecentByOwner(ctx context.Context, ownerID string, limit int64) ([]domain.IngestRun, error)
}

type mongoRunJournal struct {
	coll *mongo.Collection
}

// NewMongoRunJournal create a RunJournal on the ingest_runs collection
func NewMongoRunJournal(db *mongo.Database) RunJournal {
	return &mongoRunJournal{
		coll: db.Collection("ingest_runs"),
	}
}

// EnsureIndexes owner + started_at for RecentByOwner
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("ingest_runs").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "started_at", Value: -1}},
	})
	return err
}

func (r *mongoRunJournal) Record(ctx context.Context, run domain.IngestRun) error {
	_, err := r.coll.InsertOne(ctx, run)
	return err
}

// RecentByOwner 最新的在前
func (r *mongoRunJournal) RecentByOwner(ctx context.Context, ownerID string, limit int64) ([]domain.IngestRun, error) {
	opts := options.Find()
	opts.SetSort(bson.M{"started_at": -1})
	opts.SetLimit(limit)

	cur, err := r.coll.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	runs := []domain.IngestRun{}
	if err := cur.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
