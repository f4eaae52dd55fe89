package journalRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pagoda/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Append inserts an outcome and returns its ID.
func (r *mongoOutcomeJournal) Append(ctx context.Context, outcome models.SessionOutcome) (string, error) {
	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now()
	}

	if _, err := r.coll.InsertOne(ctx, outcome); err != nil {
		return "", fmt.Errorf("append outcome: %w", err)
	}
	return outcome.ID, nil
}

// ListByBooking returns every outcome recorded for a booking, oldest first.
func (r *mongoOutcomeJournal) ListByBooking(ctx context.Context, bookingID string) ([]models.SessionOutcome, error) {
	if bookingID == "" {
		return nil, errors.New("booking id required")
	}
	return r.find(ctx, bson.M{"bookingId": bookingID})
}

// ListByPage returns the outcomes produced by one page, oldest first.
func (r *mongoOutcomeJournal) ListByPage(ctx context.Context, pageID string) ([]models.SessionOutcome, error) {
	return r.find(ctx, bson.M{"pageId": pageID})
}

func (r *mongoOutcomeJournal) find(ctx context.Context, filter bson.M) ([]models.SessionOutcome, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var outcomes []models.SessionOutcome
	if err := cursor.All(ctx, &outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// EnsureIndexes creates the indexes the journal queries rely on.
func (r *mongoOutcomeJournal) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "bookingId", Value: 1}, {Key: "recordedAt", Value: 1}},
			Options: options.Index().SetName("booking_recorded_idx"),
		},
		{
			Keys:    bson.D{{Key: "pageId", Value: 1}},
			Options: options.Index().SetName("page_idx"),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create outcome indexes: %w", err)
	}
	return nil
}
