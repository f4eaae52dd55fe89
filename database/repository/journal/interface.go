package journalRepo

import (
	"context"

	"pagoda/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// OutcomeJournal stores terminal session outcomes for auditing and reconciliation.
type OutcomeJournal interface {
	Append(ctx context.Context, outcome models.SessionOutcome) (string, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.SessionOutcome, error)
	ListByPage(ctx context.Context, pageID string) ([]models.SessionOutcome, error)
	EnsureIndexes(ctx context.Context) error
}

type mongoOutcomeJournal struct {
	coll *mongo.Collection
}

// NewMongoOutcomeJournal returns an OutcomeJournal backed by the session_outcomes collection.
func NewMongoOutcomeJournal(db *mongo.Database) OutcomeJournal {
	return &mongoOutcomeJournal{
		coll: db.Collection("session_outcomes"),
	}
}
