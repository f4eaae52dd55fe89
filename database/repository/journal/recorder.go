package journalRepo

import (
	"context"

	"pagoda/models"

	"go.uber.org/zap"
)

// Recorder writes outcomes to a journal and logs failures, since a session cannot act on them.
type Recorder struct {
	Journal OutcomeJournal
	Logger  *zap.Logger
}

func (r Recorder) RecordOutcome(ctx context.Context, outcome models.SessionOutcome) {
	id, err := r.Journal.Append(ctx, outcome)
	if r.Logger == nil {
		return
	}
	if err != nil {
		r.Logger.Error("failed to journal session outcome",
			zap.String("page_id", outcome.PageID),
			zap.String("booking_id", outcome.BookingID),
			zap.String("state", string(outcome.State)),
			zap.Error(err),
		)
		return
	}
	r.Logger.Debug("session outcome journaled", zap.String("outcome_id", id), zap.String("state", string(outcome.State)))
}
