package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
)

var _ ports.AlertRepository = (*AlertRepository)(nil)

// AlertRepository implements ports.AlertRepository using MongoDB.
type AlertRepository struct {
	db *mongo.Database
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{db: db}
}

// EnsureIndexes creates the indexes the alert history screens query by.
func (r *AlertRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "deviceId", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}}},
	}

	_, err := r.db.Collection(collAlerts).Indexes().CreateMany(ctx, indexes)
	return err
}

// InsertAlerts appends the batch in one unordered bulk insert. A partial
// failure leaves the written documents in place.
func (r *AlertRepository) InsertAlerts(ctx context.Context, events []domain.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]any, len(events))
	for i, e := range events {
		e.Timestamp = e.Timestamp.UTC()
		docs[i] = e
	}

	_, err := r.db.Collection(collAlerts).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		return fmt.Errorf("%w: %d of %d alerts rejected: %w", domain.ErrPersistence, len(bwe.WriteErrors), len(events), err)
	}
	return fmt.Errorf("%w: insert alerts: %w", domain.ErrPersistence, err)
}
