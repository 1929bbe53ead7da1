package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
)

// PreferenceRepository implements ports.PreferenceRepository using MongoDB.
type PreferenceRepository struct {
	db *mongo.Database
}

// NewPreferenceRepository creates a new PreferenceRepository.
func NewPreferenceRepository(db *mongo.Database) ports.PreferenceRepository {
	return &PreferenceRepository{db: db}
}

type preferenceDoc struct {
	DeviceID           bson.RawValue `bson:"deviceId"`
	IgnitionOn         bool          `bson:"ignitionOn"`
	IgnitionOff        bool          `bson:"ignitionOff"`
	GeofenceEnter      bool          `bson:"geofenceEnter"`
	GeofenceExit       bool          `bson:"geofenceExit"`
	StudentPresent     bool          `bson:"studentPresent"`
	StudentAbsent      bool          `bson:"studentAbsent"`
	LeaveRequestStatus bool          `bson:"leaveRequestStatus"`
}

func (r *PreferenceRepository) ListPreferences(ctx context.Context) ([]domain.NotificationPreference, error) {
	cursor, err := r.db.Collection(collPreferences).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find notification types: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []preferenceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode notification types: %w", err)
	}

	out := make([]domain.NotificationPreference, 0, len(docs))
	for _, d := range docs {
		id := idString(d.DeviceID)
		if id == "" {
			continue
		}
		out = append(out, domain.NotificationPreference{
			DeviceID:           id,
			IgnitionOn:         d.IgnitionOn,
			IgnitionOff:        d.IgnitionOff,
			GeofenceEnter:      d.GeofenceEnter,
			GeofenceExit:       d.GeofenceExit,
			StudentPresent:     d.StudentPresent,
			StudentAbsent:      d.StudentAbsent,
			LeaveRequestStatus: d.LeaveRequestStatus,
		})
	}
	return out, nil
}
