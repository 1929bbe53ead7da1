package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
)

// GeofenceRepository implements ports.GeofenceRepository using MongoDB.
type GeofenceRepository struct {
	db *mongo.Database
}

// NewGeofenceRepository creates a new GeofenceRepository.
func NewGeofenceRepository(db *mongo.Database) ports.GeofenceRepository {
	return &GeofenceRepository{db: db}
}

type geofenceDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Name     string             `bson:"name"`
	Area     string             `bson:"area"`
	DeviceID bson.RawValue      `bson:"deviceId"`
}

// ListGeofences returns every geofence with its area string unparsed.
func (r *GeofenceRepository) ListGeofences(ctx context.Context) ([]domain.Geofence, error) {
	opts := options.Find().SetProjection(bson.M{"name": 1, "area": 1, "deviceId": 1})
	cursor, err := r.db.Collection(collGeofences).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find geofences: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []geofenceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode geofences: %w", err)
	}

	out := make([]domain.Geofence, 0, len(docs))
	for _, d := range docs {
		g := domain.Geofence{ID: d.ID.Hex(), Name: d.Name, Area: d.Area}
		if id := idString(d.DeviceID); id != "" {
			g.DeviceID = &id
		}
		out = append(out, g)
	}
	return out, nil
}
