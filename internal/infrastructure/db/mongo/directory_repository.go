package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/schooltrack/alert-engine/internal/core/ports"
)

// DirectoryRepository implements ports.DirectoryRepository using MongoDB.
type DirectoryRepository struct {
	db *mongo.Database
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(db *mongo.Database) ports.DirectoryRepository {
	return &DirectoryRepository{db: db}
}

type deviceRef struct {
	DeviceID bson.RawValue `bson:"deviceId"`
}

// DevicesByBranches follows each branch's device references to the tracker
// ids. Branch ids that are not valid ObjectIDs match nothing.
func (r *DirectoryRepository) DevicesByBranches(ctx context.Context, branchIDs []string) ([]string, error) {
	oids := objectIDs(branchIDs)
	if len(oids) == 0 {
		return nil, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": oids}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         collDevices,
			"localField":   "devices",
			"foreignField": "_id",
			"as":           "device",
		}}},
		{{Key: "$unwind", Value: "$device"}},
		{{Key: "$project", Value: bson.M{"_id": 0, "deviceId": "$device.deviceId"}}},
	}

	cursor, err := r.db.Collection(collBranches).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate branch devices: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeDeviceRefs(ctx, cursor)
}

// DevicesByParent returns the devices of the buses the parent's children ride.
func (r *DirectoryRepository) DevicesByParent(ctx context.Context, parentID string) ([]string, error) {
	oid, err := primitive.ObjectIDFromHex(parentID)
	if err != nil {
		return nil, nil
	}

	opts := options.Find().SetProjection(bson.M{"_id": 0, "deviceId": 1})
	cursor, err := r.db.Collection(collChildren).Find(ctx, bson.M{"parentId": oid}, opts)
	if err != nil {
		return nil, fmt.Errorf("find children: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeDeviceRefs(ctx, cursor)
}

func decodeDeviceRefs(ctx context.Context, cursor *mongo.Cursor) ([]string, error) {
	var refs []deviceRef
	if err := cursor.All(ctx, &refs); err != nil {
		return nil, fmt.Errorf("decode device refs: %w", err)
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if id := idString(ref.DeviceID); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}
