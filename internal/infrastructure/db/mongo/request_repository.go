package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
)

// RequestRepository implements ports.RequestRepository using MongoDB.
type RequestRepository struct {
	db *mongo.Database
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db *mongo.Database) ports.RequestRepository {
	return &RequestRepository{db: db}
}

type requestDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	ChildID     bson.RawValue      `bson:"childId"`
	DeviceID    bson.RawValue      `bson:"deviceId"`
	ParentID    bson.RawValue      `bson:"parentId"`
	SchoolID    bson.RawValue      `bson:"schoolId"`
	BranchID    bson.RawValue      `bson:"branchId"`
	RequestType string             `bson:"requestType"`
	Status      string             `bson:"statusOfRequest"`
}

// ListRequests returns every request with the device of the child it concerns.
func (r *RequestRepository) ListRequests(ctx context.Context) ([]domain.RequestRecord, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         collChildren,
			"localField":   "childId",
			"foreignField": "_id",
			"as":           "child",
		}}},
		{{Key: "$project", Value: bson.M{
			"childId":         1,
			"parentId":        1,
			"schoolId":        1,
			"branchId":        1,
			"requestType":     1,
			"statusOfRequest": 1,
			"deviceId":        firstOf("$child.deviceId"),
		}}},
	}

	cursor, err := r.db.Collection(collRequests).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate requests: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []requestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}

	out := make([]domain.RequestRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.RequestRecord{
			ID:          d.ID.Hex(),
			ChildID:     idString(d.ChildID),
			DeviceID:    idString(d.DeviceID),
			ParentID:    idString(d.ParentID),
			SchoolID:    idString(d.SchoolID),
			BranchID:    idString(d.BranchID),
			RequestType: d.RequestType,
			Status:      d.Status,
		})
	}
	return out, nil
}
