package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
)

// AttendanceRepository implements ports.AttendanceRepository using MongoDB.
type AttendanceRepository struct {
	db *mongo.Database
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(db *mongo.Database) ports.AttendanceRepository {
	return &AttendanceRepository{db: db}
}

type attendanceDoc struct {
	ChildID    bson.RawValue `bson:"childId"`
	DeviceID   bson.RawValue `bson:"deviceId"`
	SchoolID   bson.RawValue `bson:"schoolId"`
	BranchID   bson.RawValue `bson:"branchId"`
	Pickup     bool          `bson:"pickup"`
	Drop       bool          `bson:"drop"`
	PickupTime string        `bson:"pickupTime"`
	DropTime   string        `bson:"dropTime"`
}

// ListAttendance returns the records for date (dd-mm-yyyy). Records without a
// child are skipped since they cannot be keyed.
func (r *AttendanceRepository) ListAttendance(ctx context.Context, date string) ([]domain.AttendanceRecord, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"date": date}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         collChildren,
			"localField":   "childId",
			"foreignField": "_id",
			"as":           "child",
		}}},
		{{Key: "$project", Value: bson.M{
			"childId":    1,
			"schoolId":   1,
			"branchId":   1,
			"pickup":     1,
			"drop":       1,
			"pickupTime": 1,
			"dropTime":   1,
			"deviceId":   firstOf("$child.deviceId"),
		}}},
	}

	cursor, err := r.db.Collection(collAttendance).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate attendance: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []attendanceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode attendance: %w", err)
	}

	out := make([]domain.AttendanceRecord, 0, len(docs))
	for _, d := range docs {
		childID := idString(d.ChildID)
		if childID == "" {
			continue
		}
		out = append(out, domain.AttendanceRecord{
			ChildID:    childID,
			DeviceID:   idString(d.DeviceID),
			SchoolID:   idString(d.SchoolID),
			BranchID:   idString(d.BranchID),
			Pickup:     d.Pickup,
			Drop:       d.Drop,
			PickupTime: d.PickupTime,
			DropTime:   d.DropTime,
		})
	}
	return out, nil
}
