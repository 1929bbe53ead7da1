package mongo

import (
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// idString renders an identifier field as a string. Device ids are stored as
// numbers or strings depending on which admin screen wrote the record; other
// references are ObjectIDs. Missing and null values yield "".
func idString(v bson.RawValue) string {
	switch v.Type {
	case bsontype.String:
		return v.StringValue()
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	case bsontype.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case bsontype.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case bsontype.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	default:
		return ""
	}
}

// objectIDs converts hex ids, skipping anything that is not a valid ObjectID.
func objectIDs(hex []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(hex))
	for _, h := range hex {
		if oid, err := primitive.ObjectIDFromHex(h); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

// firstOf picks the first element of an array field produced by $lookup.
func firstOf(field string) bson.M {
	return bson.M{"$arrayElemAt": bson.A{field, 0}}
}
