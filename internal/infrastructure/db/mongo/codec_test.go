package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func raw(t *testing.T, v any) bson.RawValue {
	t.Helper()
	typ, data, err := bson.MarshalValue(v)
	if err != nil {
		t.Fatalf("marshal %v: %v", v, err)
	}
	return bson.RawValue{Type: typ, Value: data}
}

func TestIDString(t *testing.T) {
	oid := primitive.NewObjectID()

	tests := []struct {
		name string
		in   bson.RawValue
		want string
	}{
		{"string", raw(t, "4711"), "4711"},
		{"int32", raw(t, int32(4711)), "4711"},
		{"int64", raw(t, int64(4711)), "4711"},
		{"double", raw(t, float64(4711)), "4711"},
		{"object id", raw(t, oid), oid.Hex()},
		{"null", bson.RawValue{Type: bsontype.Null}, ""},
		{"missing", bson.RawValue{}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := idString(tc.in); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObjectIDsSkipsInvalid(t *testing.T) {
	oid := primitive.NewObjectID()
	got := objectIDs([]string{oid.Hex(), "not-an-id", ""})
	if len(got) != 1 || got[0] != oid {
		t.Fatalf("expected only %s, got %v", oid.Hex(), got)
	}
}
