// Package store persists saved locations in MongoDB. A saved location pins a
// reach to a device so the refresher knows which forecasts to keep warm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/riverwatch/river-flow-service/internal/domain"
)

// ErrNotFound reports that no saved location matched the given id.
var ErrNotFound = errors.New("saved location not found")

// SavedLocation is one pinned reach for a device.
type SavedLocation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeviceID  string             `bson:"deviceId"      json:"deviceId"`
	ReachID   domain.ReachID     `bson:"reachId"       json:"reachId"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	Latitude  float64            `bson:"latitude"      json:"latitude"`
	Longitude float64            `bson:"longitude"     json:"longitude"`
	CreatedAt time.Time          `bson:"createdAt"     json:"createdAt"`
}

// Locations is the saved-location repository.
type Locations struct {
	coll *mongo.Collection
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// NewLocations returns the repository bound to the savedLocations collection.
func NewLocations(db *mongo.Database) *Locations {
	return &Locations{coll: db.Collection("savedLocations")}
}

// Create inserts a saved location and fills in its generated id.
func (l *Locations) Create(ctx context.Context, loc *SavedLocation) error {
	loc.CreatedAt = time.Now().UTC()
	res, err := l.coll.InsertOne(ctx, loc)
	if err != nil {
		return fmt.Errorf("insert saved location: %w", err)
	}
	loc.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// ListByDevice returns a device's saved locations, newest first.
func (l *Locations) ListByDevice(ctx context.Context, deviceID string) ([]SavedLocation, error) {
	cur, err := l.coll.Find(ctx, bson.M{"deviceId": deviceID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find saved locations: %w", err)
	}
	defer cur.Close(ctx)

	var out []SavedLocation
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode saved locations: %w", err)
	}
	return out, nil
}

// Delete removes a saved location owned by the device. Returns ErrNotFound
// when nothing matched, so callers can distinguish a bad id from a db error.
func (l *Locations) Delete(ctx context.Context, deviceID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := l.coll.DeleteOne(ctx, bson.M{"_id": oid, "deviceId": deviceID})
	if err != nil {
		return fmt.Errorf("delete saved location: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AllReachIDs returns the distinct reaches pinned by any device. The
// refresher uses this set to decide what to keep warm.
func (l *Locations) AllReachIDs(ctx context.Context) ([]domain.ReachID, error) {
	raw, err := l.coll.Distinct(ctx, "reachId", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct reach ids: %w", err)
	}
	ids := make([]domain.ReachID, 0, len(raw))
	for _, v := range raw {
		ids = append(ids, domain.NewReachID(v))
	}
	return ids, nil
}
