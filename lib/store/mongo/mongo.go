// Package mongo implements the interface for MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarancss/adoption/lib/store"
)

// Database and collection holding the artifacts.
const (
	Database   = "artifacts"
	Collection = "contracts"
)

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

// SaveArtifact inserts the artifact or replaces the one with the same contract name.
func (m *Mongo) SaveArtifact(a store.Artifact) error {
	if a.Name == "" {
		return store.ErrNoName
	}

	if a.Updated.IsZero() {
		a.Updated = time.Now().UTC()
	}

	_, err := m.c.Database(Database).Collection(Collection).UpdateOne(context.Background(),
		bson.M{"name": a.Name}, // filter
		bson.D{ // update
			{
				Key: "$set", Value: bson.D{
					{Key: "name", Value: a.Name},
					{Key: "data", Value: a.Data},
					{Key: "updated", Value: a.Updated},
				},
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("could not save artifact %s in db: %w", a.Name, err)
	}

	return nil
}

// LoadArtifact loads from db the artifact of the named contract.
func (m *Mongo) LoadArtifact(name string) (a store.Artifact, err error) {
	sr := m.c.Database(Database).Collection(Collection).FindOne(context.Background(), bson.M{"name": name})
	if err = sr.Decode(&a); errors.Is(err, mgo.ErrNoDocuments) {
		err = store.ErrDataNotFound
	}

	return
}

// DeleteArtifact deletes from db the artifact of the named contract.
func (m *Mongo) DeleteArtifact(name string) (err error) {
	_, err = m.c.Database(Database).Collection(Collection).DeleteOne(context.Background(), bson.M{"name": name},
		options.Delete())

	return
}
