package store

import "time"

// Artifact contains the fields of a compiled contract artifact saved to DB. Data is the artifact JSON document as
// produced by the build tooling.
type Artifact struct {
	Name    string    `json:"contractName" bson:"name"`
	Data    []byte    `json:"data" bson:"data"`
	Updated time.Time `json:"updated" bson:"updated"`
}
