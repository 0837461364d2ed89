// Package store defines the interface for database implementations of the contract artifact store.
package store

import (
	"errors"
)

// DB defines required methods for artifact stores
type DB interface {
	// methods for deployment tooling
	SaveArtifact(Artifact) error
	// methods for the adoption service
	LoadArtifact(string) (Artifact, error)
}

// Errors returned
var (
	ErrDataNotFound = errors.New("data was not found in store")
	ErrNoName       = errors.New("artifact has no contract name")
)
