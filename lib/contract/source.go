package contract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tarancss/adoption/lib/store"
)

const timeout = 15

// ErrNoStore is returned by NewSource when artifacts are to be read from a database that is not configured.
var ErrNoStore = errors.New("artifact store not configured")

// Source fetches artifact documents by contract name.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// NewSource returns the source for loc: "db:" reads from the artifact store, http:// and https:// URLs are fetched
// over HTTP, anything else is a directory.
func NewSource(loc string, db store.DB) (Source, error) {
	switch {
	case loc == "db:":
		if db == nil {
			return nil, ErrNoStore
		}

		return StoreSource{DB: db}, nil
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return HTTPSource{Base: loc}, nil
	}

	return DirSource(loc), nil
}

// DirSource reads <dir>/<name>.json.
type DirSource string

// Fetch reads the artifact file.
func (d DirSource) Fetch(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(string(d), name+".json"))
	if err != nil {
		return nil, fmt.Errorf("cannot read artifact %s: %w", name, err)
	}

	return data, nil
}

// HTTPSource gets <Base>/<name>.json. The default http client with a timeout is used when Client is nil.
type HTTPSource struct {
	Base   string
	Client *http.Client
}

// Fetch gets the artifact document.
func (h HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	c := h.Client
	if c == nil {
		c = &http.Client{Timeout: timeout * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(h.Base, "/")+"/"+name+".json", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot get artifact %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot get artifact %s: %s", name, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// StoreSource loads artifacts saved in the artifact store.
type StoreSource struct {
	DB store.DB
}

// Fetch loads the artifact document.
func (s StoreSource) Fetch(_ context.Context, name string) ([]byte, error) {
	a, err := s.DB.LoadArtifact(name)
	if err != nil {
		return nil, fmt.Errorf("cannot load artifact %s: %w", name, err)
	}

	return a.Data, nil
}
