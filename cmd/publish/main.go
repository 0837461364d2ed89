// Package main: publish tool.
//
// Deployment tooling that saves the compiled contract artifacts of a build directory into the artifact store, so the
// adoption service can load them with "artifacts": "db:". Every artifact is validated first and, when the network
// profile has a fixed network id, it has to be deployed to that network.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tarancss/adoption/lib/config"
	"github.com/tarancss/adoption/lib/contract"
	"github.com/tarancss/adoption/lib/store"
	"github.com/tarancss/adoption/lib/store/db"
)

// ErrNoArtifacts is returned when the build directory has no artifacts.
var ErrNoArtifacts = errors.New("no artifacts found")

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	dir := flag.String("d", "build/contracts", "directory with the compiled contract artifacts")
	network := flag.String("n", "", "network profile the artifacts are deployed to, overrides the configuration")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	if *network != "" {
		conf.Network = *network
	}

	networks, err := config.LoadNetworks(conf.NetworksFile)
	if err != nil {
		panic(err)
	}

	profile, err := networks.Get(conf.Network)
	if err != nil {
		panic(err)
	}

	// connect to database
	dbConn, err := db.New(conf.DBType, conf.DBConn)
	if err != nil {
		panic(err)
	}

	defer func() {
		errClose := db.Close(conf.DBType, dbConn)
		log.Printf("Disconnecting %v database, err:%v", conf.DBType, errClose)
	}()

	n, err := publish(*dir, dbConn, profile)
	log.Printf("[%s] Published %d artifacts from %s, err:%v", profile.Name, n, *dir, err)
}

// publish saves every artifact in dir to the store and returns how many were saved.
func publish(dir string, s store.DB, p config.Profile) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}

	if len(files) == 0 {
		return 0, fmt.Errorf("%s: %w", dir, ErrNoArtifacts)
	}

	n := 0

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return n, err
		}

		a, err := contract.ParseArtifact(data)
		if err != nil {
			return n, fmt.Errorf("%s: %w", file, err)
		}

		name := a.ContractName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(file), ".json")
		}

		if p.NetworkID != config.NetworkIDAny {
			if _, err = a.Descriptor(p.NetworkID); err != nil {
				return n, err
			}
		}

		if err = s.SaveArtifact(store.Artifact{Name: name, Data: data, Updated: time.Now().UTC()}); err != nil {
			return n, fmt.Errorf("cannot save %s: %w", name, err)
		}

		log.Printf("[%s] Artifact %s saved", p.Name, name)

		n++
	}

	return n, nil
}
