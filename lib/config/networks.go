package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// NetworkIDAny matches whatever network id the node reports.
const NetworkIDAny = "*"

// Profile is a named network the service or the deployment tooling can connect to.
type Profile struct {
	Name      string `yaml:"-" json:"name"`
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	NetworkID string `yaml:"network_id" json:"networkId"`
}

// Networks maps profile names to their profile.
type Networks map[string]Profile

// DefaultNetworks are used when no networks file is given.
var DefaultNetworks = Networks{ //nolint:gochecknoglobals // defaults, like the ones in config.go
	"development": {Name: "development", Host: "ledger", Port: 8545, NetworkID: NetworkIDAny},
	"local":       {Name: "local", Host: "localhost", Port: 8545, NetworkID: NetworkIDAny},
}

// Errors returned when reading network profiles.
var (
	ErrNoProfile   = errors.New("network profile not found")
	ErrBadProfile  = errors.New("network profile requires host and port")
	ErrNoNetworkID = errors.New("network profile requires a network_id")
)

type networksFile struct {
	Networks map[string]Profile `yaml:"networks"`
}

// LoadNetworks reads the network profiles from a YAML file. An empty filename returns the default profiles.
func LoadNetworks(filename string) (Networks, error) {
	if filename == "" {
		return DefaultNetworks, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}

	var nf networksFile
	if err = yaml.Unmarshal(data, &nf); err != nil {
		return nil, fmt.Errorf("failed to parse networks file: %w", err)
	}

	n := make(Networks, len(nf.Networks))

	for name, p := range nf.Networks {
		p.Name = name
		if p.Host == "" || p.Port == 0 {
			return nil, fmt.Errorf("%s: %w", name, ErrBadProfile)
		}

		if p.NetworkID == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrNoNetworkID)
		}

		n[name] = p
	}

	return n, nil
}

// Get returns the profile with the given name.
func (n Networks) Get(name string) (Profile, error) {
	p, ok := n[name]
	if !ok {
		return Profile{}, fmt.Errorf("%s: %w", name, ErrNoProfile)
	}

	return p, nil
}

// Names returns the profile names sorted.
func (n Networks) Names() []string {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// URL returns the HTTP JSON-RPC endpoint of the profile.
func (p Profile) URL() string {
	return "http://" + p.Host + ":" + strconv.Itoa(p.Port)
}

// Matches reports whether id is accepted by the profile's network id matcher.
func (p Profile) Matches(id string) bool {
	return p.NetworkID == NetworkIDAny || p.NetworkID == id
}
