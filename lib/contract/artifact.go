// Package contract binds compiled contract artifacts to a node connection. An artifact is the JSON document produced by
// the build tooling: the contract ABI and the address it was deployed at on every network.
package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/adoption/lib/config"
)

// Errors returned when loading artifacts.
var (
	ErrNoABI       = errors.New("artifact has no abi")
	ErrNoNetworks  = errors.New("artifact has no networks")
	ErrNotDeployed = errors.New("contract not deployed to detected network")
	ErrNetwork     = errors.New("network id not accepted by network profile")
)

// Deployment is the address of a contract in one network.
type Deployment struct {
	Address         string `json:"address"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// Artifact is a compiled contract.
type Artifact struct {
	ContractName string                `json:"contractName"`
	ABI          json.RawMessage       `json:"abi"`
	Networks     map[string]Deployment `json:"networks"`

	abi abi.ABI
}

// ParseArtifact decodes an artifact document. The abi and networks fields are required.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("cannot decode artifact: %w", err)
	}

	if len(a.ABI) == 0 || bytes.Equal(a.ABI, []byte("null")) {
		return nil, ErrNoABI
	}

	if a.Networks == nil {
		return nil, ErrNoNetworks
	}

	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return nil, fmt.Errorf("cannot parse abi of %s: %w", a.ContractName, err)
	}

	a.abi = parsed

	return &a, nil
}

// Descriptor is a contract interface bound to its deployed address on one network.
type Descriptor struct {
	Name      string
	NetworkID string
	Address   common.Address
	ABI       abi.ABI
}

// Descriptor returns the descriptor of the contract deployed on the given network.
func (a *Artifact) Descriptor(networkID string) (Descriptor, error) {
	d, ok := a.Networks[networkID]
	if !ok || !common.IsHexAddress(d.Address) {
		return Descriptor{}, fmt.Errorf("%s on network %s: %w", a.ContractName, networkID, ErrNotDeployed)
	}

	return Descriptor{
		Name:      a.ContractName,
		NetworkID: networkID,
		Address:   common.HexToAddress(d.Address),
		ABI:       a.abi,
	}, nil
}

// Network reports the network id of a node.
type Network interface {
	NetworkID(ctx context.Context) (string, error)
}

// Deployed fetches the artifact of the named contract from src and returns its descriptor for the network the node
// is on. The network id has to be accepted by the profile.
func Deployed(ctx context.Context, src Source, name string, net Network, p config.Profile) (Descriptor, error) {
	data, err := src.Fetch(ctx, name)
	if err != nil {
		return Descriptor{}, err
	}

	a, err := ParseArtifact(data)
	if err != nil {
		return Descriptor{}, err
	}

	id, err := net.NetworkID(ctx)
	if err != nil {
		return Descriptor{}, err
	}

	if !p.Matches(id) {
		return Descriptor{}, fmt.Errorf("%s expects %s but node is on %s: %w", p.Name, p.NetworkID, id, ErrNetwork)
	}

	return a.Descriptor(id)
}
