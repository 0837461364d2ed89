package contract

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/adoption/lib/block"
	"github.com/tarancss/adoption/lib/block/blocktest"
	"github.com/tarancss/adoption/lib/config"
	"github.com/tarancss/adoption/lib/store"
	"github.com/tarancss/adoption/watcher"
)

const network = "5777"

var (
	deployed = common.HexToAddress("0x345cA3e014Aaf5dcA488057592ee47305D9B3e10")
	adopter  = common.HexToAddress("0xf4cefc8d1afaa51d5a5e7f57d214b60429ca4378")
)

func artifact(t *testing.T) *Artifact {
	t.Helper()

	data, err := os.ReadFile("testdata/Adoption.json")
	if err != nil {
		t.Fatalf("Error reading artifact:%v", err)
	}

	a, err := ParseArtifact(data)
	if err != nil {
		t.Fatalf("Error parsing artifact:%v", err)
	}

	return a
}

// TestParseArtifact checks the required fields of an artifact.
func TestParseArtifact(t *testing.T) {
	a := artifact(t)
	if a.ContractName != AdoptionName || len(a.Networks) != 1 {
		t.Errorf("unexpected artifact %+v", a)
	}

	noABI, _ := os.ReadFile("testdata/NoABI.json")

	cases := []struct {
		name string
		data string
		err  error
	}{
		{"no_abi", string(noABI), ErrNoABI},
		{"null_abi", `{"contractName":"X","abi":null,"networks":{}}`, ErrNoABI},
		{"no_networks", `{"contractName":"X","abi":[]}`, ErrNoNetworks},
	}

	for _, c := range cases {
		if _, err := ParseArtifact([]byte(c.data)); !errors.Is(err, c.err) {
			t.Errorf("[%s] expected %v but got %v", c.name, c.err, err)
		}
	}

	if _, err := ParseArtifact([]byte(`{"abi":`)); err == nil {
		t.Errorf("invalid json should not parse")
	}
}

// TestDescriptor checks the deployed address is picked by network id.
func TestDescriptor(t *testing.T) {
	a := artifact(t)

	d, err := a.Descriptor(network)
	if err != nil {
		t.Fatalf("Descriptor error:%v", err)
	}

	if d.Address != deployed || d.NetworkID != network || d.Name != AdoptionName {
		t.Errorf("unexpected descriptor %+v", d)
	}

	if _, ok := d.ABI.Methods[methodAdopters]; !ok {
		t.Errorf("descriptor abi has no %s", methodAdopters)
	}

	if _, err = a.Descriptor("1"); !errors.Is(err, ErrNotDeployed) {
		t.Errorf("expected ErrNotDeployed but got %v", err)
	}
}

// memDB is an in memory artifact store.
type memDB map[string]store.Artifact

func (m memDB) SaveArtifact(a store.Artifact) error {
	m[a.Name] = a

	return nil
}

func (m memDB) LoadArtifact(name string) (store.Artifact, error) {
	a, ok := m[name]
	if !ok {
		return store.Artifact{}, store.ErrDataNotFound
	}

	return a, nil
}

// TestSources checks every kind of artifact source.
func TestSources(t *testing.T) {
	data, _ := os.ReadFile("testdata/Adoption.json")

	srv := httptest.NewServer(http.FileServer(http.Dir("testdata")))
	defer srv.Close()

	db := memDB{}
	_ = db.SaveArtifact(store.Artifact{Name: AdoptionName, Data: data})

	if _, err := NewSource("db:", nil); !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore but got %v", err)
	}

	for _, loc := range []string{"testdata", srv.URL, srv.URL + "/", "db:"} {
		src, err := NewSource(loc, db)
		if err != nil {
			t.Errorf("[%s] NewSource error:%v", loc, err)

			continue
		}

		got, err := src.Fetch(context.Background(), AdoptionName)
		if err != nil {
			t.Errorf("[%s] Fetch error:%v", loc, err)

			continue
		}

		if string(got) != string(data) {
			t.Errorf("[%s] fetched a different artifact", loc)
		}

		if _, err = src.Fetch(context.Background(), "Missing"); err == nil {
			t.Errorf("[%s] fetching a missing artifact should fail", loc)
		}
	}
}

type fixedNetwork string

func (f fixedNetwork) NetworkID(context.Context) (string, error) {
	return string(f), nil
}

// TestDeployed checks the network profile restricts the network ids accepted.
func TestDeployed(t *testing.T) {
	src := DirSource("testdata")

	d, err := Deployed(context.Background(), src, AdoptionName, fixedNetwork(network), config.Profile{Name: "local", NetworkID: config.NetworkIDAny})
	if err != nil || d.Address != deployed {
		t.Errorf("Deployed error:%v descriptor:%+v", err, d)
	}

	_, err = Deployed(context.Background(), src, AdoptionName, fixedNetwork(network), config.Profile{Name: "main", NetworkID: "1"})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork but got %v", err)
	}

	_, err = Deployed(context.Background(), src, AdoptionName, fixedNetwork("3"), config.Profile{Name: "ropsten", NetworkID: "3"})
	if !errors.Is(err, ErrNotDeployed) {
		t.Errorf("expected ErrNotDeployed but got %v", err)
	}
}

func adoptionOn(t *testing.T, n *blocktest.Node) *Adoption {
	t.Helper()

	d, err := artifact(t).Descriptor(network)
	if err != nil {
		t.Fatalf("Descriptor error:%v", err)
	}

	p, err := n.Dial()
	if err != nil {
		t.Fatalf("Error dialing mock node:%v", err)
	}

	return NewAdoption(d, block.BuildClient(p, block.Endpoint, nil, 0))
}

// TestAdopters checks the getAdopters result is decoded by pet id.
func TestAdopters(t *testing.T) {
	n := blocktest.NewNode()
	defer n.Close()

	a := adoptionOn(t, n)

	var list [16]common.Address
	list[3] = adopter

	out, err := a.ABI.Methods[methodAdopters].Outputs.Pack(list)
	if err != nil {
		t.Fatalf("Error packing adopters:%v", err)
	}

	n.Set("eth_call", hexutil.Encode(out))

	adopters, err := a.Adopters(context.Background())
	if err != nil {
		t.Fatalf("Adopters error:%v", err)
	}

	if len(adopters) != 16 || adopters[3] != adopter || adopters[0] != (common.Address{}) {
		t.Errorf("unexpected adopters %v", adopters)
	}

	// no code at the address
	n.Set("eth_call", "0x")

	if _, err = a.Adopters(context.Background()); !errors.Is(err, ErrNoCode) {
		t.Errorf("expected ErrNoCode but got %v", err)
	}
}

// TestAdopt checks the adopt transaction is sent to the contract and its receipt awaited.
func TestAdopt(t *testing.T) {
	n := blocktest.NewNode()
	defer n.Close()

	a := adoptionOn(t, n)
	hash := "0x6a1c0a5d7e3b1c4f8a6b3c1e2d9f0a7b5c4d3e2f1a0b9c8d7e6f5a4b3c2d1e0f"

	var sent struct {
		From string `json:"from"`
		To   string `json:"to"`
		Data string `json:"data"`
	}

	n.SetFunc("eth_sendTransaction", func(params []json.RawMessage) (interface{}, error) {
		if len(params) == 1 {
			_ = json.Unmarshal(params[0], &sent)
		}

		return hash, nil
	})
	n.Set("eth_getTransactionReceipt", blocktest.Receipt(hash, 1))

	r, err := a.Adopt(context.Background(), 3, adopter)
	if err != nil {
		t.Fatalf("Adopt error:%v", err)
	}

	if r.TxHash != common.HexToHash(hash) {
		t.Errorf("unexpected receipt %+v", r)
	}

	input, _ := a.ABI.Pack(methodAdopt, big.NewInt(3))
	if !strings.EqualFold(sent.From, adopter.Hex()) || !strings.EqualFold(sent.To, deployed.Hex()) || sent.Data != hexutil.Encode(input) {
		t.Errorf("unexpected transaction %+v", sent)
	}
}

// TestDecodeLog checks indexed and non indexed event arguments are decoded.
func TestDecodeLog(t *testing.T) {
	d, err := artifact(t).Descriptor(network)
	if err != nil {
		t.Fatalf("Descriptor error:%v", err)
	}

	a := Bind(d, nil)
	ev := a.ABI.Events[AdoptedEvent]

	data, err := ev.Inputs.NonIndexed().Pack(adopter)
	if err != nil {
		t.Fatalf("Error packing event data:%v", err)
	}

	l := etypes.Log{
		Address:     deployed,
		Topics:      []common.Hash{ev.ID, common.BigToHash(big.NewInt(7))},
		Data:        data,
		BlockNumber: 12,
		TxHash:      common.HexToHash("0x01"),
		Index:       2,
	}

	e, err := a.DecodeLog(l)
	if err != nil {
		t.Fatalf("DecodeLog error:%v", err)
	}

	petID, _ := e.Args["petId"].(*big.Int)
	if e.Name != AdoptedEvent || e.Contract != AdoptionName || e.Block != 12 || e.Index != 2 ||
		petID == nil || petID.Int64() != 7 || e.Args["adopter"] != adopter {
		t.Errorf("unexpected event %+v", e)
	}

	l.Topics = []common.Hash{common.HexToHash("0x1234")}
	if _, err = a.DecodeLog(l); !errors.Is(err, ErrNoEvent) {
		t.Errorf("expected ErrNoEvent but got %v", err)
	}

	if _, err = a.Watch(context.Background(), "Missing", nil, watcher.Options{}); !errors.Is(err, ErrNoEvent) {
		t.Errorf("expected ErrNoEvent from Watch but got %v", err)
	}
}
