package adoption

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/adoption/lib/block/types"
)

var (
	accountA = common.HexToAddress("0xf4cefc8d1afaa51d5a5e7f57d214b60429ca4378")
	accountB = common.HexToAddress("0xabc0000000000000000000000000000000000001")
)

// logBuf is a log output safe for concurrent use.
type logBuf struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buf.Write(p)
}

// count returns the number of lines logged containing s.
func (l *logBuf) count(s string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return strings.Count(l.buf.String(), s)
}

// fakeAccounts resolves a fixed account list.
type fakeAccounts struct {
	accounts []common.Address
	err      error
}

func (f fakeAccounts) Accounts(context.Context) ([]common.Address, error) {
	return f.accounts, f.err
}

// fakeContract keeps the adopters in memory.
type fakeContract struct {
	mu        sync.Mutex
	adopters  []common.Address
	readErr   error
	adoptErr  error
	reads     int
	adoptions int
}

func newFakeContract(n int) *fakeContract {
	return &fakeContract{adopters: make([]common.Address, n)}
}

func (f *fakeContract) Adopters(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}

	adopters := make([]common.Address, len(f.adopters))
	copy(adopters, f.adopters)

	return adopters, nil
}

func (f *fakeContract) Adopt(_ context.Context, petID uint64, from common.Address) (*etypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.adoptions++
	if f.adoptErr != nil {
		return nil, f.adoptErr
	}

	f.adopters[petID] = from

	return &etypes.Receipt{Status: etypes.ReceiptStatusSuccessful, TxHash: common.HexToHash("0x02"), BlockNumber: big.NewInt(7)}, nil
}

func (f *fakeContract) calls() (reads, adoptions int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.reads, f.adoptions
}

func pets(n int) []Pet {
	p := make([]Pet, n)
	for i := range p {
		p[i] = Pet{ID: i, Name: "pet" + string(rune('A'+i))}
	}

	return p
}

func newApp(acc Accounts, c Contract, n int) (*App, *logBuf) {
	lb := &logBuf{}

	load := func(context.Context) (Contract, error) { return c, nil }
	if c == nil {
		load = nil
	}

	return New(acc, load, Options{Network: "test", Pets: pets(n), Logger: log.New(lb, "", 0)}), lb
}

func checkPanels(t *testing.T, name string, p *Page, adopted ...int) {
	t.Helper()

	want := make(map[int]bool)
	for _, i := range adopted {
		want[i] = true
	}

	for i, panel := range p.Panels() {
		if want[i] {
			if panel.Button.Label != LabelSuccess || !panel.Button.Disabled {
				t.Errorf("[%s] panel %d should be adopted: %+v", name, i, panel.Button)
			}
		} else if panel.Button.Label != LabelAdopt || panel.Button.Disabled {
			t.Errorf("[%s] panel %d should be available: %+v", name, i, panel.Button)
		}
	}
}

// TestMarkAdopted checks the scan marks only the pets with an adopter, is idempotent and monotonic.
func TestMarkAdopted(t *testing.T) {
	c := newFakeContract(3)
	c.adopters[1] = accountB

	a, _ := newApp(fakeAccounts{}, c, 3)

	a.MarkAdopted(context.Background())
	checkPanels(t, "first", a.Page(), 1)

	first := a.Page().Panels()

	a.MarkAdopted(context.Background())
	checkPanels(t, "second", a.Page(), 1)

	for i, p := range a.Page().Panels() {
		if p != first[i] {
			t.Errorf("scan is not idempotent at panel %d: %+v %+v", i, first[i], p)
		}
	}

	// the contract forgetting the adopter does not make the pet available again
	c.mu.Lock()
	c.adopters[1] = common.Address{}
	c.mu.Unlock()

	a.MarkAdopted(context.Background())
	checkPanels(t, "monotonic", a.Page(), 1)
}

// TestMarkAdoptedErrors checks scan failures are logged and leave the page untouched.
func TestMarkAdoptedErrors(t *testing.T) {
	// no instance
	a, lb := newApp(fakeAccounts{}, nil, 3)
	a.MarkAdopted(context.Background())
	checkPanels(t, "no_instance", a.Page())

	if lb.count("Error scanning adoptions") != 1 {
		t.Errorf("expected one logged error without instance")
	}

	// read failure
	c := newFakeContract(3)
	c.readErr = errors.New("connection refused")
	a, lb = newApp(fakeAccounts{}, c, 3)
	a.MarkAdopted(context.Background())
	checkPanels(t, "read", a.Page())

	if lb.count("connection refused") != 1 {
		t.Errorf("expected one logged read error")
	}

	// more adopters than pets in the page
	c = newFakeContract(16)
	c.adopters[15] = accountB
	c.adopters[0] = accountA
	a, _ = newApp(fakeAccounts{}, c, 3)
	a.MarkAdopted(context.Background())
	checkPanels(t, "beyond", a.Page(), 0)
}

// TestHandleAdopt checks a successful adoption is followed by exactly one scan that shows the pet adopted.
func TestHandleAdopt(t *testing.T) {
	c := newFakeContract(3)
	a, lb := newApp(fakeAccounts{accounts: []common.Address{accountA, accountB}}, c, 3)

	r, err := a.HandleAdopt(context.Background(), 2)
	if err != nil || r == nil {
		t.Fatalf("HandleAdopt error:%v", err)
	}

	reads, adoptions := c.calls()
	if reads != 1 || adoptions != 1 {
		t.Errorf("expected 1 scan and 1 adoption but got %d and %d", reads, adoptions)
	}

	if c.adopters[2] != accountA {
		t.Errorf("pet 2 should be adopted by the first account but is %s", c.adopters[2].Hex())
	}

	checkPanels(t, "adopted", a.Page(), 2)

	for _, s := range []State{ResolvingAccount, Submitting, Rescanning, Idle} {
		if lb.count("Adopt pet 2: "+s.String()) != 1 {
			t.Errorf("state %s not logged once", s)
		}
	}

	if lb.count(Failed.String()) != 0 {
		t.Errorf("no failure expected")
	}
}

// TestHandleAdoptFailures checks failures are logged once, stop the chain and do not rescan.
func TestHandleAdoptFailures(t *testing.T) {
	cases := []struct {
		name      string
		acc       fakeAccounts
		adoptErr  error
		pet       int
		err       error
		adoptions int
	}{
		{"accounts", fakeAccounts{err: errors.New("node unreachable")}, nil, 1, nil, 0},
		{"no_accounts", fakeAccounts{accounts: []common.Address{}}, nil, 1, types.ErrNoAccounts, 0},
		{"adopt", fakeAccounts{accounts: []common.Address{accountA}}, errors.New("transaction reverted"), 1, nil, 1},
		{"bad_pet", fakeAccounts{accounts: []common.Address{accountA}}, nil, -1, ErrBadPet, 0},
	}

	for _, cs := range cases {
		c := newFakeContract(3)
		c.adoptErr = cs.adoptErr
		a, lb := newApp(cs.acc, c, 3)

		_, err := a.HandleAdopt(context.Background(), cs.pet)
		if err == nil || (cs.err != nil && !errors.Is(err, cs.err)) {
			t.Errorf("[%s] unexpected error %v", cs.name, err)
		}

		if n := lb.count(Failed.String()); n != 1 {
			t.Errorf("[%s] expected one logged error but got %d", cs.name, n)
		}

		reads, adoptions := c.calls()
		if reads != 0 || adoptions != cs.adoptions {
			t.Errorf("[%s] expected no scan and %d adoptions but got %d and %d", cs.name, cs.adoptions, reads, adoptions)
		}

		checkPanels(t, cs.name, a.Page())
	}
}

// TestDeployed checks the contract instance is loaded once.
func TestDeployed(t *testing.T) {
	loads := 0
	c := newFakeContract(3)
	loadErr := errors.New("artifact not found")

	a := New(fakeAccounts{}, func(context.Context) (Contract, error) {
		loads++
		if loads == 1 {
			return nil, loadErr
		}

		return c, nil
	}, Options{Logger: log.New(&logBuf{}, "", 0)})

	// a failed load is retried on the next lookup
	if _, err := a.Deployed(context.Background()); !errors.Is(err, loadErr) {
		t.Errorf("expected load error but got %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := a.Deployed(context.Background())
		if err != nil || got != c {
			t.Errorf("Deployed error:%v", err)
		}
	}

	if loads != 2 {
		t.Errorf("expected 2 loads but got %d", loads)
	}
}

// TestDeployedHungLoad checks a load that does not return does not block other lookups.
func TestDeployedHungLoad(t *testing.T) {
	c := newFakeContract(3)
	release := make(chan struct{})

	var loads int32

	a := New(fakeAccounts{}, func(context.Context) (Contract, error) {
		if atomic.AddInt32(&loads, 1) == 1 {
			<-release

			return newFakeContract(3), nil
		}

		return c, nil
	}, Options{Logger: log.New(&logBuf{}, "", 0)})

	done := make(chan Contract)

	go func() {
		got, _ := a.Deployed(context.Background())
		done <- got
	}()

	for atomic.LoadInt32(&loads) == 0 {
		time.Sleep(time.Millisecond)
	}

	if got, err := a.Deployed(context.Background()); err != nil || got != c {
		t.Errorf("Deployed error:%v", err)
	}

	close(release)

	// the first instance loaded is kept
	if got := <-done; got != c {
		t.Errorf("hung load replaced the instance")
	}
}

// TestInit checks the initial scan and that a failed load does not stop the service.
func TestInit(t *testing.T) {
	c := newFakeContract(3)
	c.adopters[0] = accountB
	a, _ := newApp(fakeAccounts{}, c, 3)
	a.Init(context.Background())
	checkPanels(t, "init", a.Page(), 0)

	a = New(fakeAccounts{}, func(context.Context) (Contract, error) {
		return nil, errors.New("not deployed")
	}, Options{Pets: pets(3), Logger: log.New(&logBuf{}, "", 0)})
	a.Init(context.Background())
	checkPanels(t, "init_failed", a.Page())
}

func TestPage(t *testing.T) {
	p := NewPage(pets(2))
	if p.MarkAdopted(2) || p.MarkAdopted(-1) {
		t.Errorf("out of range panels should be ignored")
	}

	if !p.MarkAdopted(1) || p.Adopted() != 1 {
		t.Errorf("panel 1 should be adopted")
	}

	// Panels returns a copy
	panels := p.Panels()
	panels[0].Button.Label = "changed"

	if p.Panels()[0].Button.Label != LabelAdopt {
		t.Errorf("page modified through a copy of its panels")
	}

	list, err := LoadPets("../cmd/pets.json")
	if err != nil || len(list) != 16 || list[15].ID != 15 {
		t.Errorf("LoadPets error:%v pets:%d", err, len(list))
	}
}
