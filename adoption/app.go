// Package adoption implements the pet adoption service: the page model of the pets up for adoption, the scan that
// marks the pets already adopted in the contract and the adopt action, served over a RESTful API.
package adoption

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/adoption/lib/config"
	"github.com/tarancss/adoption/lib/msg"
	"github.com/tarancss/adoption/watcher"
)

// Errors returned by the service.
var (
	ErrNoInstance = errors.New("contract instance not available")
	ErrNoWatch    = errors.New("contract instance does not support watches")
	ErrBadPet     = errors.New("invalid pet id")
)

// Accounts resolves the accounts transactions can be sent from. *block.Client implements it.
type Accounts interface {
	Accounts(ctx context.Context) ([]common.Address, error)
}

// Contract is the deployed Adoption contract. *contract.Adoption implements it.
type Contract interface {
	Adopters(ctx context.Context) ([]common.Address, error)
	Adopt(ctx context.Context, petID uint64, from common.Address) (*etypes.Receipt, error)
}

// Watchable is implemented by contracts whose events can be watched.
type Watchable interface {
	Watch(ctx context.Context, event string, src watcher.LogSource, opts watcher.Options) (*watcher.Subscription, error)
}

// Loader fetches the contract artifact and binds the deployed instance.
type Loader func(ctx context.Context) (Contract, error)

// Options of the service. Network is the name of the network profile in use. A nil Broker disables publishing events
// and a nil Logger logs to the standard logger. ID tags the events this instance publishes, a random one is used when
// empty.
type Options struct {
	ID        string
	Network   string
	Contract  string
	Pets      []Pet
	Networks  config.Networks
	Broker    msg.MsgBroker
	Logger    *log.Logger
	RateLimit int
	RateBurst int
}

// App contains the data necessary to deliver the service. The contract instance is bound once and never re-bound.
type App struct {
	id       string
	net      string
	contract string
	accounts Accounts
	load     Loader
	l        sync.Mutex // l guards inst
	inst     Contract
	page     *Page
	networks config.Networks
	mb       msg.MsgBroker
	log      *log.Logger
	limiter  *clientLimiter
	wl       sync.Mutex // wl guards subs
	subs     []*watcher.Subscription
	chains   sync.WaitGroup // adopt chains in flight
	s        *http.Server   // http server
	ss       *http.Server   // https server
	sc       chan struct{}  // http server channel used for graceful shutdowns
}

// New returns a pointer to a new adoption service. No I/O is done until Init.
func New(acc Accounts, load Loader, opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	if opts.Contract == "" {
		opts.Contract = config.ContractDefault
	}

	if opts.ID == "" {
		opts.ID = newID()
	}

	return &App{
		id:       opts.ID,
		net:      opts.Network,
		contract: opts.Contract,
		accounts: acc,
		load:     load,
		page:     NewPage(opts.Pets),
		networks: opts.Networks,
		mb:       opts.Broker,
		log:      opts.Logger,
		limiter:  newClientLimiter(opts.RateLimit, opts.RateBurst),
		sc:       make(chan struct{}),
	}
}

// Page returns the page model.
func (a *App) Page() *Page {
	return a.page
}

// Deployed returns the deployed contract instance, loading it on the first call that succeeds. Loads are not
// serialised, a hung load only blocks its caller. When loads race the first one to succeed is kept.
func (a *App) Deployed(ctx context.Context) (Contract, error) {
	a.l.Lock()
	inst := a.inst
	a.l.Unlock()

	if inst != nil {
		return inst, nil
	}

	if a.load == nil {
		return nil, ErrNoInstance
	}

	c, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	a.l.Lock()
	defer a.l.Unlock()

	if a.inst == nil {
		a.inst = c
	}

	return a.inst, nil
}

// Init loads the contract instance and marks the pets already adopted. If the contract cannot be loaded the error is
// logged and the service keeps running without an instance.
func (a *App) Init(ctx context.Context) {
	if _, err := a.Deployed(ctx); err != nil {
		a.log.Printf("[%s] Error loading contract %s: %v", a.net, a.contract, err)

		return
	}

	a.log.Printf("[%s] Contract %s loaded", a.net, a.contract)

	a.MarkAdopted(ctx)
}

// newID returns a random instance id.
func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}

	return hex.EncodeToString(b)
}

// Wait blocks until the adopt chains in flight have finished.
func (a *App) Wait() {
	a.chains.Wait()
}

// Stop shuts down the http servers implementing the RESTful API and cancels the event watches. Adopt chains in
// flight are not cancelled.
func (a *App) Stop() {
	var err error
	// shutdown http servers
	if a.s != nil {
		if err = a.s.Shutdown(context.Background()); err != nil {
			a.log.Printf("Error in http server shutdown:%v", err)
		}
	}

	if a.ss != nil {
		if err = a.ss.Shutdown(context.Background()); err != nil {
			a.log.Printf("Error in https server shutdown:%v", err)
		}
	}

	a.Unwatch()

	close(a.sc) // close server channel to indicate shutdowns have finished
}
