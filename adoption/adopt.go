package adoption

import (
	"context"
	"fmt"

	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/tarancss/adoption/lib/block/types"
)

// AdoptEvent is the name of the event published to the message broker when an adoption succeeds.
const AdoptEvent = "adopt"

// State of an adopt chain.
type State int

// Adopt chain states. A chain goes Idle, ResolvingAccount, Submitting, Rescanning and back to Idle, or to Failed from
// ResolvingAccount or Submitting.
const (
	Idle State = iota
	ResolvingAccount
	Submitting
	Rescanning
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case ResolvingAccount:
		return "ResolvingAccount"
	case Submitting:
		return "Submitting"
	case Rescanning:
		return "Rescanning"
	case Failed:
		return "Failed"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// HandleAdopt adopts pet petID from the first account available and, once the transaction is mined, scans the
// adoptions again. A failure is logged once and the chain stops, there are no retries. Nothing prevents two chains for
// the same pet from running at the same time.
func (a *App) HandleAdopt(ctx context.Context, petID int) (*etypes.Receipt, error) {
	a.state(petID, ResolvingAccount)

	accounts, err := a.accounts.Accounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = types.ErrNoAccounts
	}

	if err != nil {
		return nil, a.fail(petID, err)
	}

	account := accounts[0]

	a.state(petID, Submitting)

	if petID < 0 {
		return nil, a.fail(petID, ErrBadPet)
	}

	c, err := a.Deployed(ctx)
	if err != nil {
		return nil, a.fail(petID, err)
	}

	r, err := c.Adopt(ctx, uint64(petID), account)
	if err != nil {
		return nil, a.fail(petID, err)
	}

	a.state(petID, Rescanning)
	a.MarkAdopted(ctx)

	adoptions.WithLabelValues(resultOK).Inc()
	a.publish(petID, account.Hex(), r)
	a.state(petID, Idle)

	return r, nil
}

// adopt runs an adopt chain in the background. It is not bound to the request that started it.
func (a *App) adopt(petID int) {
	a.chains.Add(1)

	go func() {
		defer a.chains.Done()

		_, _ = a.HandleAdopt(context.Background(), petID)
	}()
}

func (a *App) state(petID int, s State) {
	a.log.Printf("[%s] Adopt pet %d: %s", a.net, petID, s)
}

func (a *App) fail(petID int, err error) error {
	a.log.Printf("[%s] Adopt pet %d: %s: %v", a.net, petID, Failed, err)
	adoptions.WithLabelValues(resultFail).Inc()

	return err
}

// publish sends the adoption to the message broker. Errors are only logged.
func (a *App) publish(petID int, adopter string, r *etypes.Receipt) {
	if a.mb == nil {
		return
	}

	e := types.Event{
		Contract: a.contract,
		Name:     AdoptEvent,
		Hash:     r.TxHash.Hex(),
		Args:     map[string]interface{}{"petId": petID, "adopter": adopter},
		Source:   a.id,
	}
	if r.BlockNumber != nil {
		e.Block = r.BlockNumber.Uint64()
	}

	if err := a.mb.SendEvent(a.net, e); err != nil {
		a.log.Printf("[%s] Error sending adoption of pet %d to message broker: %v", a.net, petID, err)
	}
}
