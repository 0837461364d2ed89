package adoption

import (
	"context"
	"sync"

	"github.com/tarancss/adoption/watcher"
)

// Watch starts a subscription to each of the contract events. Events received are logged and published to the
// message broker. Without a broker, each event triggers a scan of the adoptions.
func (a *App) Watch(ctx context.Context, src watcher.LogSource, names []string, opts watcher.Options) error {
	if len(names) == 0 {
		return nil
	}

	c, err := a.Deployed(ctx)
	if err != nil {
		return err
	}

	w, ok := c.(Watchable)
	if !ok {
		return ErrNoWatch
	}

	for _, name := range names {
		s, err := w.Watch(ctx, name, src, opts)
		if err != nil {
			return err
		}

		a.wl.Lock()
		a.subs = append(a.subs, s)
		a.wl.Unlock()

		go a.forward(name, s)
	}

	return nil
}

// Unwatch cancels all the subscriptions.
func (a *App) Unwatch() {
	a.wl.Lock()
	subs := a.subs
	a.subs = nil
	a.wl.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (a *App) forward(name string, s *watcher.Subscription) {
	a.log.Printf("[%s] Start watching %s.%s", a.net, a.contract, name)

	for r := range s.C {
		if r.Err != nil {
			a.log.Printf("[%s] Error watching %s.%s: %v", a.net, a.contract, name, r.Err)

			continue
		}

		a.log.Printf("[%s] Received event %s block:%d tx:%s args:%v", a.net, r.Event.Name, r.Event.Block, r.Event.Hash, r.Event.Args)
		events.WithLabelValues(r.Event.Name).Inc()

		if a.mb == nil {
			a.MarkAdopted(context.Background())

			continue
		}

		if err := a.mb.SendEvent(a.net, r.Event); err != nil {
			a.log.Printf("[%s] Error sending event to message broker: %v", a.net, err)
		}
	}

	a.log.Printf("[%s] Stop watching %s.%s", a.net, a.contract, name)
}

// ManageEvents starts go routines to consume the message broker queue of the network for adoption events. Every event
// received triggers a scan of the adoptions, so adoptions made through other instances of the service are shown. The
// adoptions published by this instance are skipped, the adopt chain has already scanned them.
func (a *App) ManageEvents() error {
	if a.mb == nil {
		return nil
	}

	var mut *sync.Mutex = new(sync.Mutex)

	mut.Lock()

	eveCh, errCh, err := a.mb.GetEvents(a.net, mut)
	if err != nil {
		return err
	}

	// launch event channel reader
	go func() {
		a.log.Printf("[%s] Start listening to adoption event channel", a.net)

		for eve := range eveCh {
			if eve.Source == a.id {
				a.log.Printf("[%s] Skip own adoption event %s.%s tx:%s", a.net, eve.Contract, eve.Name, eve.Hash)
				mut.Unlock()

				continue
			}

			a.log.Printf("[%s] Received adoption event %s.%s tx:%s", a.net, eve.Contract, eve.Name, eve.Hash)
			a.MarkAdopted(context.Background())
			mut.Unlock()
		}

		a.log.Printf("[%s] Stop listening to adoption event channel", a.net)
	}()

	// launch error channel reader
	go func() {
		a.log.Printf("[%s] Start listening to err channel", a.net)

		for e := range errCh {
			a.log.Printf("[%s] Received error %+v", a.net, e)
		}

		a.log.Printf("[%s] Stop listening to err channel", a.net)
	}()

	return nil
}
