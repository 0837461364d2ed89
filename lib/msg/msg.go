// Package msg defines the interface for different message brokers.
package msg

import (
	"sync"

	"github.com/tarancss/adoption/lib/block/types"
)

// Exchange is the name of the exchange adoption events are published to.
const Exchange = "ae"

// Routing returns the routing key of an event published for network net: <net>.<contract>.<event>.
func Routing(net string, e types.Event) string {
	return net + "." + e.Contract + "." + e.Name
}

// MsgBroker publishes adoption events and consumes them.
type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	SendEvent(net string, e types.Event) error
	GetEvents(net string, mut *sync.Mutex) (<-chan types.Event, <-chan error, error)
}
