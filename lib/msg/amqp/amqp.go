// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/streadway/amqp"

	"github.com/tarancss/adoption/lib/block/types"
	"github.com/tarancss/adoption/lib/msg"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	l    sync.Mutex // l guards ch and serialises publishing and consumer setup on it
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (*Amqp, error) {
	r := &Amqp{}

	var err error

	if r.conn, err = amqp.Dial(uri); err != nil {
		return nil, err
	}

	log.Printf("Connected to %s", uri)

	return r, nil
}

// Setup obtains an amqp channel and declares the message broker exchange:
//
// - ae ("adoption events"): the adoption service publishes contract and adoption events to this exchange
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	return channel.ExchangeDeclare(msg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	r.l.Lock()
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel:%v", err)
		}

		r.ch = nil

		log.Printf("amqp.Channel closed!")
	}
	r.l.Unlock()

	return r.conn.Close()
}

// channel returns the reusable channel, obtaining it if not present. r.l must be held.
func (r *Amqp) channel() (*amqp.Channel, error) {
	if r.ch == nil {
		ch, err := r.conn.Channel()
		if err != nil {
			return nil, err
		}

		r.ch = ch
	}

	return r.ch, nil
}

// SendEvent publishes an event to the "ae" exchange
func (r *Amqp) SendEvent(net string, e types.Event) error {
	// marshal to JSON
	jsonDoc, err := json.Marshal(e)
	if err != nil {
		return err
	}

	r.l.Lock()
	defer r.l.Unlock()

	ch, err := r.channel()
	if err != nil {
		return err
	}
	// build body
	m := amqp.Publishing{
		Headers:     amqp.Table{"x-event-name": net + "." + e.Hash},
		Body:        jsonDoc,
		ContentType: "application/json",
	}
	// publish
	if err = ch.Publish(msg.Exchange, msg.Routing(net, e), false, false, m); err != nil {
		log.Printf("[%s] Error sending event to message broker %v", net, err)
	}

	return err
}

// GetEvents consumes events from the "ae" exchange for the specified network pushing them to the returned channel. The
// Mutex pointer is provided to ensure the consumed message has been fully dealt with by the management function, so
// the message consumed is only acknowledged when the mutex is unlocked.
func (r *Amqp) GetEvents(net string, mut *sync.Mutex) (<-chan types.Event, <-chan error, error) {
	r.l.Lock()
	defer r.l.Unlock()

	ch, err := r.channel()
	if err != nil {
		return nil, nil, err
	}

	queue := msg.Exchange + net

	// declare queue
	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}

	// bind queue to exchange
	if err = ch.QueueBind(queue, net+".*.*", msg.Exchange, false, nil); err != nil {
		return nil, nil, err
	}
	// create channel for receiving events
	msgs, err := ch.Consume(queue, "adoption-"+net, false, false, false, false, nil)
	if err != nil {
		return nil, nil, err
	}
	// define channels to return
	eves := make(chan types.Event)
	errs := make(chan error)
	// start routine to consume messages from broker
	go func() {
		defer close(eves)
		defer close(errs)

		for m := range msgs {
			e := types.Event{}
			if err := json.Unmarshal(m.Body, &e); err != nil {
				errs <- err

				_ = m.Nack(false, false)

				continue
			}

			eves <- e

			mut.Lock() // wait for the event to be dealt with
			_ = m.Ack(false)
		}
	}()

	return eves, errs, nil
}
