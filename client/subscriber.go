package client

import "github.com/chorus-fhe/ppcnn/fhe"

// ResultCallback is invoked once with the final outcome of a submitted
// query (spec §4.11).
type ResultCallback func(queryID int64, success bool, outputs []fhe.Ciphertext, userArg interface{})

// Subscriber is the Client Result Subscriber: a per-query background task
// that blocks on PollResult and invokes a callback with the outcome. It
// has no cancellation; the only exit is task completion (spec §4.11).
type Subscriber struct {
	done chan struct{}
}

// Subscribe spawns the subscriber task for queryID against c. Join blocks
// until it completes.
func Subscribe(c *Client, queryID int64, cb ResultCallback, userArg interface{}) *Subscriber {
	s := &Subscriber{done: make(chan struct{})}
	go func() {
		defer close(s.done)
		result, err := c.PollResult(queryID)
		if err != nil {
			cb(queryID, false, nil, userArg)
			return
		}
		cb(queryID, result.Success, result.Outputs, userArg)
	}()
	return s
}

// Join blocks until the subscriber task has invoked its callback and
// exited.
func (s *Subscriber) Join() { <-s.done }
