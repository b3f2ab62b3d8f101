package writer

import (
	"io"

	"golang.org/x/sync/errgroup"
)

// sinkQueue serializes writes against the sink. Submissions are consumed by
// a single pump goroutine in FIFO order, and submit does not return until
// the sink has accepted the bytes, so a caller that is forced to wait for
// the sink to drain cannot be overtaken by a later submission.
type sinkQueue struct {
	requests chan sinkRequest
	group    *errgroup.Group
}

type sinkRequest struct {
	payload []byte
	done    chan error
}

// queueDepth bounds the pending submissions. Callers block on the ack
// channel anyway, so the depth only smooths goroutine handoff.
const queueDepth = 64

func newSinkQueue(sink io.Writer) *sinkQueue {
	q := &sinkQueue{
		requests: make(chan sinkRequest, queueDepth),
		group:    &errgroup.Group{},
	}
	q.group.Go(func() error {
		for req := range q.requests {
			_, err := sink.Write(req.payload)
			req.done <- err
		}
		return nil
	})
	return q
}

// submit enqueues one write and waits for the sink's acknowledgement.
func (q *sinkQueue) submit(payload []byte) error {
	done := make(chan error, 1)
	q.requests <- sinkRequest{payload: payload, done: done}
	return <-done
}

// close stops the pump after the queue has drained.
func (q *sinkQueue) close() error {
	close(q.requests)
	return q.group.Wait()
}
