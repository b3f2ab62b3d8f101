package writer

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowSink accepts writes only after a delay, standing in for a sink whose
// buffer has to drain.
type slowSink struct {
	delay time.Duration
	buf   bytes.Buffer
}

func (s *slowSink) Write(p []byte) (int, error) {
	time.Sleep(s.delay)
	return s.buf.Write(p)
}

func TestSinkQueue_OrderPreservedUnderSlowSink(t *testing.T) {
	sink := &slowSink{delay: 2 * time.Millisecond}
	q := newSinkQueue(sink)

	for _, payload := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.submit([]byte(payload)))
	}
	require.NoError(t, q.close())
	assert.Equal(t, "abcd", sink.buf.String())
}

func TestSinkQueue_SubmitWaitsForAcceptance(t *testing.T) {
	sink := &slowSink{delay: 10 * time.Millisecond}
	q := newSinkQueue(sink)
	defer func() { _ = q.close() }()

	start := time.Now()
	require.NoError(t, q.submit([]byte("x")))
	if elapsed := time.Since(start); elapsed < sink.delay {
		t.Errorf("submit returned after %v, before the sink accepted the write", elapsed)
	}
	assert.Equal(t, "x", sink.buf.String())
}

type failingSink struct{ err error }

func (s *failingSink) Write(p []byte) (int, error) { return 0, s.err }

func TestSinkQueue_PropagatesSinkError(t *testing.T) {
	sinkErr := errors.New("disk full")
	q := newSinkQueue(&failingSink{err: sinkErr})
	defer func() { _ = q.close() }()

	err := q.submit([]byte("x"))
	require.ErrorIs(t, err, sinkErr)
}
