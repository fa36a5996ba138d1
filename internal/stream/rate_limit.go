package stream

import (
	"errors"
	"sync"
)

var (
	errClientLimit = errors.New("too many concurrent streams from this client")
	errStreamLimit = errors.New("server stream capacity reached")
)

// streamLimiter counts open streams of both transports per client key and
// in total. Keys come from httputil.LimitKey.
type streamLimiter struct {
	mu        sync.Mutex
	perClient map[string]int
	total     int
	maxClient int
	maxTotal  int
}

func newStreamLimiter(maxPerClient, maxTotal int) *streamLimiter {
	if maxPerClient <= 0 {
		maxPerClient = 10
	}
	if maxTotal <= 0 {
		maxTotal = 1000
	}
	return &streamLimiter{
		perClient: make(map[string]int),
		maxClient: maxPerClient,
		maxTotal:  maxTotal,
	}
}

// acquire takes a slot for key, or reports which limit is exhausted.
func (l *streamLimiter) acquire(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.total >= l.maxTotal:
		return errStreamLimit
	case l.perClient[key] >= l.maxClient:
		return errClientLimit
	}
	l.perClient[key]++
	l.total++
	return nil
}

func (l *streamLimiter) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total--
	if l.perClient[key]--; l.perClient[key] <= 0 {
		delete(l.perClient, key)
	}
}

func (l *streamLimiter) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perClient[key]
}
