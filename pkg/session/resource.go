package session

import (
	"net/url"
	"sync"

	"webrtc-mediamtx/pkg/sdpfrag"
)

// resource tracks the session resource of a WHIP session. Candidates discovered before
// its location is known are queued and handed out exactly once by open(). Both the
// location and the queue are guarded by the same mutex, so a candidate is either
// queued before the drain or sent on its own after it, never both or neither.
//
// A failed Start() keeps the queue: gathering is not repeated, so the candidates are
// drained by the retry. Once closed nothing is queued any more.
type resource struct {
	mx sync.Mutex

	location *url.URL
	queued   []sdpfrag.Candidate
	closed   bool
}

// add queues c and returns nil while the location is unknown. Otherwise it returns
// the location c has to be sent to. Candidates of a closed resource are dropped.
func (r *resource) add(c sdpfrag.Candidate) *url.URL {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.closed {
		return nil
	}

	if r.location == nil {
		r.queued = append(r.queued, c)

		return nil
	}

	return r.location
}

// open sets the location and returns the queued candidates. The location is set once,
// following calls and calls after close() return false.
func (r *resource) open(location *url.URL) ([]sdpfrag.Candidate, bool) {
	r.mx.Lock()
	defer r.mx.Unlock()

	if r.closed || r.location != nil {
		return nil, false
	}

	queued := r.queued

	r.location = location
	r.queued = nil

	return queued, true
}

// close drops the queue and returns the location to release, nil if the resource was
// never opened.
func (r *resource) close() *url.URL {
	r.mx.Lock()
	defer r.mx.Unlock()

	r.closed = true
	r.queued = nil

	return r.location
}

func (r *resource) get() *url.URL {
	r.mx.Lock()
	defer r.mx.Unlock()

	return r.location
}

func (r *resource) pending() int {
	r.mx.Lock()
	defer r.mx.Unlock()

	return len(r.queued)
}
