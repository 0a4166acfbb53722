// Package session drives the WHIP (publish) and WHEP (subscribe) signaling of a local
// Engine against a media server.
//
// Start() creates the local offer, POSTs it to the endpoint and applies the answer.
// The publisher additionally trickles its ICE candidates to the session resource
// named by the Location header of the answer: candidates found before the resource
// is known are sent as one fragment right after the answer has been applied, later
// ones are sent one by one as soon as they are discovered.
//
// No step is ever retried. A failed Start() leaves the session in StateFailed and
// may be called again, the new attempt resets the state to StateNew.
package session

import (
	"context"
	"net/url"
	"sync"

	"webrtc-mediamtx/pkg/log"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyStarted = errors.New("session already established")
	ErrClosed         = errors.New("session closed")
)

type Config struct {
	// Endpoint is the WHIP or WHEP URL, see signal.Endpoint().
	Endpoint *url.URL
}

type session struct {
	cfg Config

	id     string
	log    *logrus.Entry
	signal Signal

	resource resource
	state    StateCell

	// established is guarded by startMx.
	startMx     sync.Mutex
	established bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *session) init(cfg Config, sig Signal, kind string) {
	s.cfg = cfg
	s.id = uuid.New().String()
	s.log = log.WithField("session", s.id).WithField("kind", kind)
	s.signal = sig
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

func (s *session) ID() string {
	return s.id
}

// State returns the latest connection state notification.
func (s *session) State() Status {
	return s.state.Get()
}

// Subscribe returns a channel with all following connection state notifications,
// see StateCell.Subscribe().
func (s *session) Subscribe() (<-chan Status, func()) {
	return s.state.Subscribe()
}

// Location returns the session resource, nil until the offer has been answered.
func (s *session) Location() *url.URL {
	return s.resource.get()
}

// bind returns a context done when either ctx or the session is done.
func (s *session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}

// begin resets the outcome of a failed attempt.
func (s *session) begin() {
	if s.state.Get().State == StateFailed {
		s.state.Set(Status{State: StateNew})
	}
}

// fail reports err of an attempt run with ctx. Attempts aborted by the caller or by
// Close() are not failures.
func (s *session) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		s.log.WithError(err).Info("signaling aborted")

		return
	}

	s.log.WithError(err).Error("signaling failed")
	s.state.Set(Status{State: StateFailed, Err: err})
}

// exchange POSTs offer and returns the validated answer.
func (s *session) exchange(ctx context.Context, offer string) (string, *url.URL, error) {
	s.log.Debugf("sending offer to %s", s.cfg.Endpoint)

	answer, err := s.signal.PostOffer(ctx, s.cfg.Endpoint, offer)
	if err != nil {
		return "", nil, errors.Wrap(err, "offer")
	}

	s.log.Debugf("offer answered, location: %v, etag: %s", answer.Location, answer.ETag)

	sdp, err := decodeAnswer(answer.SDP)
	if err != nil {
		return "", nil, err
	}

	return sdp, answer.Location, nil
}

// release deletes a session resource opened by the server after Close().
func (s *session) release(location *url.URL) {
	// The session context is already done, the request is bounded by the client timeout.
	if err := s.signal.Delete(context.Background(), location); err != nil {
		s.log.WithError(err).Warn("session resource not deleted")

		return
	}

	s.log.Info("session resource deleted")
}

// Close aborts all requests in flight and releases the session resource if it is
// known. A resource answered after Close() is released by the Start() that got it.
// The engine is not closed.
func (s *session) Close(ctx context.Context) (err error) {
	s.closeOnce.Do(func() {
		s.cancel()

		defer s.state.Close(Status{State: StateClosed})

		location := s.resource.close()
		if location == nil {
			return
		}

		if err = s.signal.Delete(ctx, location); err != nil {
			s.log.WithError(err).Warn("session resource not deleted")

			err = errors.Wrap(err, "delete")

			return
		}

		s.log.Info("session resource deleted")
	})

	return err
}
