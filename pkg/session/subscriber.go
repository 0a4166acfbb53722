package session

import (
	"context"

	"webrtc-mediamtx/pkg/sdpfrag"
	"webrtc-mediamtx/pkg/signal"

	"github.com/pkg/errors"
)

// Subscriber is the WHEP session of a receiving engine. It does not trickle: the
// candidates it gathers are dropped.
type Subscriber struct {
	session

	engine SubscribeEngine
}

func NewSubscriber(cfg Config, engine SubscribeEngine, sig Signal) *Subscriber {
	s := &Subscriber{
		engine: engine,
	}

	s.session.init(cfg, sig, "subscribe")

	s.engine.OnCandidate(func(sdpfrag.Candidate) {})
	s.engine.OnConnectionStateChange(s.onConnStateChange)

	return s
}

func (s *Subscriber) Start(ctx context.Context) error {
	s.startMx.Lock()
	defer s.startMx.Unlock()

	if s.ctx.Err() != nil {
		return ErrClosed
	}

	if s.established {
		return ErrAlreadyStarted
	}

	s.begin()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	if err := s.start(ctx); err != nil {
		s.fail(ctx, err)

		return err
	}

	return nil
}

func (s *Subscriber) start(ctx context.Context) error {
	offer, err := s.engine.CreateOffer(ctx)
	if err != nil {
		return errors.Wrap(signal.ErrTransportOffer, err.Error())
	}

	answer, location, err := s.exchange(ctx, offer)
	if err != nil {
		return err
	}

	if err := s.engine.SetRemoteAnswer(ctx, answer); err != nil {
		return errors.Wrap(signal.ErrRemoteDescriptionApply, err.Error())
	}

	// Only kept to release the resource on Close().
	if location != nil {
		if _, ok := s.resource.open(location); !ok {
			s.release(location)

			return ErrClosed
		}
	} else if s.ctx.Err() != nil {
		return ErrClosed
	}

	s.established = true

	s.log.Info("remote answer applied")

	return nil
}

func (s *Subscriber) onConnStateChange(state ConnectionState) {
	s.log.Info("connection state changed: ", state)

	s.state.Set(Status{State: state})

	if state == StateConnected {
		s.engine.EnableAudioOutput()
	}
}
