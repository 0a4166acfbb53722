package session

import (
	"context"
	"net/url"
	"sync/atomic"

	"webrtc-mediamtx/pkg/sdpfrag"
	"webrtc-mediamtx/pkg/signal"

	"github.com/pkg/errors"
)

// Publisher is the WHIP session of a sending engine.
type Publisher struct {
	session

	engine PublishEngine

	// offer is written by Start() before the resource is opened and only read by
	// senders holding a location returned by the resource.
	offer sdpfrag.OfferData

	trickleSent     atomic.Int64
	trickleFailures atomic.Int64
}

func NewPublisher(cfg Config, engine PublishEngine, sig Signal) *Publisher {
	p := &Publisher{
		engine: engine,
	}

	p.session.init(cfg, sig, "publish")

	p.engine.OnCandidate(p.onCandidate)
	p.engine.OnConnectionStateChange(p.onConnStateChange)

	return p
}

// Start runs the offer/answer exchange and flushes the candidates queued meanwhile.
//
// A rejected answer is reported as signal.ErrRemoteDescriptionApply, but the session
// keeps trickling since the negotiation may still partially succeed. Every other
// error leaves the session without a resource and, unless ctx or the session was
// cancelled, in StateFailed. A resource answered after Close() is deleted and
// ErrClosed is returned.
func (p *Publisher) Start(ctx context.Context) error {
	p.startMx.Lock()
	defer p.startMx.Unlock()

	if p.ctx.Err() != nil {
		return ErrClosed
	}

	if p.established {
		return ErrAlreadyStarted
	}

	p.begin()

	ctx, cancel := p.bind(ctx)
	defer cancel()

	err := p.start(ctx)
	if err != nil && !errors.Is(err, signal.ErrRemoteDescriptionApply) {
		p.fail(ctx, err)
	}

	return err
}

func (p *Publisher) start(ctx context.Context) error {
	offer, err := p.engine.CreateOffer(ctx)
	if err != nil {
		return errors.Wrap(signal.ErrTransportOffer, err.Error())
	}

	p.offer = sdpfrag.ParseOffer(offer)

	p.log.Debugf("local offer created, %d media sections", len(p.offer.Medias))

	answer, location, err := p.exchange(ctx, offer)
	if err != nil {
		return err
	}

	if location == nil {
		return errors.WithStack(signal.ErrMissingSessionResource)
	}

	var applyErr error

	if err := p.engine.SetRemoteAnswer(ctx, answer); err != nil {
		applyErr = errors.Wrap(signal.ErrRemoteDescriptionApply, err.Error())

		p.log.WithError(applyErr).Error("remote answer not applied")
	}

	queued, ok := p.resource.open(location)
	if !ok {
		p.release(location)

		return ErrClosed
	}

	p.established = true

	p.log.Infof("session resource: %s", location)

	if len(queued) != 0 {
		p.sendCandidates(location, queued)
	}

	return applyErr
}

// TrickleStats returns the number of sent and failed trickle fragments.
func (p *Publisher) TrickleStats() (sent, failed int64) {
	return p.trickleSent.Load(), p.trickleFailures.Load()
}

func (p *Publisher) onCandidate(c sdpfrag.Candidate) {
	location := p.resource.add(c)
	if location == nil {
		p.log.Debugf("candidate queued: %s", c.Payload)

		return
	}

	go p.sendCandidates(location, []sdpfrag.Candidate{c})
}

// sendCandidates PATCHes a fragment with candidates. A failure only affects these
// candidates and is never reported to the caller.
func (p *Publisher) sendCandidates(location *url.URL, candidates []sdpfrag.Candidate) {
	if p.ctx.Err() != nil {
		return
	}

	frag := sdpfrag.Encode(p.offer, candidates)

	p.log.Debugf("sending %d candidates:\n%s", len(candidates), frag)

	if err := p.signal.PatchFragment(p.ctx, location, frag); err != nil {
		if p.ctx.Err() != nil {
			return
		}

		p.trickleFailures.Add(1)
		p.log.WithError(err).Error("candidates not sent")

		return
	}

	p.trickleSent.Add(1)
}

func (p *Publisher) onConnStateChange(state ConnectionState) {
	p.log.Info("connection state changed: ", state)

	p.state.Set(Status{State: state})

	if state == StateConnected {
		p.engine.UnmuteOutboundAudio()
		p.engine.RenderOutboundVideoLocally()
	}
}
