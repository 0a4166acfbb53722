package session

import (
	"context"
	"net/url"

	"webrtc-mediamtx/pkg/sdpfrag"
	"webrtc-mediamtx/pkg/signal"
)

// Engine is the local WebRTC peer the signaling is done for. Handlers are registered
// once, by the session constructor, and may be called from any goroutine.
type Engine interface {
	CreateOffer(context.Context) (string, error)
	SetRemoteAnswer(context.Context, string) error

	OnCandidate(func(sdpfrag.Candidate))
	OnConnectionStateChange(func(ConnectionState))
}

type PublishEngine interface {
	Engine

	UnmuteOutboundAudio()
	RenderOutboundVideoLocally()
}

type SubscribeEngine interface {
	Engine

	EnableAudioOutput()
}

type Signal interface {
	PostOffer(ctx context.Context, endpoint *url.URL, offer string) (*signal.Answer, error)
	PatchFragment(ctx context.Context, resource *url.URL, frag string) error
	Delete(ctx context.Context, resource *url.URL) error
}
