package peer

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"webrtc-mediamtx/pkg/log"
	"webrtc-mediamtx/pkg/sdpfrag"
	"webrtc-mediamtx/pkg/session"

	"github.com/pion/datachannel"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pkg/errors"
)

type Direction int

const (
	// Publish sends an audio and a video track.
	Publish Direction = iota
	// Subscribe receives an audio and a video track.
	Subscribe
)

const (
	dataChannelLabel = "data"
	streamID         = "webrtc-mediamtx"
	readBufferSize   = 16 << 10
)

// WebRTC is the local peer of a WHIP or WHEP session. Outbound audio starts muted and
// inbound audio is not forwarded until enabled, see UnmuteOutboundAudio() and
// EnableAudioOutput().
type WebRTC struct {
	cfg WebRTCConfig

	conn       *webrtc.PeerConnection
	audioTrack *webrtc.TrackLocalStaticSample
	videoTrack *webrtc.TrackLocalStaticSample

	audioMuted   atomic.Bool
	videoPreview atomic.Bool
	audioOutput  atomic.Bool

	handlersMx       sync.RWMutex
	candidateHandler func(sdpfrag.Candidate)
	stateHandler     func(session.ConnectionState)
	previewHandler   func(media.Sample)
	audioHandler     func(*rtp.Packet)
	videoHandler     func(*rtp.Packet)
	dataHandler      func([]byte)

	dataChannel datachannel.ReadWriteCloser

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

type WebRTCConfig struct {
	STUN        []string
	Direction   Direction
	DataChannel bool
}

func NewWebRTC(cfg WebRTCConfig) (*WebRTC, error) {
	ice := make([]webrtc.ICEServer, len(cfg.STUN))

	for i, stun := range cfg.STUN {
		ice[i] = webrtc.ICEServer{
			URLs: []string{"stun:" + stun},
		}
	}

	mediaEngine := &webrtc.MediaEngine{}

	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, errors.Wrap(err, "codecs")
	}

	registry := &interceptor.Registry{}

	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, errors.Wrap(err, "interceptors")
	}

	settings := webrtc.SettingEngine{}

	settings.DetachDataChannels()
	settings.SetICETimeouts(10*time.Second, 25*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settings),
	)

	conn, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: ice,
	})
	if err != nil {
		return nil, err
	}

	p := &WebRTC{
		cfg:              cfg,
		conn:             conn,
		candidateHandler: func(sdpfrag.Candidate) {},
		stateHandler:     func(session.ConnectionState) {},
		previewHandler:   func(media.Sample) {},
		audioHandler:     func(*rtp.Packet) {},
		videoHandler:     func(*rtp.Packet) {},
		dataHandler:      func([]byte) {},
		shutdownChan:     make(chan struct{}),
	}

	p.audioMuted.Store(true)

	if err := p.setupMedia(); err != nil {
		p.Close()

		return nil, err
	}

	if cfg.DataChannel {
		channel, err := p.conn.CreateDataChannel(dataChannelLabel, nil)
		if err != nil {
			p.Close()

			return nil, errors.Wrap(err, "data channel")
		}

		p.registerDataChannel(channel)
	}

	p.conn.OnICECandidate(p.onConnICECandidate)
	p.conn.OnICEConnectionStateChange(p.onConnStateChange)

	return p, nil
}

func (p *WebRTC) setupMedia() (err error) {
	if p.cfg.Direction == Subscribe {
		return p.setupReceivers()
	}

	p.audioTrack, err = webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return errors.Wrap(err, "audio track")
	}

	p.videoTrack, err = webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "video", streamID)
	if err != nil {
		return errors.Wrap(err, "video track")
	}

	for _, track := range []*webrtc.TrackLocalStaticSample{p.audioTrack, p.videoTrack} {
		sender, err := p.conn.AddTrack(track)
		if err != nil {
			return errors.Wrap(err, track.Kind().String())
		}

		go drainRTCP(sender)
	}

	return nil
}

func (p *WebRTC) setupReceivers() error {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		_, err := p.conn.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			return errors.Wrap(err, kind.String())
		}
	}

	p.conn.OnTrack(p.onTrack)

	return nil
}

// drainRTCP reads incoming RTCP so that interceptors keep working.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)

	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (p *WebRTC) CreateOffer(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return "", err
	}

	if err := p.conn.SetLocalDescription(offer); err != nil {
		return "", err
	}

	return offer.SDP, nil
}

func (p *WebRTC) SetRemoteAnswer(ctx context.Context, answer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.conn.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
}

func (p *WebRTC) OnCandidate(h func(sdpfrag.Candidate)) {
	p.handlersMx.Lock()
	defer p.handlersMx.Unlock()

	p.candidateHandler = h
}

func (p *WebRTC) OnConnectionStateChange(h func(session.ConnectionState)) {
	p.handlersMx.Lock()
	defer p.handlersMx.Unlock()

	p.stateHandler = h
}

// OnLocalVideo registers the local preview, called with every written video sample
// once RenderOutboundVideoLocally() has been called.
func (p *WebRTC) OnLocalVideo(h func(media.Sample)) {
	p.handlersMx.Lock()
	defer p.handlersMx.Unlock()

	p.previewHandler = h
}

// OnAudio registers the audio output, called with every received audio packet once
// EnableAudioOutput() has been called.
func (p *WebRTC) OnAudio(h func(*rtp.Packet)) {
	p.handlersMx.Lock()
	defer p.handlersMx.Unlock()

	p.audioHandler = h
}

func (p *WebRTC) OnVideo(h func(*rtp.Packet)) {
	p.handlersMx.Lock()
	defer p.handlersMx.Unlock()

	p.videoHandler = h
}

func (p *WebRTC) OnData(h func([]byte)) {
	p.handlersMx.Lock()
	defer p.handlersMx.Unlock()

	p.dataHandler = h
}

func (p *WebRTC) UnmuteOutboundAudio() {
	p.audioMuted.Store(false)
}

func (p *WebRTC) RenderOutboundVideoLocally() {
	p.videoPreview.Store(true)
}

func (p *WebRTC) EnableAudioOutput() {
	p.audioOutput.Store(true)
}

// WriteAudio sends an audio sample. Samples are dropped while the audio is muted.
func (p *WebRTC) WriteAudio(sample media.Sample) error {
	if p.audioTrack == nil {
		return errors.New("not a publishing peer")
	}

	if p.audioMuted.Load() {
		return nil
	}

	return p.audioTrack.WriteSample(sample)
}

func (p *WebRTC) WriteVideo(sample media.Sample) error {
	if p.videoTrack == nil {
		return errors.New("not a publishing peer")
	}

	if p.videoPreview.Load() {
		p.handlersMx.RLock()
		h := p.previewHandler
		p.handlersMx.RUnlock()

		h(sample)
	}

	return p.videoTrack.WriteSample(sample)
}

func (p *WebRTC) Done() <-chan struct{} {
	return p.shutdownChan
}

func (p *WebRTC) Close() {
	p.handlersMx.RLock()
	dc := p.dataChannel
	p.handlersMx.RUnlock()

	if dc != nil {
		if err := dc.Close(); err != nil {
			log.Error(err)
		}
	}

	if err := p.conn.Close(); err != nil {
		log.Error(err)
	}

	p.shutdown()
}

func (p *WebRTC) shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdownChan)
	})
}

func (p *WebRTC) onConnICECandidate(candidate *webrtc.ICECandidate) {
	// End of gathering.
	if candidate == nil {
		return
	}

	init := candidate.ToJSON()

	var index int

	if init.SDPMLineIndex != nil {
		index = int(*init.SDPMLineIndex)
	}

	p.handlersMx.RLock()
	h := p.candidateHandler
	p.handlersMx.RUnlock()

	h(sdpfrag.Candidate{
		MediaSectionIndex: index,
		Payload:           init.Candidate,
	})
}

func (p *WebRTC) onConnStateChange(state webrtc.ICEConnectionState) {
	p.handlersMx.RLock()
	h := p.stateHandler
	p.handlersMx.RUnlock()

	h(connectionState(state))

	if state == webrtc.ICEConnectionStateFailed ||
		state == webrtc.ICEConnectionStateClosed {
		p.shutdown()
	}
}

func connectionState(state webrtc.ICEConnectionState) session.ConnectionState {
	switch state {
	case webrtc.ICEConnectionStateChecking:
		return session.StateChecking
	case webrtc.ICEConnectionStateConnected:
		return session.StateConnected
	case webrtc.ICEConnectionStateCompleted:
		return session.StateCompleted
	case webrtc.ICEConnectionStateDisconnected:
		return session.StateDisconnected
	case webrtc.ICEConnectionStateFailed:
		return session.StateFailed
	case webrtc.ICEConnectionStateClosed:
		return session.StateClosed
	default:
		return session.StateNew
	}
}

func (p *WebRTC) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	log.Infof("receiving %s track: %s", track.Kind(), track.Codec().MimeType)

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error(err)
			}

			return
		}

		p.handlersMx.RLock()
		audio, video := p.audioHandler, p.videoHandler
		p.handlersMx.RUnlock()

		if track.Kind() == webrtc.RTPCodecTypeVideo {
			video(pkt)
		} else if p.audioOutput.Load() {
			audio(pkt)
		}
	}
}

func (p *WebRTC) registerDataChannel(channel *webrtc.DataChannel) {
	channel.OnOpen(func() {
		dc, err := channel.Detach()
		if err != nil {
			log.Error(err)

			return
		}

		p.handlersMx.Lock()
		p.dataChannel = dc
		p.handlersMx.Unlock()

		go p.readDataChannel(dc)
	})
}

func (p *WebRTC) readDataChannel(dc datachannel.ReadWriteCloser) {
	buf := make([]byte, readBufferSize)

	for {
		n, err := dc.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error(err)
			}

			return
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		p.handlersMx.RLock()
		h := p.dataHandler
		p.handlersMx.RUnlock()

		h(payload)
	}
}
