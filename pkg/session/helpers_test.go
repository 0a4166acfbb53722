package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"webrtc-mediamtx/pkg/sdpfrag"
	"webrtc-mediamtx/pkg/signal"

	"github.com/pkg/errors"
)

const (
	testOffer = "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n" +
		"a=ice-ufrag:abc\r\na=ice-pwd:xyz\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 0\r\nc=IN IP4 0.0.0.0\r\n" +
		"m=video 9 UDP/TLS/RTP/SAVPF 96\r\nc=IN IP4 0.0.0.0\r\n"

	testAnswer = "v=0\r\no=- 3 4 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n" +
		"a=ice-ufrag:srv\r\na=ice-pwd:srvpwd\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 0\r\nc=IN IP4 0.0.0.0\r\n" +
		"m=video 9 UDP/TLS/RTP/SAVPF 96\r\nc=IN IP4 0.0.0.0\r\n"

	waitTimeout = 2 * time.Second
	quietPeriod = 100 * time.Millisecond
)

type fakeEngine struct {
	mx sync.Mutex

	offerErr error
	applyErr error
	answer   string

	// applyHook, if set, runs before the answer is applied.
	applyHook func()

	onCandidate func(sdpfrag.Candidate)
	onState     func(ConnectionState)

	unmuted      bool
	rendering    bool
	audioEnabled bool
}

func (e *fakeEngine) CreateOffer(context.Context) (string, error) {
	if e.offerErr != nil {
		return "", e.offerErr
	}

	return testOffer, nil
}

func (e *fakeEngine) SetRemoteAnswer(_ context.Context, answer string) error {
	if e.applyHook != nil {
		e.applyHook()
	}

	e.mx.Lock()
	defer e.mx.Unlock()

	e.answer = answer

	return e.applyErr
}

func (e *fakeEngine) OnCandidate(h func(sdpfrag.Candidate)) {
	e.onCandidate = h
}

func (e *fakeEngine) OnConnectionStateChange(h func(ConnectionState)) {
	e.onState = h
}

func (e *fakeEngine) UnmuteOutboundAudio() {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.unmuted = true
}

func (e *fakeEngine) RenderOutboundVideoLocally() {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.rendering = true
}

func (e *fakeEngine) EnableAudioOutput() {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.audioEnabled = true
}

func (e *fakeEngine) candidate(index int, payload string) {
	e.onCandidate(sdpfrag.Candidate{MediaSectionIndex: index, Payload: payload})
}

type request struct {
	method string
	path   string
	header http.Header
	body   string
}

// mediaServer mimics the WHIP/WHEP endpoints of a media server. offerHook, if set,
// runs before the offer is answered. The first rejectOffers offers are answered
// with 500.
type mediaServer struct {
	*httptest.Server

	requests chan request

	status    int
	location  string
	answer    string
	patchCode int
	offerHook func()

	rejectOffers atomic.Int32
}

func newMediaServer(t *testing.T) *mediaServer {
	s := &mediaServer{
		requests:  make(chan request, 1024),
		status:    http.StatusCreated,
		location:  "whip/session-1",
		answer:    testAnswer,
		patchCode: http.StatusNoContent,
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	return s
}

func (s *mediaServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.requests <- request{
		method: r.Method,
		path:   r.URL.Path,
		header: r.Header.Clone(),
		body:   string(body),
	}

	switch r.Method {
	case http.MethodPost:
		if s.offerHook != nil {
			s.offerHook()
		}

		if s.rejectOffers.Add(-1) >= 0 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		if len(s.location) != 0 {
			w.Header().Set("Location", s.location)
		}

		w.WriteHeader(s.status)
		_, _ = io.WriteString(w, s.answer)
	case http.MethodPatch:
		w.WriteHeader(s.patchCode)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *mediaServer) endpoint(t *testing.T, path string) *url.URL {
	u, err := signal.Endpoint(s.URL+"/mystream", path)
	if err != nil {
		t.Fatal(err)
	}

	return u
}

func (s *mediaServer) next(t *testing.T, method string) request {
	t.Helper()

	select {
	case r := <-s.requests:
		if r.method != method {
			t.Fatalf("request = %s %s, want %s", r.method, r.path, method)
		}

		return r
	case <-time.After(waitTimeout):
		t.Fatalf("no %s request", method)
	}

	return request{}
}

func (s *mediaServer) none(t *testing.T) {
	t.Helper()

	select {
	case r := <-s.requests:
		t.Fatalf("unexpected request %s %s:\n%s", r.method, r.path, r.body)
	case <-time.After(quietPeriod):
	}
}

func newSignal() Signal {
	return signal.NewHTTP(signal.HTTPConfig{Timeout: waitTimeout})
}

func waitState(t *testing.T, ch <-chan Status, want ConnectionState) Status {
	t.Helper()

	deadline := time.After(waitTimeout)

	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatalf("state channel closed before %s", want)
			}

			if st.State == want {
				return st
			}
		case <-deadline:
			t.Fatalf("state %s not reached", want)
		}
	}
}

func assertIs(t *testing.T, err, target error) {
	t.Helper()

	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}
