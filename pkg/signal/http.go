// HTTP implements the WHIP/WHEP side of the signaling: the offer is POSTed to the
// endpoint ("${base}/whip" or "${base}/whep") and the answer is read from the response
// body (see: PostOffer()). For WHIP the response Location header points at the session
// resource which takes trickle ICE fragments by PATCH (see: PatchFragment()) and is
// released by DELETE (see: Delete()).

package signal

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	ContentTypeSDP     = "application/sdp"
	ContentTypeSDPFrag = "application/trickle-ice-sdpfrag"

	// Bodies of error responses are cut to this size before being reported.
	maxErrorBody = 4 << 10
)

type HTTP struct {
	cfg HTTPConfig

	client *http.Client
}

type HTTPConfig struct {
	// Timeout bounds every single request, zero means no bound.
	Timeout time.Duration

	// Credentials for HTTP Basic authentication, skipped if User is empty.
	User string
	Pass string
}

// Answer is the outcome of a successful offer POST. Location is nil if the server did
// not return a Location header.
type Answer struct {
	SDP      string
	Location *url.URL
	ETag     string
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	return &HTTP{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Endpoint returns base joined with the protocol path, e.g. "whip" or "whep".
func Endpoint(base, path string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, errors.Wrap(err, "endpoint")
	}

	if len(u.Scheme) == 0 || len(u.Host) == 0 {
		return nil, errors.Errorf("endpoint: %q is not an absolute URL", base)
	}

	return u.JoinPath(path), nil
}

// PostOffer sends the offer to endpoint and returns the answer. The Location header,
// if any, is resolved against endpoint.
func (s *HTTP) PostOffer(ctx context.Context, endpoint *url.URL, offer string) (*Answer, error) {
	res, body, err := s.do(ctx, http.MethodPost, endpoint, ContentTypeSDP, offer, nil)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		SDP:  string(body),
		ETag: res.Header.Get("ETag"),
	}

	if location := res.Header.Get("Location"); len(location) != 0 {
		ref, err := url.Parse(location)
		if err != nil {
			return nil, errors.Wrapf(ErrSignalingHTTP, "bad location %q: %s", location, err)
		}

		answer.Location = endpoint.ResolveReference(ref)
	}

	return answer, nil
}

// PatchFragment sends a trickle ICE fragment to the session resource. The If-Match
// precondition is always "*", the remote entity is overwritten unconditionally.
func (s *HTTP) PatchFragment(ctx context.Context, resource *url.URL, frag string) error {
	header := http.Header{}
	header.Set("If-Match", "*")

	_, _, err := s.do(ctx, http.MethodPatch, resource, ContentTypeSDPFrag, frag, header)

	return err
}

// Delete releases the session resource.
func (s *HTTP) Delete(ctx context.Context, resource *url.URL) error {
	_, _, err := s.do(ctx, http.MethodDelete, resource, "", "", nil)

	return err
}

func (s *HTTP) do(
	ctx context.Context,
	method string,
	u *url.URL,
	contentType string,
	payload string,
	header http.Header,
) (*http.Response, []byte, error) {
	var body io.Reader

	if len(contentType) != 0 {
		body = bytes.NewBufferString(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, nil, errors.Wrap(err, method)
	}

	for k, v := range header {
		req.Header[k] = v
	}

	if len(contentType) != 0 {
		req.Header.Set("Content-Type", contentType)
	}

	if len(s.cfg.User) != 0 {
		req.SetBasicAuth(s.cfg.User, s.cfg.Pass)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrSignalingHTTP, "%s %s: %s", method, u, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrSignalingHTTP, "%s %s: read body: %s", method, u, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}

		return nil, nil, &StatusError{
			Method:     method,
			StatusCode: res.StatusCode,
			Body:       string(data),
		}
	}

	return res, data, nil
}
