package signal

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTransportOffer is returned when the local engine could not produce an offer.
	ErrTransportOffer = errors.New("local offer not created")

	// ErrSignalingHTTP covers network failures and non-2xx responses of the signaling
	// endpoint. Fatal for the initial POST, logged only for trickle PATCH requests.
	ErrSignalingHTTP = errors.New("signaling request failed")

	// ErrMissingSessionResource is returned when a publish POST succeeded without a
	// Location header: the session cannot trickle candidates any further.
	ErrMissingSessionResource = errors.New("resource location missing")

	// ErrAnswerDecode is returned when the response body is not a session description.
	ErrAnswerDecode = errors.New("remote answer not decodable")

	// ErrRemoteDescriptionApply is returned when the engine rejected the remote answer.
	ErrRemoteDescriptionApply = errors.New("remote answer rejected")
)

// StatusError is the error for a non-2xx response. Body is the response payload as
// reported by the server.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d: %s", e.Method, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrSignalingHTTP
}
