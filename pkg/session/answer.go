package session

import (
	"webrtc-mediamtx/pkg/signal"

	"github.com/pion/sdp/v3"
	"github.com/pkg/errors"
)

// decodeAnswer checks that the body of an offer response is a session description
// with at least one media section.
func decodeAnswer(body string) (string, error) {
	var desc sdp.SessionDescription

	if err := desc.Unmarshal([]byte(body)); err != nil {
		return "", errors.Wrap(signal.ErrAnswerDecode, err.Error())
	}

	if len(desc.MediaDescriptions) == 0 {
		return "", errors.Wrap(signal.ErrAnswerDecode, "no media sections")
	}

	return body, nil
}
