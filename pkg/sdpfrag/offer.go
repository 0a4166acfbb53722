// Package sdpfrag extracts the trickle-relevant parts of a local offer and builds the
// "application/trickle-ice-sdpfrag" bodies sent to a WHIP session resource.
//
// An offer is reduced to OfferData: the first ICE username fragment, the first ICE
// password and the payload of every "m=" line in order of appearance. The position
// of a media line in Medias is its media section index (see: Encode()).
package sdpfrag

import (
	"strings"
)

const (
	lineBreak = "\r\n"

	mediaPrefix    = "m="
	attrPrefix     = "a="
	iceUfragPrefix = "a=ice-ufrag:"
	icePwdPrefix   = "a=ice-pwd:"
	mediaIDPrefix  = "a=mid:"
)

type OfferData struct {
	ICEUfrag string
	ICEPwd   string
	Medias   []string
}

// Candidate is a local ICE candidate scoped to the media section at MediaSectionIndex.
// Payload is the attribute content without the leading "a=", e.g. "candidate:1 1 UDP ...".
type Candidate struct {
	MediaSectionIndex int
	Payload           string
}

// ParseOffer never fails: missing credentials stay empty and Medias may be empty.
// Only the first ice-ufrag and ice-pwd lines are taken into account.
func ParseOffer(offer string) OfferData {
	var d OfferData

	for _, line := range strings.Split(offer, lineBreak) {
		switch {
		case strings.HasPrefix(line, mediaPrefix):
			d.Medias = append(d.Medias, strings.TrimPrefix(line, mediaPrefix))
		case len(d.ICEUfrag) == 0 && strings.HasPrefix(line, iceUfragPrefix):
			d.ICEUfrag = strings.TrimPrefix(line, iceUfragPrefix)
		case len(d.ICEPwd) == 0 && strings.HasPrefix(line, icePwdPrefix):
			d.ICEPwd = strings.TrimPrefix(line, icePwdPrefix)
		}
	}

	return d
}
