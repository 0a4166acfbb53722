package sdpfrag

import (
	"strconv"
	"strings"
)

// Encode builds a fragment holding the offer's ICE credentials followed by one media
// section per index that has candidates. Sections without candidates are omitted and
// candidates keep their input order within a section. Candidates pointing outside of
// d.Medias are dropped.
func Encode(d OfferData, candidates []Candidate) string {
	byMedia := make(map[int][]Candidate, len(d.Medias))

	for _, c := range candidates {
		byMedia[c.MediaSectionIndex] = append(byMedia[c.MediaSectionIndex], c)
	}

	var b strings.Builder

	writeLine(&b, iceUfragPrefix, d.ICEUfrag)
	writeLine(&b, icePwdPrefix, d.ICEPwd)

	for mid, media := range d.Medias {
		group := byMedia[mid]
		if len(group) == 0 {
			continue
		}

		writeLine(&b, mediaPrefix, media)
		writeLine(&b, mediaIDPrefix, strconv.Itoa(mid))

		for _, c := range group {
			writeLine(&b, attrPrefix, c.Payload)
		}
	}

	return b.String()
}

func writeLine(b *strings.Builder, prefix, value string) {
	b.WriteString(prefix)
	b.WriteString(value)
	b.WriteString(lineBreak)
}
