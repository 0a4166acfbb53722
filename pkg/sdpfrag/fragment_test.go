package sdpfrag

import (
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	offer := ParseOffer(exampleOffer)

	testCases := []struct {
		name       string
		candidates []Candidate
		want       string
	}{
		{
			name: "single video candidate",
			candidates: []Candidate{
				{MediaSectionIndex: 1, Payload: "candidate:1 1 UDP 2130706431 10.0.0.1 5000 typ host"},
			},
			want: "a=ice-ufrag:abc\r\na=ice-pwd:xyz\r\n" +
				"m=video 9 UDP/TLS/RTP/SAVPF 96\r\na=mid:1\r\n" +
				"a=candidate:1 1 UDP 2130706431 10.0.0.1 5000 typ host\r\n",
		},
		{
			name: "grouped by section in media order",
			candidates: []Candidate{
				{MediaSectionIndex: 1, Payload: "candidate:v1"},
				{MediaSectionIndex: 0, Payload: "candidate:a1"},
				{MediaSectionIndex: 1, Payload: "candidate:v2"},
			},
			want: "a=ice-ufrag:abc\r\na=ice-pwd:xyz\r\n" +
				"m=audio 9 UDP/TLS/RTP/SAVPF 0\r\na=mid:0\r\na=candidate:a1\r\n" +
				"m=video 9 UDP/TLS/RTP/SAVPF 96\r\na=mid:1\r\na=candidate:v1\r\na=candidate:v2\r\n",
		},
		{
			name: "unknown section is dropped",
			candidates: []Candidate{
				{MediaSectionIndex: 7, Payload: "candidate:lost"},
			},
			want: "a=ice-ufrag:abc\r\na=ice-pwd:xyz\r\n",
		},
		{
			name: "no candidates",
			want: "a=ice-ufrag:abc\r\na=ice-pwd:xyz\r\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Encode(offer, tc.candidates)

			if got != tc.want {
				t.Fatalf("Encode() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEncodeSectionsAreSubsetOfOffer(t *testing.T) {
	offer := OfferData{
		ICEUfrag: "u",
		ICEPwd:   "p",
		Medias:   []string{"audio 9 X 0", "video 9 X 96", "application 9 Y z"},
	}

	candidates := []Candidate{
		{MediaSectionIndex: 2, Payload: "candidate:c"},
		{MediaSectionIndex: 2, Payload: "candidate:d"},
		{MediaSectionIndex: 0, Payload: "candidate:a"},
	}

	frag := Encode(offer, candidates)

	if !strings.HasSuffix(frag, "\r\n") {
		t.Fatalf("fragment %q has no trailing line break", frag)
	}

	var (
		mids    []string
		current string
		got     = map[string][]string{}
	)

	for _, line := range strings.Split(strings.TrimSuffix(frag, "\r\n"), "\r\n") {
		switch {
		case strings.HasPrefix(line, "a=mid:"):
			current = strings.TrimPrefix(line, "a=mid:")
			mids = append(mids, current)
		case strings.HasPrefix(line, "a=candidate:"):
			got[current] = append(got[current], strings.TrimPrefix(line, "a="))
		}
	}

	if strings.Join(mids, ",") != "0,2" {
		t.Fatalf("sections = %v, want [0 2]", mids)
	}

	if strings.Join(got["0"], ",") != "candidate:a" {
		t.Fatalf("section 0 candidates = %v", got["0"])
	}

	if strings.Join(got["2"], ",") != "candidate:c,candidate:d" {
		t.Fatalf("section 2 candidates = %v", got["2"])
	}
}
