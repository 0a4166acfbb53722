package internal

import (
	"context"
	"sync/atomic"
	"time"

	"webrtc-mediamtx/pkg/log"

	"github.com/pion/rtp"
)

const statsInterval = 10 * time.Second

// stats counts received media packets of a subscribing peer.
type stats struct {
	audioPackets atomic.Int64
	videoPackets atomic.Int64
	audioBytes   atomic.Int64
	videoBytes   atomic.Int64
}

func (s *stats) addAudio(pkt *rtp.Packet) {
	s.audioPackets.Add(1)
	s.audioBytes.Add(int64(len(pkt.Payload)))
}

func (s *stats) addVideo(pkt *rtp.Packet) {
	s.videoPackets.Add(1)
	s.videoBytes.Add(int64(len(pkt.Payload)))
}

// report logs the received traffic every statsInterval while there is any.
func (s *stats) report(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	var prevAudio, prevVideo int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		audio, video := s.audioBytes.Load(), s.videoBytes.Load()

		if audio != prevAudio || video != prevVideo {
			log.Infof("received audio: %d packets, %.1f kbit/s | video: %d packets, %.1f kbit/s",
				s.audioPackets.Load(), kbps(audio-prevAudio),
				s.videoPackets.Load(), kbps(video-prevVideo))
		}

		prevAudio, prevVideo = audio, video
	}
}

func kbps(bytes int64) float64 {
	return float64(bytes*8) / 1000 / statsInterval.Seconds()
}
