package internal

import (
	"context"
	"io"
	"os"
	"time"

	"webrtc-mediamtx/pkg/log"

	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/h264reader"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"github.com/pkg/errors"
)

const (
	oggPageDuration   = 20 * time.Millisecond
	h264FrameDuration = 33 * time.Millisecond
)

type sampleWriter func(media.Sample) error

// streamOgg writes the Opus pages of an Ogg file at their natural pace until the file
// ends or ctx is done.
func streamOgg(ctx context.Context, path string, write sampleWriter) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		return errors.Wrap(err, path)
	}

	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()

	var lastGranule uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return errors.Wrap(err, path)
		}

		// 48kHz clock
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition

		duration := time.Duration(float64(samples)/48000*1000) * time.Millisecond

		if err := write(media.Sample{Data: page, Duration: duration}); err != nil {
			return err
		}
	}
}

// streamH264 writes the NAL units of an Annex B file, one per frame interval.
func streamH264(ctx context.Context, path string, write sampleWriter) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h264, err := h264reader.NewReader(f)
	if err != nil {
		return errors.Wrap(err, path)
	}

	ticker := time.NewTicker(h264FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		nal, err := h264.NextNAL()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return errors.Wrap(err, path)
		}

		if err := write(media.Sample{Data: nal.Data, Duration: h264FrameDuration}); err != nil {
			return err
		}
	}
}

func runSource(ctx context.Context, name, path string, stream func(context.Context, string, sampleWriter) error, write sampleWriter) {
	if len(path) == 0 {
		return
	}

	log.Infof("streaming %s from %s", name, path)

	if err := stream(ctx, path, write); err != nil {
		log.Error(errors.Wrap(err, name))

		return
	}

	log.Infof("%s stream ended", name)
}
