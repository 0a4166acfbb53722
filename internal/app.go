package internal

import (
	"context"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"webrtc-mediamtx/pkg/credentials"
	"webrtc-mediamtx/pkg/crypto"
	"webrtc-mediamtx/pkg/log"
	"webrtc-mediamtx/pkg/peer"
	"webrtc-mediamtx/pkg/session"
	"webrtc-mediamtx/pkg/signal"

	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pkg/errors"
)

const closeTimeout = 5 * time.Second

// Session is what App needs from both session.Publisher and session.Subscriber.
type Session interface {
	ID() string
	Start(context.Context) error
	Close(context.Context) error
	Subscribe() (<-chan session.Status, func())
}

type App struct {
	cfg *Config

	credentials *credentials.Store
	signal      *signal.HTTP
	peer        *peer.WebRTC
	session     Session
	stats       stats
}

func NewApp() *App {
	return &App{}
}

func (a *App) Setup(args []string) (err error) {
	a.cfg, err = loadConfig(args)
	if err != nil {
		return err
	}

	log.SetupLogger(a.cfg.LogLevel)

	if len(a.cfg.CredentialsFile) != 0 {
		if err := a.setupCredentials(); err != nil {
			return err
		}
	}

	if a.cfg.SaveCredentials {
		return nil
	}

	return a.setupSession()
}

func (a *App) Run(ctx context.Context, cancel context.CancelFunc) error {
	if a.cfg.SaveCredentials {
		return errors.Wrap(a.credentials.Save(a.cfg.User, a.cfg.Pass), "credentials")
	}

	return a.runSession(ctx, cancel)
}

func (a *App) setupCredentials() (err error) {
	c, err := crypto.NewAesCbc(crypto.AesCbcConfig{
		Key: []byte(a.cfg.CredentialsKey),
	})
	if err != nil {
		return errors.Wrap(err, "credentials crypto")
	}

	a.credentials = credentials.NewStore(credentials.StoreConfig{
		File: a.cfg.CredentialsFile,
	}, c)

	return nil
}

func (a *App) setupSession() (err error) {
	user, pass := a.cfg.User, a.cfg.Pass

	// Credentials given on the command line take precedence over the saved ones.
	if a.credentials != nil && len(user) == 0 {
		user, pass, err = a.credentials.Load()
		if err != nil {
			return errors.Wrap(err, "credentials")
		}
	}

	a.signal = signal.NewHTTP(signal.HTTPConfig{
		Timeout: a.cfg.Timeout,
		User:    user,
		Pass:    pass,
	})

	direction, path := peer.Publish, "whip"

	if a.cfg.Mode == modeSubscribe {
		direction, path = peer.Subscribe, "whep"
	}

	endpoint, err := signal.Endpoint(a.cfg.baseURL(), path)
	if err != nil {
		return err
	}

	a.peer, err = peer.NewWebRTC(peer.WebRTCConfig{
		STUN:        a.cfg.STUN,
		Direction:   direction,
		DataChannel: a.cfg.DataChannel,
	})
	if err != nil {
		return errors.Wrap(err, "peer connection")
	}

	a.peer.OnData(func(payload []byte) {
		log.Infof("data channel: %q", payload)
	})

	cfg := session.Config{Endpoint: endpoint}

	if direction == peer.Subscribe {
		a.peer.OnAudio(a.stats.addAudio)
		a.peer.OnVideo(a.stats.addVideo)

		a.session = session.NewSubscriber(cfg, a.peer, a.signal)
	} else {
		a.peer.OnLocalVideo(func(sample media.Sample) {
			log.Debugf("local preview: %d bytes", len(sample.Data))
		})

		a.session = session.NewPublisher(cfg, a.peer, a.signal)
	}

	return nil
}

func (a *App) runSession(ctx context.Context, cancel context.CancelFunc) error {
	log.Infof("Starting %s session %s, endpoint: %s", a.cfg.Mode, a.session.ID(), a.cfg.baseURL())
	defer log.Info("Ending session ", a.session.ID())

	a.listenOS(cancel)

	states, unsubscribe := a.session.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()

		a.watchStates(ctx, states)
	}()

	startErr := make(chan error, 1)

	go func() {
		startErr <- a.session.Start(ctx)
	}()

	var err error

	select {
	case <-ctx.Done():
	case <-a.peer.Done():
	case err = <-startErr:
		if err == nil || errors.Is(err, signal.ErrRemoteDescriptionApply) {
			if err != nil {
				log.Error(err)
			}

			err = nil

			select {
			case <-ctx.Done():
			case <-a.peer.Done():
			}
		}
	}

	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
	defer closeCancel()

	if err := a.session.Close(closeCtx); err != nil {
		log.Error(err)
	}

	a.peer.Close()

	return errors.Wrap(err, "session")
}

// watchStates logs state notifications and starts the media once connected.
func (a *App) watchStates(ctx context.Context, states <-chan session.Status) {
	var once sync.Once

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}

			if st.State != session.StateConnected {
				continue
			}

			once.Do(func() {
				if a.cfg.Mode == modeSubscribe {
					go a.stats.report(ctx)

					return
				}

				go runSource(ctx, "audio", a.cfg.AudioFile, streamOgg, a.peer.WriteAudio)
				go runSource(ctx, "video", a.cfg.VideoFile, streamH264, a.peer.WriteVideo)
			})
		}
	}
}

func (a *App) listenOS(cancel context.CancelFunc) {
	sigchan := make(chan os.Signal, 1)
	ossignal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigchan
		cancel()
	}()
}
