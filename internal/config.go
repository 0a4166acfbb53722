package internal

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	modePublish   = "publish"
	modeSubscribe = "subscribe"

	envPrefix = "WEBRTC_MEDIAMTX"
)

type Config struct {
	Mode         string        `mapstructure:"mode"`
	PublishURL   string        `mapstructure:"publish-url"`
	SubscribeURL string        `mapstructure:"subscribe-url"`
	STUN         []string      `mapstructure:"stun"`
	Timeout      time.Duration `mapstructure:"timeout"`
	LogLevel     string        `mapstructure:"log-level"`
	DataChannel  bool          `mapstructure:"data-channel"`

	AudioFile string `mapstructure:"audio-file"`
	VideoFile string `mapstructure:"video-file"`

	User            string `mapstructure:"user"`
	Pass            string `mapstructure:"pass"`
	CredentialsFile string `mapstructure:"credentials"`
	CredentialsKey  string `mapstructure:"credentials-key"`
	SaveCredentials bool   `mapstructure:"save-credentials"`
}

// loadConfig parses args and overlays them, in this order of precedence, on environment
// variables (WEBRTC_MEDIAMTX_PUBLISH_URL, ...), the config file given by --config and
// the defaults.
func loadConfig(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("webrtc-mediamtx", pflag.ContinueOnError)

	configFile := flags.StringP("config", "c", "", "Path to a YAML, TOML or JSON file with any of the options below")

	// Signaling options.
	flags.StringP("mode", "m", modePublish, "Either publish a stream (WHIP) or subscribe to one (WHEP)")
	flags.String("publish-url", "http://localhost:8889/mystream", "Base URL of the stream to publish, \"/whip\" is appended")
	flags.String("subscribe-url", "http://localhost:8889/mystream", "Base URL of the stream to read, \"/whep\" is appended")
	flags.Duration("timeout", 10*time.Second, "Timeout of every single signaling request")

	// Peer options.
	flags.StringSliceP("stun", "S", []string{"stun.l.google.com:19302"}, "List of used STUN servers")
	flags.Bool("data-channel", false, "Open a data channel next to the media tracks and log what is received on it")

	// Publisher's media options.
	flags.String("audio-file", "", "Ogg/Opus file streamed as the audio track")
	flags.String("video-file", "", "H.264 Annex B file streamed as the video track")

	// Authentication options.
	flags.StringP("user", "u", "", "User of the signaling endpoint")
	flags.StringP("pass", "p", "", "Password of the signaling endpoint")
	flags.String("credentials", "", "Path to a file where encrypted credentials are saved to or taken from (see: --save-credentials)")
	flags.String("credentials-key", "", "AES key (16, 24 or 32 bytes) of the credentials file")
	flags.Bool("save-credentials", false, "Encrypt --user and --pass into the credentials file and exit")

	flags.String("log-level", "info", "Log level: trace, debug, info, warn or error")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, "flags")
	}

	if len(*configFile) != 0 {
		v.SetConfigFile(*configFile)

		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "config file")
		}
	}

	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "config")
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Mode != modePublish && c.Mode != modeSubscribe {
		return errors.Errorf("unknown mode %q", c.Mode)
	}

	if len(c.CredentialsFile) != 0 && len(c.CredentialsKey) == 0 {
		return errors.New("credentials file without credentials key")
	}

	if c.SaveCredentials && len(c.CredentialsFile) == 0 {
		return errors.New("nowhere to save credentials, --credentials is empty")
	}

	if c.Timeout < 0 {
		return errors.New("negative timeout")
	}

	return nil
}

func (c *Config) baseURL() string {
	if c.Mode == modeSubscribe {
		return c.SubscribeURL
	}

	return c.PublishURL
}
