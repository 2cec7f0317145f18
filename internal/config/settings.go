package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rjboer/GoFMCW/internal/dsp"
	"github.com/rjboer/GoFMCW/internal/fmcw"
)

// Settings holds everything the command line tool can be configured with.
type Settings struct {
	Radar   RadarSettings   `mapstructure:"radar"`
	CFAR    CFARSettings    `mapstructure:"cfar"`
	Channel ChannelSettings `mapstructure:"channel"`
	Stream  StreamSettings  `mapstructure:"stream"`
	Log     LogSettings     `mapstructure:"log"`
	Web     WebSettings     `mapstructure:"web"`
	MDNS    MDNSSettings    `mapstructure:"mdns"`
}

type RadarSettings struct {
	CarrierHz     float64 `mapstructure:"fc"`
	BandwidthHz   float64 `mapstructure:"bandwidth"`
	ChirpDuration float64 `mapstructure:"chirp_duration"`
	SampleRateHz  float64 `mapstructure:"sample_rate"`
}

type CFARSettings struct {
	Guard     int     `mapstructure:"guard"`
	Training  int     `mapstructure:"training"`
	Factor    float64 `mapstructure:"factor"`
	Estimator string  `mapstructure:"estimator"`
}

type ChannelSettings struct {
	SNRdB        float64 `mapstructure:"snr_db"`
	ClutterPower float64 `mapstructure:"clutter_power"`
	Noiseless    bool    `mapstructure:"noiseless"`
	Seed         int64   `mapstructure:"seed"`
}

type StreamSettings struct {
	Mode           string        `mapstructure:"mode"`
	BlockSize      int           `mapstructure:"block_size"`
	Interval       time.Duration `mapstructure:"interval"`
	Blocks         int           `mapstructure:"blocks"`
	ToneOffset     float64       `mapstructure:"tone_offset"`
	TargetRange    float64       `mapstructure:"target_range"`
	TargetVelocity float64       `mapstructure:"target_velocity"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WebSettings struct {
	Addr         string `mapstructure:"addr"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

type MDNSSettings struct {
	Advertise bool   `mapstructure:"advertise"`
	Instance  string `mapstructure:"instance"`
}

// EnvPrefix is prepended to every environment override, e.g. FMCW_RADAR_FC.
const EnvPrefix = "FMCW"

func setDefaults(v *viper.Viper) {
	def := fmcw.DefaultConfig()
	v.SetDefault("radar.fc", def.CarrierHz)
	v.SetDefault("radar.bandwidth", def.BandwidthHz)
	v.SetDefault("radar.chirp_duration", def.ChirpDuration)
	v.SetDefault("radar.sample_rate", def.SampleRateHz)

	c := fmcw.DefaultCFAR()
	v.SetDefault("cfar.guard", c.Guard)
	v.SetDefault("cfar.training", c.Training)
	v.SetDefault("cfar.factor", c.Factor)
	v.SetDefault("cfar.estimator", c.Estimator.String())

	imp := fmcw.DefaultImpairments()
	v.SetDefault("channel.snr_db", imp.SNRdB)
	v.SetDefault("channel.clutter_power", imp.ClutterPower)
	v.SetDefault("channel.noiseless", imp.Noiseless)
	v.SetDefault("channel.seed", imp.Seed)

	v.SetDefault("stream.mode", "noise")
	v.SetDefault("stream.block_size", 1024)
	v.SetDefault("stream.interval", 100*time.Millisecond)
	v.SetDefault("stream.blocks", 0)
	v.SetDefault("stream.tone_offset", 1e6)
	v.SetDefault("stream.target_range", 100.0)
	v.SetDefault("stream.target_velocity", 0.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("web.addr", "")
	v.SetDefault("web.history_limit", 500)

	v.SetDefault("mdns.advertise", false)
	v.SetDefault("mdns.instance", "fmcw")
}

// LoadSettings reads settings from file, or from fmcw.{yaml,json,toml} in the
// working directory or /etc/fmcw when file is empty. A missing default file is
// not an error. Environment variables override both.
func LoadSettings(file string) (Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("fmcw")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fmcw")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("%w: decode settings: %v", ErrIOFailure, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the radar and CFAR sections.
func (s Settings) Validate() error {
	if err := s.RadarConfig().Validate(); err != nil {
		return err
	}
	if _, err := s.CFARConfig(); err != nil {
		return err
	}
	if s.CFAR.Guard < 0 || s.CFAR.Training <= 0 {
		return fmt.Errorf("%w: cfar guard %d training %d", fmcw.ErrInvalidConfig, s.CFAR.Guard, s.CFAR.Training)
	}
	if s.Stream.BlockSize < 0 || s.Stream.Blocks < 0 {
		return fmt.Errorf("%w: negative stream block size or count", fmcw.ErrInvalidConfig)
	}
	return nil
}

// RadarConfig converts the radar section.
func (s Settings) RadarConfig() fmcw.Config {
	return fmcw.Config{
		CarrierHz:     s.Radar.CarrierHz,
		BandwidthHz:   s.Radar.BandwidthHz,
		ChirpDuration: s.Radar.ChirpDuration,
		SampleRateHz:  s.Radar.SampleRateHz,
	}
}

// CFARConfig converts the cfar section.
func (s Settings) CFARConfig() (dsp.CFAR, error) {
	est, err := dsp.ParseEstimator(s.CFAR.Estimator)
	if err != nil {
		return dsp.CFAR{}, err
	}
	return dsp.CFAR{
		Guard:     s.CFAR.Guard,
		Training:  s.CFAR.Training,
		Factor:    s.CFAR.Factor,
		Estimator: est,
	}, nil
}

// Impairments converts the channel section.
func (s Settings) Impairments() fmcw.Impairments {
	return fmcw.Impairments{
		SNRdB:        s.Channel.SNRdB,
		ClutterPower: s.Channel.ClutterPower,
		Noiseless:    s.Channel.Noiseless,
		Seed:         s.Channel.Seed,
	}
}
