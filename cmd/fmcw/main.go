package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rjboer/GoFMCW/internal/app"
	"github.com/rjboer/GoFMCW/internal/config"
	"github.com/rjboer/GoFMCW/internal/dsp"
	"github.com/rjboer/GoFMCW/internal/fmcw"
	"github.com/rjboer/GoFMCW/internal/logging"
	"github.com/rjboer/GoFMCW/internal/mdns"
	"github.com/rjboer/GoFMCW/internal/render"
	"github.com/rjboer/GoFMCW/internal/sdr"
	"github.com/rjboer/GoFMCW/internal/telemetry"
)

const usage = `usage: fmcw <command> [flags]

commands:
  single       simulate one target and report its range
  multi        simulate several targets and build a range-Doppler map
  pulse        pulse-compress a Barker coded echo of one target
  stream       run the block stream loop against a synthetic source
  save-config  write radar parameters to a file
  show-config  load radar parameters from a file and print them
  discover     browse the local network for telemetry servers`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout); err != nil {
		log.Fatalf("fmcw: %v", err)
	}
}

func run(ctx context.Context, args []string, lookup func(string) (string, bool), out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	command := args[0]

	settings, err := config.LoadSettings(envString(lookup, "FMCW_CONFIG", ""))
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	cfg, err := parseConfig(command, args[1:], settings)
	if err != nil {
		return err
	}

	logger, err := logging.Configure(cfg.logLevel, cfg.logFormat, os.Stderr)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	switch command {
	case "single":
		return runSingle(cfg, logger, out)
	case "multi":
		return runMulti(ctx, cfg, logger, out)
	case "pulse":
		return runPulse(cfg, logger, out)
	case "stream":
		return runStream(ctx, cfg, logger, out)
	case "save-config":
		return runSaveConfig(cfg, out)
	case "show-config":
		return runShowConfig(cfg, out)
	case "discover":
		return runDiscover(ctx, cfg, out)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

type cliConfig struct {
	radar       fmcw.Config
	radarFile   string
	cfar        dsp.CFAR
	estimator   string
	impairments fmcw.Impairments

	target  fmcw.Target
	targets []fmcw.Target
	barker  int
	frame   int

	spectrumPlot string
	signalPlot   string
	surfacePlot  string

	streamMode   string
	blockSize    int
	interval     time.Duration
	blocks       int
	toneOffset   float64
	webAddr      string
	historyLimit int
	advertise    bool
	instance     string

	timeout   time.Duration
	logLevel  string
	logFormat string
	args      []string
}

func parseConfig(command string, args []string, defaults config.Settings) (cliConfig, error) {
	cfg := cliConfig{}
	var (
		targets  string
		pfa, cnr float64
	)
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.Float64Var(&cfg.radar.CarrierHz, "fc", defaults.Radar.CarrierHz, "Carrier frequency in Hz")
	fs.Float64Var(&cfg.radar.BandwidthHz, "bandwidth", defaults.Radar.BandwidthHz, "Sweep bandwidth in Hz")
	fs.Float64Var(&cfg.radar.ChirpDuration, "chirp", defaults.Radar.ChirpDuration, "Chirp duration in seconds")
	fs.Float64Var(&cfg.radar.SampleRateHz, "fs", defaults.Radar.SampleRateHz, "Sample rate in Hz")
	fs.StringVar(&cfg.radarFile, "radar-file", "", "Load radar parameters saved by save-config")
	fs.IntVar(&cfg.cfar.Guard, "guard", defaults.CFAR.Guard, "CFAR guard cells per side")
	fs.IntVar(&cfg.cfar.Training, "training", defaults.CFAR.Training, "CFAR training cells per side")
	fs.Float64Var(&cfg.cfar.Factor, "factor", defaults.CFAR.Factor, "CFAR threshold factor")
	fs.Float64Var(&pfa, "pfa", 0, "Derive the CFAR factor from this false alarm probability (0 keeps -factor)")
	fs.StringVar(&cfg.estimator, "estimator", defaults.CFAR.Estimator, "CFAR noise estimator (pair-sum|cell-average)")
	fs.Float64Var(&cfg.impairments.SNRdB, "snr", defaults.Channel.SNRdB, "Receiver SNR in dB")
	fs.Float64Var(&cfg.impairments.ClutterPower, "clutter", defaults.Channel.ClutterPower, "Clutter power (0 disables)")
	fs.Float64Var(&cnr, "cnr", 0, "Clutter power in dB relative to the chirp; overrides -clutter when set")
	fs.BoolVar(&cfg.impairments.Noiseless, "noiseless", defaults.Channel.Noiseless, "Skip receiver noise")
	fs.Int64Var(&cfg.impairments.Seed, "seed", defaults.Channel.Seed, "Noise seed")
	fs.Float64Var(&cfg.target.Range, "range", defaults.Stream.TargetRange, "Target range in metres")
	fs.Float64Var(&cfg.target.Velocity, "velocity", defaults.Stream.TargetVelocity, "Target radial velocity in m/s")
	fs.StringVar(&targets, "targets", "100:10,200:-5,300:0", "Targets as range:velocity pairs separated by commas")
	fs.IntVar(&cfg.barker, "barker", 13, "Barker code length for pulse (7|13)")
	fs.IntVar(&cfg.frame, "frame", 128, "Receive frame length in samples for pulse")
	fs.StringVar(&cfg.spectrumPlot, "plot", "", "Write the beat spectrum as PNG to this path")
	fs.StringVar(&cfg.signalPlot, "signals", "", "Write transmitted, received and beat signals as PNG to this path")
	fs.StringVar(&cfg.surfacePlot, "surface", "", "Write the range-Doppler map as HTML to this path")
	fs.StringVar(&cfg.streamMode, "mode", defaults.Stream.Mode, "Stream source (noise|tone|echo)")
	fs.IntVar(&cfg.blockSize, "block-size", defaults.Stream.BlockSize, "Samples per streamed block")
	fs.DurationVar(&cfg.interval, "interval", defaults.Stream.Interval, "Delay between streamed blocks")
	fs.IntVar(&cfg.blocks, "blocks", defaults.Stream.Blocks, "Number of blocks to stream (0 = until interrupted)")
	fs.Float64Var(&cfg.toneOffset, "tone-offset", defaults.Stream.ToneOffset, "Tone offset in Hz for the tone source")
	fs.StringVar(&cfg.webAddr, "web-addr", defaults.Web.Addr, "Optional web telemetry listen address (e.g. :8080)")
	fs.IntVar(&cfg.historyLimit, "history-limit", defaults.Web.HistoryLimit, "Maximum samples to keep in telemetry history")
	fs.BoolVar(&cfg.advertise, "advertise", defaults.MDNS.Advertise, "Advertise the web server over mDNS")
	fs.StringVar(&cfg.instance, "instance", defaults.MDNS.Instance, "mDNS instance name")
	fs.DurationVar(&cfg.timeout, "timeout", 3*time.Second, "mDNS browse timeout")
	fs.StringVar(&cfg.logLevel, "log-level", defaults.Log.Level, "Log level (debug|info|warn|error)")
	fs.StringVar(&cfg.logFormat, "log-format", defaults.Log.Format, "Log format (text|json)")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}
	cfg.args = fs.Args()

	est, err := dsp.ParseEstimator(cfg.estimator)
	if err != nil {
		return cliConfig{}, err
	}
	cfg.cfar.Estimator = est

	if cfg.targets, err = parseTargets(targets); err != nil {
		return cliConfig{}, err
	}

	if cfg.radarFile != "" {
		if cfg.radar, err = config.LoadRadar(cfg.radarFile); err != nil {
			return cliConfig{}, err
		}
	}

	if pfa != 0 {
		if cfg.cfar.Factor, err = dsp.ThresholdFactorForPFA(pfa, cfg.cfar.Training); err != nil {
			return cliConfig{}, fmt.Errorf("-pfa: %w", err)
		}
	}
	cnrSet := false
	fs.Visit(func(f *flag.Flag) { cnrSet = cnrSet || f.Name == "cnr" })
	if cnrSet {
		chirp, err := fmcw.GenerateChirp(cfg.radar)
		if err != nil {
			return cliConfig{}, fmt.Errorf("-cnr: %w", err)
		}
		cfg.impairments.ClutterPower = fmcw.ClutterPowerFromCNR(chirp.Samples, cnr)
	}
	return cfg, nil
}

// parseTargets reads "R:v,R:v". A bare range means zero velocity.
func parseTargets(s string) ([]fmcw.Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []fmcw.Target
	for _, part := range strings.Split(s, ",") {
		rs, vs, hasVel := strings.Cut(strings.TrimSpace(part), ":")
		r, err := strconv.ParseFloat(rs, 64)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", part, err)
		}
		t := fmcw.Target{Range: r}
		if hasVel {
			if t.Velocity, err = strconv.ParseFloat(vs, 64); err != nil {
				return nil, fmt.Errorf("target %q: %w", part, err)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func newProcessor(cfg cliConfig, logger logging.Logger) (*fmcw.Processor, error) {
	return fmcw.NewProcessor(cfg.radar,
		fmcw.WithImpairments(cfg.impairments),
		fmcw.WithCFAR(cfg.cfar),
		fmcw.WithLogger(logger),
	)
}

func runSingle(cfg cliConfig, logger logging.Logger, out io.Writer) error {
	p, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}
	res, err := p.ProcessTarget(cfg.target)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "target %s: %d samples, %d detections\n", res.Target, len(res.Beat), len(res.Detections))
	for _, d := range res.Detections {
		fmt.Fprintf(out, "  %s\n", d)
	}

	if cfg.spectrumPlot != "" {
		if err := writeFile(cfg.spectrumPlot, func(w io.Writer) error {
			return render.SpectrumPlot(res.Spectrum, res.Mask, w)
		}); err != nil {
			return fmt.Errorf("spectrum plot: %w", err)
		}
	}
	if cfg.signalPlot != "" {
		chirp := p.Chirp()
		rx, err := fmcw.SimulateReceived(chirp, p.Config(), res.Target)
		if err != nil {
			return err
		}
		if err := writeFile(cfg.signalPlot, func(w io.Writer) error {
			return render.TimePlot(chirp.Times, w,
				render.Series{Name: "transmitted", Values: chirp.Samples},
				render.Series{Name: "received", Values: rx},
				render.Series{Name: "beat", Values: res.Beat},
			)
		}); err != nil {
			return fmt.Errorf("signal plot: %w", err)
		}
	}
	return nil
}

func runMulti(ctx context.Context, cfg cliConfig, logger logging.Logger, out io.Writer) error {
	if len(cfg.targets) == 0 {
		return errors.New("no targets given")
	}
	p, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}
	m, err := p.ProcessTargets(ctx, cfg.targets)
	if err != nil {
		return err
	}
	row, col, mag := m.Peak()
	fmt.Fprintf(out, "range-doppler map %dx%d, peak at row %d col %d (|X|=%.4g)\n", m.Rows, m.Cols, row, col, mag)

	if cfg.surfacePlot != "" {
		if err := writeFile(cfg.surfacePlot, func(w io.Writer) error {
			return render.RangeDopplerSurface(m, w)
		}); err != nil {
			return fmt.Errorf("surface plot: %w", err)
		}
	}
	return nil
}

func runPulse(cfg cliConfig, logger logging.Logger, out io.Writer) error {
	p, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}
	res, err := p.ProcessPulse(cfg.target, cfg.barker, cfg.frame)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "target %s: barker-%d echo at sample %d\n", res.Target, len(res.Code), res.DelaySamples)
	fmt.Fprintf(out, "  peak=%d |y|=%.3g mean power=%.3g R=%.2fm\n",
		res.Stats.PeakIndex, res.Stats.PeakAmplitude, res.Stats.MeanPower, res.RangeM)

	if cfg.signalPlot != "" {
		times := make([]float64, len(res.Echo))
		for i := range times {
			times[i] = float64(i) / cfg.radar.SampleRateHz
		}
		if err := writeFile(cfg.signalPlot, func(w io.Writer) error {
			return render.TimePlot(times, w,
				render.Series{Name: "echo", Values: res.Echo},
				render.Series{Name: "compressed", Values: res.Compressed},
			)
		}); err != nil {
			return fmt.Errorf("signal plot: %w", err)
		}
	}
	return nil
}

func runStream(ctx context.Context, cfg cliConfig, logger logging.Logger, out io.Writer) error {
	reporters := telemetry.MultiReporter{telemetry.NewStdoutReporter(logger)}
	if cfg.webAddr != "" {
		hub := telemetry.NewHub(cfg.historyLimit, logger)
		reporters = append(reporters, hub)
		go telemetry.NewWebServer(cfg.webAddr, hub).Start(ctx)
		fmt.Fprintf(out, "web interface: http://localhost%s\n", cfg.webAddr)

		if cfg.advertise {
			port, err := listenPort(cfg.webAddr)
			if err != nil {
				return err
			}
			if err := mdns.Advertise(ctx, cfg.instance, port, []string{"path=/"}); err != nil {
				logger.Warn("mdns advertise failed", logging.F("error", err))
			}
		}
	}

	var pacer app.Pacer = app.NoPacer{}
	if cfg.interval > 0 {
		tp := app.NewTickerPacer(cfg.interval)
		defer tp.Stop()
		pacer = tp
	}

	streamer := app.NewStreamer(sdr.NewMock(), reporters, logger, pacer, app.Config{CFAR: cfg.cfar})
	srcCfg := sdr.Config{
		Mode:       sdr.Mode(cfg.streamMode),
		BlockSize:  cfg.blockSize,
		SampleRate: cfg.radar.SampleRateHz,
		Blocks:     cfg.blocks,
		Seed:       cfg.impairments.Seed,
		ToneOffset: cfg.toneOffset,
		Radar:      cfg.radar,
		Target:     cfg.target,
		Impairment: cfg.impairments,
	}
	if err := streamer.Init(ctx, srcCfg); err != nil {
		return err
	}

	n, err := streamer.Run(ctx)
	fmt.Fprintf(out, "streamed %d blocks (session %s)\n", n, streamer.Session())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runSaveConfig(cfg cliConfig, out io.Writer) error {
	if len(cfg.args) != 1 {
		return errors.New("save-config needs exactly one path")
	}
	if err := config.SaveRadar(cfg.args[0], cfg.radar); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved radar configuration to %s\n", cfg.args[0])
	return nil
}

func runShowConfig(cfg cliConfig, out io.Writer) error {
	if len(cfg.args) != 1 {
		return errors.New("show-config needs exactly one path")
	}
	radar, err := config.LoadRadar(cfg.args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "fc=%g B=%g T=%g fs=%g\n", radar.CarrierHz, radar.BandwidthHz, radar.ChirpDuration, radar.SampleRateHz)
	if err := radar.Validate(); err != nil {
		fmt.Fprintf(out, "warning: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "samples/chirp=%d range resolution=%.3gm max range=%.4gm\n", radar.NumSamples(), radar.RangeResolution(), radar.MaxRange())
	return nil
}

func runDiscover(ctx context.Context, cfg cliConfig, out io.Writer) error {
	hosts, err := mdns.Discover(ctx, cfg.timeout)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Fprintln(out, "no telemetry servers found")
		return nil
	}
	for _, h := range hosts {
		fmt.Fprintf(out, "%s\t%s\n", h.Instance, h.URL())
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("web addr %q: %w", addr, err)
	}
	return strconv.Atoi(p)
}

func envString(lookup func(string) (string, bool), key, def string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return def
}
