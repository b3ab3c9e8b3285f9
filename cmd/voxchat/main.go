package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"voxchat/internal/assistant"
	"voxchat/internal/audio"
	"voxchat/internal/bus"
	"voxchat/internal/capture"
	"voxchat/internal/completion"
	"voxchat/internal/config"
	"voxchat/internal/ipc"
	"voxchat/internal/notify"
	"voxchat/internal/observe"
	"voxchat/internal/proxy"
	"voxchat/internal/tts"
	"voxchat/pkg/audioconv"
	"voxchat/pkg/stt"
)

var version = "dev"

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	configPath := cli.StringP("config", "c", "", "YAML config file")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides config)")
	source := cli.StringP("source", "s", "", "Capture source: mic, stdin, files, bus")
	output := cli.StringP("output", "o", "", "Speech output: espeak, console, bus")
	locale := cli.String("locale", "", "Recognition and speech locale, e.g. pt-BR")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS5 proxy for the completion API")
	metricsAddr := cli.StringP("metrics", "m", "", "Serve Prometheus metrics on this address")
	cli.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	override(&cfg.LogLevel, *logLevel)
	override(&cfg.Capture.Source, *source)
	override(&cfg.Speech.Output, *output)
	override(&cfg.Locale, *locale)
	override(&cfg.Completion.Proxy, *proxyAddr)
	override(&cfg.Metrics.Addr, *metricsAddr)
	if len(cli.Args()) > 0 {
		cfg.Capture.Files = cli.Args()
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[cfg.LogLevel],
	})))

	log.Info("Booting up", "version", version, "source", cfg.Capture.Source, "output", cfg.Speech.Output)

	_ = godotenv.Load(*envFile)

	if err := run(cfg); err != nil {
		log.Error("Exiting", "err", err)
		os.Exit(1)
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return errors.New("OPENAI_API_KEY not set")
	}

	metrics, shutdown, err := observe.InitProvider(ctx, version)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := observe.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error("Metrics server failed", "err", err)
			}
		}()
	}

	httpClient, err := proxy.NewHTTPClient(cfg.Completion.Proxy, cfg.Completion.Timeout)
	if err != nil {
		return fmt.Errorf("dial socks proxy %s: %w", cfg.Completion.Proxy, err)
	}

	api, err := completion.New(completion.Config{
		APIKey:        apiKey,
		Model:         cfg.Completion.Model,
		BaseURL:       cfg.Completion.BaseURL,
		HTTPClient:    httpClient,
		FallbackReply: cfg.Completion.FallbackReply,
		ErrorReply:    cfg.Completion.ErrorReply,
		Metrics:       metrics,
	})
	if err != nil {
		return err
	}

	var b *bus.Bus
	if cfg.UsesBus() {
		b, err = bus.Dial(cfg.Bus.URL, cfg.Bus.Name)
		if err != nil {
			return fmt.Errorf("connect to bus: %w", err)
		}
		defer b.Close()
	}

	rec, release, err := newCapture(cfg, b)
	if err != nil {
		return err
	}
	defer release()

	spk := newSpeaker(cfg, b)

	opts := assistant.Options{
		Locale: cfg.Locale,
		Triggers: assistant.Triggers{
			Wake:     cfg.Triggers.Wake,
			Playback: cfg.Triggers.Playback,
			Send:     cfg.Triggers.Send,
		},
		Acknowledgement: cfg.Speech.Acknowledgement,
		RestartDelay:    cfg.Capture.RestartDelay,
		RequireWake:     cfg.Session.RequireWake,
		ResumeAfterSend: cfg.Session.ResumeAfterSend,
		Metrics:         metrics,
	}
	if cfg.Speech.Cue != "" {
		opts.Cue = notify.NewCue(cfg.Speech.Cue)
	}

	ctrl := assistant.New(rec, spk, api, opts)

	srv, err := ipc.StartServer(cfg.IPC.Socket, func(msg ipc.ControlMessage) error {
		switch msg.Cmd {
		case ipc.CmdStart, ipc.CmdStop, ipc.CmdSend, ipc.CmdPlayback:
			return ctrl.Submit(ctx, assistant.Command(msg.Cmd))
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return fmt.Errorf("unknown command %q", msg.Cmd)
		}
	})
	if err != nil {
		return fmt.Errorf("start control socket: %w", err)
	}
	defer srv.Close()

	log.Info("Boot up - successful")
	return ctrl.Run(ctx)
}

func newCapture(cfg *config.Config, b *bus.Bus) (capture.Adapter, func(), error) {
	noop := func() {}

	switch cfg.Capture.Source {
	case "stdin":
		return capture.NewLines(os.Stdin), noop, nil

	case "bus":
		return capture.NewRemote(b, cfg.Bus.Recognizer), noop, nil

	case "files":
		tr, err := stt.NewTranscriber(cfg.Capture.WhisperModel, stt.Options{})
		if err != nil {
			return nil, nil, fmt.Errorf("init whisper: %w", err)
		}
		src := audioconv.NewFileSource(cfg.Capture.Files, audioconv.Options{})
		return capture.NewPCM(src, tr), func() { _ = tr.Close() }, nil
	}

	rec := audio.NewRecorder(audio.RecorderConfig{
		SilenceRMS:  cfg.Capture.SilenceRMS,
		SilenceHold: cfg.Capture.SilenceHold,
		MaxLength:   cfg.Capture.MaxUtterance,
	})
	if err := rec.Init(); err != nil {
		return nil, nil, fmt.Errorf("init audio: %w", err)
	}
	log.Debug("Loaded recorder")

	tr, err := stt.NewTranscriber(cfg.Capture.WhisperModel, stt.Options{})
	if err != nil {
		rec.Close()
		return nil, nil, fmt.Errorf("init whisper: %w", err)
	}
	log.Debug("Loaded whisper", "model", cfg.Capture.WhisperModel)

	return capture.NewPCM(rec, tr), func() {
		_ = tr.Close()
		rec.Close()
	}, nil
}

func newSpeaker(cfg *config.Config, b *bus.Bus) tts.Speaker {
	var spk tts.Speaker
	switch cfg.Speech.Output {
	case "console":
		spk = tts.NewConsole(os.Stdout)
	case "bus":
		spk = tts.NewRemote(b, cfg.Bus.Voice)
	default:
		spk = tts.NewEspeak()
	}

	if d := cfg.Speech.Duck; d.Enabled {
		spk = tts.WithDucking(spk, audio.NewDucker(nil, audio.DuckConfig{
			Keep:   d.Keep,
			Factor: d.Factor,
			Floor:  d.Floor,
			Fade:   d.Fade,
		}))
	}
	return spk
}
