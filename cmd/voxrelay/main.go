package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"golang.org/x/sync/errgroup"

	"voxrelay/internal/bus"
	"voxrelay/internal/config"
	"voxrelay/internal/httpapi"
	"voxrelay/internal/lang"
	"voxrelay/internal/nlu"
	"voxrelay/internal/pipeline"
	"voxrelay/internal/proxy"
	"voxrelay/internal/store"
	"voxrelay/internal/tts"
	"voxrelay/internal/voice"
	"voxrelay/pkg/stt"
	"voxrelay/pkg/stt/vosk"
	"voxrelay/pkg/stt/whisper"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	addr := cli.StringP("addr", "a", "", "Listen address (overrides HTTP_ADDR)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevelMap[*logLevel],
		TimeFormat: time.DateTime,
	})))

	log.Info("Booting up")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	if err := cfg.Bootstrap(); err != nil {
		log.Error("Failed to prepare directories", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *logLevel == "debug"); err != nil {
		log.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, debug bool) error {
	session := stt.NewSession(cfg.RecognizerModelPath(), recognizerLoader(cfg))
	defer session.Close()
	log.Debug("Recognizer configured", "engine", cfg.RecognizerEngine, "model", cfg.RecognizerModelPath())

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Debug("Store ready", "backend", cfg.StoreBackend)

	composer, err := replyComposer(cfg)
	if err != nil {
		return err
	}

	var publisher bus.Publisher = bus.Nop{}
	if cfg.BusURL != "" {
		b, err := bus.Dial(ctx, cfg.BusURL, cfg.BusShardName)
		if err != nil {
			log.Warn("Bus unavailable, events disabled", "url", cfg.BusURL, "err", err)
		} else {
			defer b.Close()
			publisher = b
		}
	}

	langs := lang.New(cfg.DefaultLanguage)
	log.Info("Language fallback", "default", langs.Default())

	p := pipeline.New(pipeline.Options{
		TargetRate: cfg.TargetSampleRate,
		UploadDir:  cfg.UploadDir,
		KeepSource: cfg.KeepSourceAudio,
	}, pipeline.Deps{
		Recognizer: session,
		Composer:   composer,
		Languages:  langs,
		Voices:     voice.NewResolver(cfg.VoiceModelDirs, voice.EnvOverrides),
		Synth:      tts.NewInvoker(cfg.TTSOutputDir, tts.Piper{Bin: cfg.PiperBin}, tts.NewExecRunner()),
		Store:      st,
		Publisher:  publisher,
	})

	router, err := httpapi.NewRouter(httpapi.Options{
		Processor: p,
		Store:     st,
		MaxUpload: cfg.MaxUploadBytes,
		Debug:     debug,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Boot up - successful", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		log.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func recognizerLoader(cfg *config.Config) stt.Loader {
	if cfg.RecognizerEngine == config.EngineWhisper {
		return whisper.Loader(whisper.Options{Language: "auto"})
	}
	return vosk.Load
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreBackend == config.StoreSQLite {
		return store.OpenSQLite(cfg.SQLitePath, cfg.TranscriptionDir)
	}
	return store.NewFileStore(cfg.TranscriptionDir)
}

func replyComposer(cfg *config.Config) (nlu.Composer, error) {
	if cfg.ReplyMode != config.ReplyAssistant {
		return nlu.Echo{}, nil
	}

	httpClient, err := proxy.NewHTTPClient(cfg.SocksProxy, 60*time.Second)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.SocksProxy, "err", err)
		return nil, err
	}
	log.Debug("Reply composer uses OpenAI", "model", cfg.OpenAIModel, "proxy", cfg.SocksProxy)

	return nlu.NewAssistant(cfg.OpenAIKey, cfg.OpenAIModel, httpClient), nil
}
