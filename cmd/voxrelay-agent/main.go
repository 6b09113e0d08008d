package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"voxrelay/internal/audio"
	"voxrelay/internal/client"
	"voxrelay/internal/ipc"
	"voxrelay/internal/notify"
)

const appName = "voxrelay-agent"

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type agent struct {
	rec    *audio.Recorder
	player *notify.Player
	ducker *audio.Ducker
	api    *client.Client

	cue      string
	language string
	workDir  string

	// one capture at a time
	busy sync.Mutex
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	server := cli.StringP("server", "u", "", "voxrelay server URL (default $VOXRELAY_URL or http://localhost:8000)")
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath(), "Control socket path")
	cue := cli.StringP("cue", "c", "beep.mp3", "Sound played when listening starts")
	language := cli.String("lang", "", "Force the reply language")
	duck := cli.Bool("duck", true, "Lower other audio streams while listening and speaking")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	if *server == "" {
		*server = os.Getenv("VOXRELAY_URL")
	}
	if *server == "" {
		*server = "http://localhost:8000"
	}

	workDir, err := os.MkdirTemp("", appName)
	if err != nil {
		log.Error("Failed to create work dir", "err", err)
		os.Exit(1)
	}
	defer os.RemoveAll(workDir)

	rec := audio.NewRecorder(audio.DefaultOptions())
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	a := &agent{
		rec:      rec,
		player:   notify.NewPlayer(),
		api:      client.New(*server, nil),
		cue:      *cue,
		language: *language,
		workDir:  workDir,
	}
	if *duck {
		a.ducker = audio.NewDucker(audio.Pactl{}, []string{appName}, 10)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.api.Health(ctx); err != nil {
		log.Warn("Server not reachable yet", "url", *server, "err", err)
	}

	srv, err := ipc.Listen(*socket, func(msg ipc.ControlMessage) error {
		switch msg.Cmd {
		case ipc.CmdTrigger:
			return a.trigger(ctx)
		case ipc.CmdPing:
			return nil
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return fmt.Errorf("unknown command %q", msg.Cmd)
		}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "server", *server, "socket", *socket)

	<-ctx.Done()
	log.Info("Shutting down")
}

// trigger starts a capture in the background; a second trigger while one
// is running is refused.
func (a *agent) trigger(ctx context.Context) error {
	if !a.busy.TryLock() {
		return errors.New("already listening")
	}

	go func() {
		defer a.busy.Unlock()
		if err := a.converse(ctx); err != nil {
			log.Error("Conversation failed", "err", err)
		}
	}()
	return nil
}

func (a *agent) converse(ctx context.Context) error {
	a.duck(ctx)
	defer a.restore(ctx)

	if err := a.player.Cue(a.cue); err != nil {
		log.Warn("Failed to play cue", "err", err)
	}

	log.Info("Starting listening")

	pcm, err := a.rec.RecordAuto(ctx)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	log.Info("Recorded", "samples", len(pcm))

	path := filepath.Join(a.workDir, fmt.Sprintf("rec-%d.wav", time.Now().UnixNano()))
	if err := audio.WriteWAV(path, pcm, a.rec.SampleRate()); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := a.api.Process(reqCtx, client.Request{
		Filename: filepath.Base(path),
		Data:     data,
		Language: a.language,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	log.Info("Transcribed", "id", resp.TranscriptionID, "text", resp.Transcript, "lang", resp.Language)
	log.Info("Reply", "text", resp.Reply)

	reply, err := resp.Audio()
	if err != nil {
		return fmt.Errorf("decode reply audio: %w", err)
	}

	replyPath := filepath.Join(a.workDir, resp.TranscriptionID+".wav")
	if err := os.WriteFile(replyPath, reply, 0o644); err != nil {
		return err
	}
	defer os.Remove(replyPath)

	if err := a.player.Play(replyPath); err != nil {
		return fmt.Errorf("voice out: %w", err)
	}
	return nil
}

func (a *agent) duck(ctx context.Context) {
	if a.ducker == nil {
		return
	}
	if err := a.ducker.Duck(ctx, 0.3, 150*time.Millisecond); err != nil {
		log.Debug("Ducking unavailable", "err", err)
	}
}

func (a *agent) restore(ctx context.Context) {
	if a.ducker == nil {
		return
	}
	if err := a.ducker.Restore(context.WithoutCancel(ctx), 300*time.Millisecond); err != nil {
		log.Debug("Failed to restore volumes", "err", err)
	}
}
