// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/tubebox/internal/api/connect"
	"github.com/osa030/tubebox/internal/app/cache"
	"github.com/osa030/tubebox/internal/app/jukebox"
	"github.com/osa030/tubebox/internal/app/notification"
	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/app/queue"
	"github.com/osa030/tubebox/internal/app/search"
	"github.com/osa030/tubebox/internal/infra/audio"
	"github.com/osa030/tubebox/internal/infra/config"
	"github.com/osa030/tubebox/internal/infra/logger"
	"github.com/osa030/tubebox/internal/infra/ytdlp"
)

var (
	app        = kingpin.New("tubebox-server", "tubebox playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// install-ytdlp command
	installCmd = app.Command("install-ytdlp", "Download the yt-dlp binary and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()

	if command == installCmd.FullCommand() {
		if err := ytdlp.Install(context.Background()); err != nil {
			zlog.Error().Err(err).Msg("Failed to install yt-dlp")
			closeLog()
			os.Exit(1)
		}
		return
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Error().Msgf("Failed to load config: %v", err)
		closeLog()
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closeLog()
		os.Exit(1)
	}
}

// run wires the components and serves until a signal or a server error.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Fetcher.AutoInstall {
		if err := ytdlp.Install(ctx); err != nil {
			return err
		}
	}

	fetcher := ytdlp.New(ytdlp.Config{
		Format:       cfg.Fetcher.Format,
		AudioFormat:  cfg.Fetcher.AudioFormat,
		AudioQuality: cfg.Fetcher.AudioQuality,
		Proxy:        cfg.Fetcher.Proxy,
	})

	trackCache, err := cache.New(cache.Config{
		Dir:              cfg.Cache.Dir,
		Extension:        cfg.Fetcher.AudioFormat,
		MaxEntries:       cfg.Cache.MaxEntries,
		PlaceholderTitle: cfg.Cache.PlaceholderTitle,
		Verify: func(path string) error {
			_, err := audio.Measure(path)
			return err
		},
	}, fetcher)
	if err != nil {
		return errors.Wrap(err, "failed to create track cache")
	}

	device, err := audio.New(cfg.Device.Type, cfg.Device.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to create audio device")
	}

	chain, err := search.NewChainFromConfig(ctx, cfg.Search, fetcher)
	if err != nil {
		return errors.Wrap(err, "failed to create search chain")
	}

	engine := playback.NewEngine(playback.Config{TickInterval: cfg.Playback.TickInterval()}, trackCache, device)
	store := queue.NewStore()
	trackCache.SetPinned(func(id string) bool {
		return store.Contains(id) || engine.Holds(id)
	})

	svc := jukebox.New(jukebox.Config{
		PollInterval:        cfg.Playback.PollInterval(),
		PrefetchInterval:    cfg.Prefetch.Interval(),
		PrefetchConcurrency: cfg.Prefetch.Concurrency,
		PrefetchDisabled:    cfg.Prefetch.Disabled,
	}, store, engine, trackCache, chain, notification.NewManager())

	mux := http.NewServeMux()
	controlPath, controlHandler := apiconnect.NewControlServiceHandler(apiconnect.NewControlService(svc), cfg.Admin.Token)
	mux.Handle(controlPath, controlHandler)
	mux.Handle(apiconnect.AudioPattern, apiconnect.NewAudioHandler(trackCache))

	if !cfg.AdminEnabled() {
		zlog.Warn().Msg("Admin token not configured, transport commands are open to every client")
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	var runErr error
	select {
	case <-ctx.Done():
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop playback first so watch streams end before the server drains.
	svc.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
