// Command viewer opens a city model in a desktop window. With
// bridge.listen set, a browser UI can drive it over WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"city-viewer/bus"
	"city-viewer/core"
	"city-viewer/engine"
	"city-viewer/internal/desktop"
	"city-viewer/internal/logging"
	"city-viewer/internal/opengl"
	"city-viewer/internal/wsbridge"
	cityio "city-viewer/io"
)

type options struct {
	configPath string
	baseURL    string
	modelDir   string
	logLevel   string
	listen     string
	model      string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "viewer [model id]",
		Short:        "Interactive 3D viewer for city models",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.model = args[0]
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts.model)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "viewer.yaml", "YAML config file")
	f.StringVar(&opts.baseURL, "base-url", "", "city model server URL")
	f.StringVar(&opts.modelDir, "model-dir", "", "read models from this directory instead of the server")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&opts.listen, "listen", "", "WebSocket bridge address, e.g. :8089")
	return cmd
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts options) (core.Config, error) {
	cfg, err := core.LoadConfig(opts.configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Server.BaseURL = opts.baseURL
	}
	if flags.Changed("model-dir") {
		cfg.Viewer.ModelDir = opts.modelDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("listen") {
		cfg.Bridge.Listen = opts.listen
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg core.Config, model string) error {
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	win, err := desktop.NewWindow(cfg.Window, logger)
	if err != nil {
		return err
	}
	defer win.Destroy()

	rend, err := opengl.New(opengl.Options{
		ClearColor:    cfg.ClearColor(),
		ShadowMapSize: opengl.DefaultShadowMapSize,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	client := cityio.NewClient(cfg.Server, logger)
	events := bus.New()
	eng := engine.New(engine.Config{
		Renderer:        rend,
		Frames:          win,
		Loader:          newLoader(cfg, client, logger),
		Uploader:        client,
		Bus:             events,
		Logger:          logger,
		ResizeDelay:     cfg.Viewer.ResizeDebounce,
		AfterFunc:       win.AfterFunc,
		PointsThreshold: cfg.Viewer.PointsThreshold,
		Invoke:          win.Post,
	})
	if err := eng.Attach(win); err != nil {
		return err
	}
	defer eng.Unmount()
	win.Bind(eng)
	if err := eng.Initialize(); err != nil {
		return err
	}

	unsub := logEvents(events, logger)
	defer unsub()

	if cfg.Bridge.Listen != "" {
		shutdown := serveBridge(cfg.Bridge, events, eng, logger)
		defer shutdown()
	}

	if model != "" {
		// Loading runs off the main thread so the window stays responsive.
		go events.Publish(ctx, bus.LoadScene{ModelID: model})
	}

	logger.Info("viewer running", zap.Stringer("viewport", win.Size()), zap.String("model", model))
	win.Run(ctx)
	logger.Info("viewer closed")
	return nil
}

func newLoader(cfg core.Config, client *cityio.Client, logger *zap.Logger) cityio.FormatLoader {
	if cfg.Viewer.ModelDir == "" {
		return cityio.FormatLoader{CityJSON: cityio.NewCityJSONLoader(client, logger)}
	}
	return cityio.FormatLoader{
		CityJSON: cityio.NewCityJSONLoader(cityio.DirFetcher{Dir: cfg.Viewer.ModelDir}, logger),
		GLTF:     cityio.NewGLTFLoader(cfg.Viewer.ModelDir, logger),
	}
}

// logEvents writes the user-facing notifications to the log, since the
// desktop viewer has no toast area of its own.
func logEvents(b *bus.Bus, logger *zap.Logger) func() {
	log := logger.Named("notify")
	unsubs := []func(){
		b.Subscribe(bus.KindSuccess, func(_ context.Context, ev bus.Event) {
			log.Info(ev.(bus.Success).Message)
		}),
		b.Subscribe(bus.KindInfo, func(_ context.Context, ev bus.Event) {
			log.Info(ev.(bus.Info).Message)
		}),
		b.Subscribe(bus.KindCityModelLoaded, func(_ context.Context, ev bus.Event) {
			log.Info("city model loaded", zap.String("model", ev.(bus.CityModelLoaded).ModelID))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func serveBridge(cfg core.BridgeConfig, b *bus.Bus, eng *engine.Engine, logger *zap.Logger) func() {
	br := wsbridge.New(b, eng, logger)
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, br)
	srv := &http.Server{Addr: cfg.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("bridge listening", zap.String("addr", cfg.Listen), zap.String("path", cfg.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("bridge stopped", zap.Error(err))
		}
	}()

	return func() {
		br.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("bridge shutdown", zap.Error(fmt.Errorf("shutdown %s: %w", cfg.Listen, err)))
		}
	}
}
