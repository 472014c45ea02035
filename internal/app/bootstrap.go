package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"rpcexpose/internal/config"
	"rpcexpose/internal/endpoint"
	"rpcexpose/pkg/logging"
)

// Application represents the main application structure that bootstraps and runs rpcexpose.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: Load configuration, initialize logging, build services
//  2. Execution phase: Serve until the context is cancelled
//
// Example usage:
//
//	cfg := app.NewConfig(false, "rpcexpose.yaml", version)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services

	// notify reports lifecycle state to the service manager.
	notify func(state string)
}

// NewApplication loads the configuration, reconfigures logging from it and
// builds all services. Compile errors of the exposed routes surface here,
// before anything listens.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.Settings == nil {
		settings, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration")
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Settings = &settings
	}

	level := logging.ParseLevel(cfg.Settings.Logging.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stdout
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.Init(level, logging.Format(cfg.Settings.Logging.Format), logOutput)
	if cfg.ConfigPath != "" {
		logging.Info("Bootstrap", "Loaded configuration from %s", cfg.ConfigPath)
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
		notify:   sdNotify,
	}, nil
}

// Services returns the components of the application.
func (a *Application) Services() *Services {
	return a.services
}

// Routes compiles every deferred route and returns the endpoint table.
func (a *Application) Routes() ([]endpoint.Route, error) {
	if err := a.services.Table.CompileAll(); err != nil {
		return nil, err
	}
	return a.services.Table.Routes(), nil
}

// Run serves until ctx is cancelled or a transport fails, then drains
// in-flight calls and releases service instances.
func (a *Application) Run(ctx context.Context) error {
	return a.run(ctx, nil)
}

func (a *Application) run(ctx context.Context, ready func(addr net.Addr)) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.services.HTTP.Serve(gctx, func(addr net.Addr) {
			a.notify(daemon.SdNotifyReady)
			if ready != nil {
				ready(addr)
			}
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Bootstrap", "Stopping")
		a.notify(daemon.SdNotifyStopping)
		return nil
	})

	err := g.Wait()
	if cerr := a.services.Activator.Close(); cerr != nil {
		logging.Warn("Bootstrap", "Failed to close service instances: %v", cerr)
	}
	return err
}

func sdNotify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("Bootstrap", "Failed to notify systemd: %v", err)
		return
	}
	if sent {
		logging.Debug("Bootstrap", "Notified systemd: %s", state)
	}
}
