package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/oddbit-project/roadwatch"
	"github.com/oddbit-project/roadwatch/audit"
	"github.com/oddbit-project/roadwatch/auth"
	"github.com/oddbit-project/roadwatch/config/provider"
	"github.com/oddbit-project/roadwatch/log"
	"github.com/oddbit-project/roadwatch/ops"
	"github.com/oddbit-project/roadwatch/provider/metrics"
	"github.com/oddbit-project/roadwatch/session"
	"github.com/oddbit-project/roadwatch/telemetry"
)

const (
	VERSION = "1.0.0"
)

// CliArgs Command-line options
type CliArgs struct {
	ConfigFile  *string
	ShowVersion *bool
}

// Application roadwatch server container
type Application struct {
	container  *roadwatch.Container
	args       *CliArgs
	logger     *log.Logger
	sessions   *session.Store
	trail      *audit.Trail
	gate       *auth.Gate
	collectors *metrics.Collectors
	server     *telemetry.Server
	metricsSrv *metrics.Server
	opsServer  *ops.Server
}

// command-line args
var cliArgs = &CliArgs{
	ConfigFile:  flag.String("c", "config/roadwatchd.json", "Config file"),
	ShowVersion: flag.Bool("version", false, "Show version"),
}

// NewApplication application factory
func NewApplication(args *CliArgs) (*Application, error) {
	cfg, err := provider.NewJsonProvider(*args.ConfigFile)
	if err != nil {
		return nil, err
	}
	return &Application{
		container: roadwatch.NewContainer(cfg),
		args:      args,
	}, nil
}

// Build assembles the application from its config sections; any error aborts
// execution
func (a *Application) Build() {
	cfg := a.container.Config

	logConfig := log.NewDefaultConfig()
	if cfg.KeyExists("log") {
		a.container.AbortFatal(cfg.GetKey("log", logConfig))
	}
	a.container.AbortFatal(log.Configure(logConfig))
	a.logger = log.New("roadwatchd")
	a.logger.Info("building roadwatch server", map[string]interface{}{"version": VERSION})

	// session store
	sessionConfig := session.NewConfig()
	if cfg.KeyExists("sessions") {
		a.container.AbortFatal(cfg.GetKey("sessions", sessionConfig))
	}
	sessions, err := session.NewStore(sessionConfig, log.New("session-store"))
	a.container.AbortFatal(err)
	a.sessions = sessions

	// audit trail
	auditConfig := audit.NewConfig()
	if cfg.KeyExists("audit") {
		a.container.AbortFatal(cfg.GetKey("audit", auditConfig))
	}
	a.trail, err = audit.NewTrail(auditConfig, log.New("audit"))
	a.container.AbortFatal(err)

	// credential registry + auth gate
	authConfig := auth.NewConfig()
	a.container.AbortFatal(cfg.GetKey("auth", authConfig))
	registry, err := auth.LoadRegistry(authConfig.CredentialsFile)
	a.container.AbortFatal(err)
	a.gate, err = auth.NewGate(authConfig, registry, a.sessions, a.trail, log.New("auth-gate"))
	a.container.AbortFatal(err)

	// prometheus collectors + endpoint
	a.collectors = metrics.NewCollectors()
	if cfg.KeyExists("metrics") {
		metricsConfig := metrics.NewConfig()
		a.container.AbortFatal(cfg.GetKey("metrics", metricsConfig))
		a.metricsSrv, err = metrics.NewServer(metricsConfig)
		a.container.AbortFatal(err)
	}

	// telemetry server
	serverConfig := telemetry.NewServerConfig()
	a.container.AbortFatal(cfg.GetKey("server", serverConfig))
	handler := telemetry.NewHandler(serverConfig, a.gate, a.sessions, a.trail, a.collectors, log.New("telemetry"))
	a.server, err = telemetry.NewServer(serverConfig, handler, log.New("telemetry-server"))
	a.container.AbortFatal(err)

	// ops api
	if cfg.KeyExists("ops") {
		opsConfig := ops.NewServerConfig()
		a.container.AbortFatal(cfg.GetKey("ops", opsConfig))
		a.opsServer, err = ops.NewServer(opsConfig, log.New("ops-api"))
		a.container.AbortFatal(err)
		a.opsServer.RegisterRoutes(a.sessions, a.trail)
	}
}

func (a *Application) Run() {
	roadwatch.RegisterDestructor(func() error {
		a.sessions.Close()
		return a.trail.Close()
	})
	roadwatch.RegisterDestructor(func() error {
		return a.server.Shutdown(a.container.GetContext())
	})
	if a.metricsSrv != nil {
		roadwatch.RegisterDestructor(func() error {
			return a.metricsSrv.Shutdown(a.container.GetContext())
		})
	}
	if a.opsServer != nil {
		roadwatch.RegisterDestructor(func() error {
			return a.opsServer.Shutdown(a.container.GetContext())
		})
	}

	a.container.Run(func(app interface{}) error {
		a.sessions.StartCleanup()

		go func() {
			a.container.AbortFatal(a.server.Start())
		}()

		if a.metricsSrv != nil {
			go func() {
				a.container.AbortFatal(a.metricsSrv.Start())
			}()
		}
		if a.opsServer != nil {
			go func() {
				a.logger.Info(fmt.Sprintf("Running ops API at %s:%d", a.opsServer.Config.Host, a.opsServer.Config.Port))
				a.container.AbortFatal(a.opsServer.Start())
			}()
		}
		return nil
	})
}

func main() {
	flag.Parse()

	if *cliArgs.ShowVersion {
		fmt.Printf("Version: %s\n", VERSION)
		os.Exit(0)
	}

	app, err := NewApplication(cliArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Initialization failed: %v\n", err)
		os.Exit(-1)
	}

	// build application
	app.Build()

	// execute application
	app.Run()
}
