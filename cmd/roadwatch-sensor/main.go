package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/oddbit-project/roadwatch"
	"github.com/oddbit-project/roadwatch/config/provider"
	"github.com/oddbit-project/roadwatch/log"
	"github.com/oddbit-project/roadwatch/sensor"
)

const (
	VERSION = "1.0.0"
)

// CliArgs Command-line options
type CliArgs struct {
	ConfigFile  *string
	Interval    *int
	ShowVersion *bool
}

// Application sensor emulator; captures synthetic frames and streams
// telemetry until interrupted
type Application struct {
	container *roadwatch.Container
	args      *CliArgs
	logger    *log.Logger
	client    *sensor.Client
	width     int
	height    int
}

// command-line args
var cliArgs = &CliArgs{
	ConfigFile:  flag.String("c", "config/sensor.json", "Config file"),
	Interval:    flag.Int("interval", 2, "Seconds between frames"),
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

func (a *Application) Build() {
	logConfig := log.NewDefaultConfig()
	if a.container.Config.KeyExists("log") {
		a.container.AbortFatal(a.container.Config.GetKey("log", logConfig))
	}
	a.container.AbortFatal(log.Configure(logConfig))
	a.logger = log.New("roadwatch-sensor")

	clientConfig := sensor.NewConfig()
	a.container.AbortFatal(a.container.Config.GetKey("sensor", clientConfig))

	a.width, a.height = 640, 480
	if a.container.Config.KeyExists("frameWidth") {
		w, err := a.container.Config.GetIntKey("frameWidth")
		a.container.AbortFatal(err)
		a.width = w
	}
	if a.container.Config.KeyExists("frameHeight") {
		h, err := a.container.Config.GetIntKey("frameHeight")
		a.container.AbortFatal(err)
		a.height = h
	}

	client, err := sensor.NewClient(clientConfig, sensor.NullDetector{}, a.logger)
	a.container.AbortFatal(err)
	a.client = client
}

// captureFrame produces a synthetic grayscale frame; stands in for a camera
// capture pipeline
func (a *Application) captureFrame() *sensor.Frame {
	pixels := make([]uint8, a.width*a.height)
	for i := range pixels {
		pixels[i] = uint8(rand.Intn(256))
	}
	return &sensor.Frame{Width: a.width, Height: a.height, Pixels: pixels}
}

func (a *Application) Run() {
	roadwatch.RegisterDestructor(func() error {
		return a.client.Close()
	})

	a.container.Run(func(app interface{}) error {
		a.container.AbortFatal(a.client.Connect())

		go func() {
			ticker := time.NewTicker(time.Duration(*a.args.Interval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-a.container.GetContext().Done():
					return
				case <-ticker.C:
					resp, err := a.client.SendFrame(a.captureFrame())
					if err != nil {
						a.logger.Error(err, "telemetry send failed", nil)
						a.container.CancelCtx()
						return
					}
					a.logger.Info("telemetry acknowledged", map[string]interface{}{
						"signalState":     resp.SignalState,
						"congestionLevel": resp.CongestionLevel,
					})
				}
			}
		}()
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

	app.Build()
	app.Run()
}
