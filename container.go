package roadwatch

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/oddbit-project/roadwatch/config"
	"github.com/rs/zerolog/log"
)

type RuntimeFn func(app interface{}) error

type Container struct {
	Config    config.ConfigProvider
	Context   context.Context
	CancelCtx context.CancelFunc
}

// NewContainer creates a container runtime with the specified config provider
// and a new application context
func NewContainer(config config.ConfigProvider) *Container {
	ctx, cancelFn := context.WithCancel(context.Background())
	return &Container{
		Config:    config,
		Context:   ctx,
		CancelCtx: cancelFn,
	}
}

// GetContext helper function to retrieve context
func (c *Container) GetContext() context.Context {
	return c.Context
}

// Run runs the application container.
// mainFn is a collection of non-blocking functions, executed in order; each
// receives the Container object as parameter. The main loop then waits for an
// os signal and terminates the application in an orderly fashion.
func (c *Container) Run(mainFn ...RuntimeFn) {
	// capture os signals
	monitor := make(chan os.Signal, 1)
	signal.Notify(monitor, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for _, fn := range mainFn {
		if err := fn(c); err != nil {
			c.Terminate(err)
		}
	}

	for {
		select {
		case <-monitor:
			log.Info().Msg("Shutting down application...")
			c.CancelCtx()

		case <-c.Context.Done():
			signal.Stop(monitor)
			c.Terminate(nil)
		}
	}
}

// AbortFatal aborts execution in case of fatal error
func (c *Container) AbortFatal(err error) {
	if err != nil {
		c.Terminate(err)
	}
}

// Terminate application execution and exit to operating system
func (c *Container) Terminate(err error) {
	retCode := 0
	if err != nil {
		retCode = -1
	}
	if c.Context != nil {
		// cancel context if not canceled yet
		if c.CancelCtx != nil && !errors.Is(c.Context.Err(), context.Canceled) {
			c.CancelCtx()
		}
	}
	// call shutdown handlers
	Shutdown(err)

	// exit to os
	os.Exit(retCode)
}
