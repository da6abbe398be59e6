package roadwatch

import (
	"sync"

	"github.com/oddbit-project/roadwatch/types/callstack"
	"github.com/rs/zerolog/log"
)

var appDestructors *callstack.CallStack = nil
var shutdownMx *sync.Mutex = &sync.Mutex{}

// GetDestructorManager retrieves the callback manager
func GetDestructorManager() *callstack.CallStack {
	return appDestructors
}

// RegisterDestructor registers a function to perform shutdown procedures
func RegisterDestructor(fn callstack.CallableFn) {
	appDestructors.Add(fn)
}

// Shutdown shuts down the whole application
func Shutdown(arg error) {
	shutdownMx.Lock()
	defer shutdownMx.Unlock()

	if appDestructors == nil {
		return
	}
	if arg != nil {
		log.Fatal().Err(arg).Msg("Fatal error")
	}
	if err := appDestructors.Run(false); err != nil {
		log.Fatal().Err(err).Msg("Fatal error while shutting down")
	}
	appDestructors = nil
}

func init() {
	appDestructors = callstack.NewCallStack()
}
