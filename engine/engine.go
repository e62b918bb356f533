// Package engine runs the background modules of the server next to the HTTP
// surface. Modules share one in-process event bus.
package engine

import (
	"context"
	"sync"

	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Engine manages shared resources and execution lifecycle of each module.
type Engine struct {
	// Module's lifetime is bound to Engine's lifetime. Each Module runs in a
	// separate routine.
	Modules []Module

	ctx    context.Context
	cancel context.CancelFunc

	EventBus *gochannel.GoChannel

	wg sync.WaitGroup
}

func NewEngine(ms []Module, ctx context.Context, e *gochannel.GoChannel) *Engine {
	ctx, cancel := context.WithCancel(ctx)
	return &Engine{
		Modules:  ms,
		ctx:      ctx,
		cancel:   cancel,
		EventBus: e,
	}
}

// Start runs every module in its own goroutine and returns immediately.
func (e *Engine) Start() {
	for _, m := range e.Modules {
		e.wg.Add(1)
		go func(m Module) {
			defer e.wg.Done()
			Log.Infof("start engine module %s", m.Name())
			RunModuleWithGracefulRestart(e.ctx, m)
			Log.Infof("module %s finished execution", m.Name())
		}(m)
	}
}

// Shutdown cancels every module, waits for them and closes the bus.
func (e *Engine) Shutdown() {
	Log.Infoln("engine shutting down")
	e.cancel()
	e.wg.Wait()
	if err := e.EventBus.Close(); err != nil {
		Log.Errorln("fail to close event bus: ", err)
	}
}
