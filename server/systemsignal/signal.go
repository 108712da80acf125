package systemsignal

import (
	"context"
	"os"
	"os/signal"
)

// IService is notified when the process receives a stop signal.
type IService interface {
	StopNotify(sig os.Signal)
}

// HookSignals blocks until one of the stop signals arrives or ctx is done. On a signal the
// service is notified before HookSignals returns it; a done ctx returns nil.
func HookSignals(ctx context.Context, service IService) os.Signal {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, stopSignals...)
	defer signal.Stop(sig)

	select {
	case quit := <-sig:
		service.StopNotify(quit)
		return quit
	case <-ctx.Done():
		return nil
	}
}
