// Package shutdown turns SIGINT/SIGTERM into context cancellation and runs
// cleanup hooks.
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	ctx, stop := h.Context(context.Background())
//	defer stop()
//	h.OnShutdown(engine.Close)
//	<-ctx.Done()
//	return h.Shutdown()
package shutdown
