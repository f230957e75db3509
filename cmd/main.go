package main

import (
	"os"
	"os/signal"
	"syscall"

	"crimewatch/internal/bootstrap"
)

func main() {
	c := bootstrap.NewContainer()
	c.MustInit()

	if err := c.Start(); err != nil {
		c.Log.Errorf("Failed to start: %v", err)
		c.Shutdown()
		os.Exit(1)
	}

	waitForShutdown(c)
}

// waitForShutdown blocks until SIGINT/SIGTERM or a fatal component error
func waitForShutdown(c *bootstrap.Container) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		c.Log.Infow("Shutting down...", "signal", sig.String())
	case <-c.Context.Done():
		c.Log.Warn("Shutting down after component failure...")
	}

	c.Shutdown()
}
