package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"plannersync/internal/config"
)

// Non-blocking async func. One-shot commands close done when their work is
// finished so the process can exit without a signal; long-running commands
// return a nil done and wait for the signal alone. The returned cleanup (may
// be nil) runs after shutdown, before process exit.
type command func(ctx context.Context) (done <-chan struct{}, cleanup func())

type commandRegistry map[string]command

var commands = commandRegistry{
	"noop":  noopCmd,
	"run":   runCmd,
	"once":  onceCmd,
	"feeds": feedsCmd,
}

func Run() {
	cmd := config.Gist().String(config.CMD)
	cmdFn, ok := commands[cmd]
	if !ok {
		help()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done, cleanup := cmdFn(ctx)
	awaitShutdown(done, sigCh)
	cancel()
	if cleanup != nil {
		cleanup()
	}
}

// awaitShutdown blocks until the command completes or a shutdown signal
// arrives. A nil done never fires, so long-running commands only return on
// the signal.
func awaitShutdown(done <-chan struct{}, sigCh <-chan os.Signal) {
	select {
	case <-done:
	case <-sigCh:
	}
}

func help() {
	fmt.Println("Usage: plannersync [command]")
	fmt.Println("Commands: noop, run, once, feeds")
	fmt.Println("Example: plannersync run")
	fmt.Println("Config params (name|required|default):\v")
	fmt.Println(config.Sprint())
}
