package cmd

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func runAwait(t *testing.T, done <-chan struct{}, sigCh <-chan os.Signal) {
	t.Helper()
	finished := make(chan struct{})
	go func() {
		awaitShutdown(done, sigCh)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		require.FailNow(t, "awaitShutdown did not return")
	}
}

func TestOneShotCommandExitsWithoutSignal(t *testing.T) {
	done := make(chan struct{})
	close(done)
	runAwait(t, done, make(chan os.Signal))
}

func TestLongRunningCommandWaitsForSignal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGTERM
	runAwait(t, nil, sigCh)
}
