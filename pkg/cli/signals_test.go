package cli

import (
	"os"
	"syscall"
	"testing"
	"time"
)

func TestHandleSignalsFirstSignalCancels(t *testing.T) {
	sigCh := make(chan os.Signal, 2)
	ctx := handleSignals(sigCh, func(int) { t.Error("exit called on first signal") })

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before any signal")
	default:
	}

	sigCh <- syscall.SIGTERM

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after first signal")
	}
}

func TestHandleSignalsSecondSignalExits(t *testing.T) {
	sigCh := make(chan os.Signal, 2)
	exited := make(chan int, 1)
	ctx := handleSignals(sigCh, func(code int) { exited <- code })

	sigCh <- syscall.SIGINT
	<-ctx.Done()

	select {
	case code := <-exited:
		t.Fatalf("exit(%d) called after a single signal", code)
	case <-time.After(20 * time.Millisecond):
	}

	sigCh <- syscall.SIGINT

	select {
	case code := <-exited:
		if code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
	case <-time.After(time.Second):
		t.Fatal("second signal did not exit")
	}
}

func TestSetupSignalHandlerStartsActive(t *testing.T) {
	ctx := SetupSignalHandler()

	select {
	case <-ctx.Done():
		t.Error("context cancelled with no signal sent")
	case <-time.After(10 * time.Millisecond):
	}
}
