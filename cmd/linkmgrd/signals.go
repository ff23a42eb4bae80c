package main

import (
	"context"
	"os"
	"os/signal"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sys/unix"

	"github.com/sonic-net/linkmgrd-go/pkg/log"
	"github.com/sonic-net/linkmgrd-go/pkg/muxmanager"
)

var handledSignals = []os.Signal{unix.SIGTERM, unix.SIGINT}

// handleSignals waits for SIGINT/SIGTERM and then runs MuxManager's
// two-phase shutdown barrier (spec.md §4.7: "stop the KV subscriber,
// drain the executor via a two-phase barrier, then join the worker
// threads"), notifying systemd before and after.
func handleSignals(ctx context.Context, cancel context.CancelFunc, mgr *muxmanager.Manager) chan struct{} {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, handledSignals...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case s := <-sigCh:
			log.Logger.Infof("received signal %v, shutting down", s)
		case <-ctx.Done():
		}
		cancel()
		notifySystemd(sd.SdNotifyStopping)
		if err := mgr.Shutdown(context.Background()); err != nil {
			log.Logger.Errorw("shutdown drain failed", "error", err)
		}
	}()
	return done
}

func notifySystemd(state string) {
	notified, err := sd.SdNotify(false, state)
	log.Logger.Debugf("sd notification: %v %v %v", state, notified, err)
}
