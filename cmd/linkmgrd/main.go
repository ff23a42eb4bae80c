//go:build linux

// Command linkmgrd is the per-ToR dual-homed MUX cable manager: it
// loads the configured port set, starts a heartbeat engine and
// composite link-manager per port, and runs until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/sonic-net/linkmgrd-go/pkg/config"
	"github.com/sonic-net/linkmgrd-go/pkg/dbadapter"
	"github.com/sonic-net/linkmgrd-go/pkg/dbadapter/sqlitekv"
	"github.com/sonic-net/linkmgrd-go/pkg/guid"
	"github.com/sonic-net/linkmgrd-go/pkg/log"
	"github.com/sonic-net/linkmgrd-go/pkg/metrics"
	"github.com/sonic-net/linkmgrd-go/pkg/muxmanager"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args, os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	app := newApp()
	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "linkmgrd: %v\n", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "linkmgrd"
	app.Version = version
	app.Usage = "dual-ToR MUX cable link manager daemon"
	app.Description = "manages MUX cable forwarding state via link-prober heartbeats and KV-store coordination"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "verbosity, v",
			Usage: "logging verbosity [debug, info, warn, error]",
			Value: "info",
		},
		cli.BoolFlag{
			Name:  "extra_log_file, e",
			Usage: "store logs in an extra rotated log file under /var/log/mux",
		},
		cli.BoolFlag{
			Name:  "measure_switchover_overhead, m",
			Usage: "divide the link-prober interval by ten for the whole run (not only after a switchover) to better measure switchover overhead",
		},
		cli.BoolFlag{
			Name:  "default_route, d",
			Usage: "disable heartbeat sending and avoid switching to active when the default route is missing",
		},
		cli.BoolFlag{
			Name:  "link_to_swss_logger, l",
			Usage: "force debug verbosity; logs still go to the native logger, no swss logger link is made",
		},
		cli.BoolFlag{
			Name:  "simulate_lfd_offload, s",
			Usage: "simulate hardware link-failure-detection offload instead of opening raw sockets",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "path to the JSON port/device startup config",
			Value: "/etc/mux/linkmgrd.json",
		},
		cli.StringFlag{
			Name:  "db",
			Usage: "path to the sqlite KV store file (empty for an in-memory store)",
		},
	}

	app.Action = cmdRun
	return app
}

func cmdRun(c *cli.Context) error {
	level, err := log.ParseLogLevel(c.String("verbosity"))
	if err != nil {
		return fmt.Errorf("invalid verbosity: %w", err)
	}
	if c.Bool("link_to_swss_logger") {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logFile := ""
	if c.Bool("extra_log_file") {
		logFile = "/var/log/mux/linkmgrd.log"
	}
	log.Logger = log.CreateLogger(level, logFile)
	defer log.Logger.Sync()

	// IcmpPayload::generateGuid() is called exactly once at startup.
	selfGUID := guid.Generate()
	log.Logger.Infof("linkmgrd starting, self guid=%x", selfGUID)

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	sc, err := loadStartupConfig(c.String("config"))
	if err != nil {
		return err
	}

	sharedCfg := config.DefaultMuxLinkmgrConfig()
	if c.Bool("measure_switchover_overhead") {
		sharedCfg.TimeoutIpv4 = sharedCfg.TimeoutIpv4 / 10
	}

	ports, err := sc.toPortConfigs(sharedCfg)
	if err != nil {
		return err
	}

	torMac, err := parseMAC(sc.DeviceMetadata.TorMac)
	if err != nil {
		return fmt.Errorf("device metadata: %w", err)
	}
	vlanMac, err := parseMAC(sc.DeviceMetadata.VlanMac)
	if err != nil {
		return fmt.Errorf("device metadata: %w", err)
	}
	devMeta := config.DeviceMetadata{TorMac: torMac, VlanMac: vlanMac}

	store, cableInfoTable, err := openStore(c.String("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	commander := newTLVCommander()
	mgr := muxmanager.New(cableInfoTable, commander)
	if peerTable, err := store.Table(dbadapter.TableStatePeerHwForwarding); err == nil {
		mgr.SetPeerTable(peerTable)
	}

	defaultRouteGated := c.Bool("default_route")
	for _, pc := range ports {
		lm := mgr.GetOrCreatePort(pc)
		lm.SetDefaultRouteDependency(defaultRouteGated)
		startPortRuntime(mgr, lm, pc, devMeta, selfGUID, c.Bool("simulate_lfd_offload"), commander)
	}

	if sc.WarmRestart {
		mgr.StartWarmRestart(10*time.Second, len(ports), func() {
			log.Logger.Info("warm restart reconciled")
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := handleSignals(ctx, cancel, mgr)
	notifySystemd(sd.SdNotifyReady)
	<-done
	return nil
}

func openStore(path string) (dbadapter.Store, dbadapter.Table, error) {
	if path == "" {
		store := dbadapter.NewMemStore()
		tbl, _ := store.Table(dbadapter.TableMuxCableInfo)
		return store, tbl, nil
	}
	tbl, err := sqlitekv.Open(path, dbadapter.TableMuxCableInfo)
	if err != nil {
		return nil, nil, err
	}
	return sqliteStoreWrapper{tbl}, tbl, nil
}

// sqliteStoreWrapper adapts a single sqlitekv.Table into dbadapter.Store
// so openStore can return one concrete Close path regardless of which
// backend was selected.
type sqliteStoreWrapper struct {
	tbl *sqlitekv.Table
}

func (w sqliteStoreWrapper) Table(name string) (dbadapter.Table, error) { return w.tbl, nil }
func (w sqliteStoreWrapper) Subscriber(name string) (dbadapter.Subscriber, error) {
	return nil, fmt.Errorf("sqlitekv: subscriptions not supported")
}
func (w sqliteStoreWrapper) Close() error { return w.tbl.Close() }
