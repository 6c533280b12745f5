// Command prtd runs the peer reachability test coordinator standalone: it
// listens on a UDP port, answers Bob/Charlie duty for other nodes, and (via
// a POST /run-test on its local control socket) can be asked to run a test
// of its own.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netreach/prt/internal/clock"
	"github.com/netreach/prt/internal/reachability"
	"github.com/netreach/prt/internal/transport"
	"github.com/netreach/prt/internal/wire"
)

var (
	bindAddr             = flag.String("bind-addr", "0.0.0.0", "address to bind the reachability UDP socket on")
	bindPort             = flag.Int("bind-port", 41234, "port to bind the reachability UDP socket on")
	enableVerboseLogging = flag.Bool("v", false, "enables verbose logging")
	metricsEnable        = flag.Bool("metrics-enable", false, "enable a prometheus /metrics endpoint")
	metricsAddr          = flag.String("metrics-addr", "localhost:0", "address to listen on for prometheus metrics")
	peerIdleTTL          = flag.Duration("peer-idle-ttl", 30*time.Minute, "how long an idle peer stays in the session/intro-key directory")
	controlSock          = flag.String("control-sock", "/var/run/prtd/prtd.sock", "unix socket for the local control API (POST /run-test)")
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *enableVerboseLogging {
		level = slog.LevelDebug
	}
	logger := newConsoleLogger(os.Stdout, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *prometheus.Registry
	if *metricsEnable {
		reg = prometheus.NewRegistry()
		go serveMetrics(logger, reg, *metricsAddr)
	}

	introKey, err := randomIntroKey()
	if err != nil {
		logger.Error("failed to generate intro-key", "error", err)
		os.Exit(1)
	}

	conn, err := transport.ListenUDP(*bindAddr, *bindPort)
	if err != nil {
		logger.Error("failed to bind reachability udp socket", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	dir := transport.NewDirectory(*peerIdleTTL)
	defer dir.Stop()
	block := transport.NewMemoryBlocklist()

	xport := transport.New(logger, conn, dir, block, introKey, func(v reachability.Verdict) {
		logger.Info("prtd: reachability result", "verdict", v.String())
	})

	coord, err := reachability.NewCoordinator(ctx, reachability.Config{
		Logger:          logger,
		Clock:           clock.New(),
		Transport:       xport,
		PacketBuilder:   wire.NewBuilder(),
		MetricsRegistry: reg,
	})
	if err != nil {
		logger.Error("failed to start reachability coordinator", "error", err)
		os.Exit(1)
	}
	defer coord.Close()

	ctl := &controlServer{log: logger, coord: coord, dir: dir}
	go func() {
		if err := serveControl(ctx, logger, *controlSock, ctl); err != nil {
			logger.Error("prtd: control server exited", "error", err)
		}
	}()

	var xportReg prometheus.Registerer
	if reg != nil {
		xportReg = reg
	}
	xportMetrics := transport.NewMetrics(xportReg)
	recv := transport.NewReceiver(logger, conn, dir, xport.IntroKey, func(fromIP net.IP, fromPort int, _ wire.Kind, p wire.Payload) {
		coord.ReceiveTest(
			reachability.Endpoint{IP: fromIP, Port: fromPort},
			reachability.Envelope{Nonce: p.Nonce, Port: p.Port, IP: p.IP, IntroKey: p.IntroKey},
		)
	}, xportMetrics)

	logger.Info("prtd: started", "bind", fmt.Sprintf("%s:%d", *bindAddr, *bindPort), "version", version, "commit", commit)
	if err := recv.Run(ctx); err != nil {
		logger.Error("prtd: receive loop exited", "error", err)
		os.Exit(1)
	}
}

func newConsoleLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
}

func serveMetrics(logger *slog.Logger, reg *prometheus.Registry, addr string) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to start prometheus metrics listener", "error", err)
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("prtd: metrics server started", "address", listener.Addr().String())
	if err := http.Serve(listener, mux); err != nil {
		logger.Error("prometheus metrics server exited", "error", err)
	}
}

func randomIntroKey() ([32]byte, error) {
	var k [32]byte
	_, err := rand.Read(k[:])
	return k, err
}
