package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/netreach/prt/internal/reachability"
	"github.com/netreach/prt/internal/transport"
)

// runTestRequest is the payload POST /run-test expects, grounded on the
// teacher's api.ProvisionRequest (decode, Validate, then act) style.
type runTestRequest struct {
	// Bob is the "host:port" of an already-known peer (one already present
	// in the directory via a prior session) to run a reachability test
	// through.
	Bob string `json:"bob"`
}

func (r runTestRequest) Validate() error {
	if r.Bob == "" {
		return errors.New("bob is required")
	}
	if _, _, err := net.SplitHostPort(r.Bob); err != nil {
		return fmt.Errorf("invalid bob address %q: %w", r.Bob, err)
	}
	return nil
}

// controlServer is the local control surface cmd/prtd's package doc
// promises: the only way anything ever asks this binary's coordinator to
// act as Alice, since nothing else in the process originates a test on its
// own. Grounded on doublezerod's internal/manager.ServeProvision and
// internal/runtime.Run's unix-socket mux, scaled down to the single
// operation this daemon needs a trigger for.
type controlServer struct {
	log   *slog.Logger
	coord *reachability.Coordinator
	dir   *transport.Directory
}

func (s *controlServer) ServeRunTest(w http.ResponseWriter, r *http.Request) {
	var req runTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeControlError(w, http.StatusBadRequest, fmt.Sprintf("malformed run-test request: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeControlError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	host, portStr, _ := net.SplitHostPort(req.Bob)
	ip := net.ParseIP(host)
	if ip == nil {
		writeControlError(w, http.StatusBadRequest, fmt.Sprintf("bob host %q is not an IP address", host))
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		writeControlError(w, http.StatusBadRequest, fmt.Sprintf("invalid bob port %q", portStr))
		return
	}

	entry, ok := s.dir.Get(ip, port)
	if !ok {
		writeControlError(w, http.StatusBadRequest, fmt.Sprintf("no established session with bob %s; a session must exist before it can be used to run a test", req.Bob))
		return
	}

	if err := s.coord.RunTest(reachability.Endpoint{IP: ip, Port: port}, entry.CipherKey, entry.MACKey); err != nil {
		writeControlError(w, http.StatusConflict, err.Error())
		return
	}

	s.log.Info("prtd: control started reachability test", "bob", req.Bob)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeControlError(w http.ResponseWriter, code int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "description": description})
}

// serveControl listens on a unix socket and serves the local control API
// until ctx is canceled, mirroring doublezerod's sock-file-based
// internal/api.ApiServer.
func serveControl(ctx context.Context, logger *slog.Logger, sockFile string, s *controlServer) error {
	_ = os.Remove(sockFile)
	lis, err := net.Listen("unix", sockFile)
	if err != nil {
		return fmt.Errorf("control: failed to listen on %s: %w", sockFile, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /run-test", s.ServeRunTest)

	srv := &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logger.Info("prtd: control server started", "sock", sockFile)
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
