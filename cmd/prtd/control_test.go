package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netreach/prt/internal/transport"
)

func TestRunTestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     runTestRequest
		wantErr string
	}{
		{name: "missing bob", req: runTestRequest{}, wantErr: "bob is required"},
		{name: "malformed host:port", req: runTestRequest{Bob: "not-an-address"}, wantErr: `invalid bob address "not-an-address": address not-an-address: missing port in address`},
		{name: "valid", req: runTestRequest{Bob: "203.0.113.5:41234"}, wantErr: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func newTestControlLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestControlServer_ServeRunTest_MalformedJSON(t *testing.T) {
	s := &controlServer{log: newTestControlLogger(), dir: transport.NewDirectory(time.Minute)}
	defer s.dir.Stop()

	req := httptest.NewRequest(http.MethodPost, "/run-test", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.ServeRunTest(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlServer_ServeRunTest_MissingBob(t *testing.T) {
	s := &controlServer{log: newTestControlLogger(), dir: transport.NewDirectory(time.Minute)}
	defer s.dir.Stop()

	body, _ := json.Marshal(runTestRequest{})
	req := httptest.NewRequest(http.MethodPost, "/run-test", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	s.ServeRunTest(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlServer_ServeRunTest_NoSessionWithBob(t *testing.T) {
	s := &controlServer{log: newTestControlLogger(), dir: transport.NewDirectory(time.Minute)}
	defer s.dir.Stop()

	body, _ := json.Marshal(runTestRequest{Bob: "203.0.113.5:41234"})
	req := httptest.NewRequest(http.MethodPost, "/run-test", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	s.ServeRunTest(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "error", resp["status"])
	require.Contains(t, resp["description"], "no established session")
}
