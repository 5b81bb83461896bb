package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deepdefender/internal/acquire"
	"deepdefender/internal/pipeline"
)

func settledState(outcome pipeline.Outcome) pipeline.State {
	return pipeline.State{
		Phase:   pipeline.PhaseSettled,
		Attempt: "attempt-1",
		File:    &acquire.InputFile{Name: "face.png", MediaType: "image/png", Data: []byte{1}},
		Outcome: outcome,
	}
}

func TestPrintOutcomeText(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := printOutcome(&out, &errOut, settledState(pipeline.DeriveVerdict(0.82, 1.4)), "text"); err != nil {
		t.Fatalf("print: %v", err)
	}
	for _, want := range []string{"face.png", "Deepfake Detected", "Confidence", "82%", "Est. Processing Time", "Detected Anomalies"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPrintOutcomeJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := printOutcome(&out, &errOut, settledState(pipeline.DeriveVerdict(0.1, 1.4)), "json"); err != nil {
		t.Fatalf("print: %v", err)
	}
	var report map[string]any
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if report["result"] != "No Deepfake Detected" {
		t.Fatalf("unexpected report %v", report)
	}
}

func TestPrintOutcomeFailure(t *testing.T) {
	var out, errOut bytes.Buffer
	err := printOutcome(&out, &errOut, settledState(pipeline.Failure{Message: "Server responded with 502"}), "text")
	if err == nil || err.Error() != "Analysis Error: Server responded with 502" {
		t.Fatalf("unexpected error %v", err)
	}
	if !strings.Contains(errOut.String(), "backend server is running") {
		t.Fatalf("expected hint on stderr, got %q", errOut.String())
	}
	if out.Len() != 0 {
		t.Fatal("failure must not print to stdout")
	}
}

func TestPrintOutcomeRejectsUnknownFormat(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := printOutcome(&out, &errOut, settledState(pipeline.DeriveVerdict(0.1, 1)), "pdf"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestServeHTTPShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := newHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveHTTP(ctx, server, listener, zap.NewNop()) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("classifier:\n  endpoint: http://example.test/predict/\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	t.Cleanup(func() {
		configPath, endpointFlag, timeoutFlag, logLevelFlag = "", "", 0, ""
	})
	if err := cmd.Flags().Parse([]string{"--config", path, "--timeout", "7s", "--log-level", "debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Classifier.Endpoint != "http://example.test/predict/" {
		t.Fatalf("unexpected endpoint %q", cfg.Classifier.Endpoint)
	}
	if cfg.Classifier.Timeout != 7*time.Second || cfg.Log.Level != "debug" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"analyze": false, "check": false, "serve": false, "mock": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
