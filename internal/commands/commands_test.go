package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/ytget/yt-downloader-api/internal/config"
	"github.com/ytget/yt-downloader-api/internal/model"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	return &config.Settings{
		AppName: "Test API",
		Server:  config.Server{Host: "127.0.0.1", Port: config.DefaultPort, Mode: "test"},
		Download: config.Download{
			Dir:           filepath.Join(dir, "downloads"),
			TempDir:       filepath.Join(dir, "temp"),
			MaxParallel:   1,
			QueueSize:     4,
			QualityPreset: model.QualityMedium,
		},
		Engine: config.Engine{
			MergeFormat:     config.DefaultMergeFormat,
			ReencodeAudio:   true,
			AudioBitrate:    config.DefaultAudioBitrate,
			MetadataTimeout: time.Second,
		},
		Stream:  config.Stream{Interval: 10 * time.Millisecond},
		Cleanup: config.Cleanup{Enabled: true, Interval: time.Minute, MaxAge: time.Hour},
		Logger:  config.Logger{Level: "info", Format: "text", Output: "stdout"},
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd("1.2.3")
	for _, name := range []string{"serve", "info", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("expected a persistent --config flag")
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd("1.2.3")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "yt-downloader-api 1.2.3") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestCommands_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"info without url", []string{"info"}},
		{"serve with missing config file", []string{"serve", "--config", "/nonexistent/config.yaml"}},
		{"version with args", []string{"version", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			root := NewRootCmd("dev")
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(tt.args)
			if err := root.Execute(); err == nil {
				t.Errorf("Execute(%v) expected error", tt.args)
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	settings := testSettings(t)
	logger, _ := test.NewNullLogger()

	srv, err := newServer(context.Background(), settings, logger)
	if err != nil {
		t.Fatalf("newServer() returned error: %v", err)
	}
	defer srv.service.Shutdown(context.Background())

	if srv.http.Addr != settings.Server.Addr() {
		t.Errorf("addr = %q, expected %q", srv.http.Addr, settings.Server.Addr())
	}
	if srv.http.Handler == nil {
		t.Error("expected a router")
	}
	if srv.sweeper == nil {
		t.Error("expected a sweeper when cleanup is enabled")
	}

	settings.Cleanup.Enabled = false
	noSweep, err := newServer(context.Background(), settings, logger)
	if err != nil {
		t.Fatalf("newServer() returned error: %v", err)
	}
	defer noSweep.service.Shutdown(context.Background())
	if noSweep.sweeper != nil {
		t.Error("expected no sweeper when cleanup is disabled")
	}
}

func TestServerRun_StopsOnCancel(t *testing.T) {
	settings := testSettings(t)
	logger, _ := test.NewNullLogger()

	srv, err := newServer(context.Background(), settings, logger)
	if err != nil {
		t.Fatalf("newServer() returned error: %v", err)
	}
	srv.http.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if _, err := srv.service.SubmitDownload(model.DownloadRequest{URL: "https://a.example/1"}); err == nil {
		t.Error("expected submissions to be refused after shutdown")
	}
}
