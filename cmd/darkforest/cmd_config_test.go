package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/darkforest/internal/config"
)

func TestConfigCmd_SetGet(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := runCmd(t, "", "config", "set", "report.compress", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := runCmd(t, "", "config", "set", "room.max_participants", "4"); err != nil {
		t.Fatalf("set: %v", err)
	}

	out, err := runCmd(t, "", "config", "get", "report.compress")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "report.compress = true" {
		t.Errorf("get output = %q", out)
	}

	var got struct {
		Key   string `json:"key"`
		Value int    `json:"value"`
	}
	mustRunJSON(t, &got, "config", "get", "room.max_participants")
	if got.Value != 4 {
		t.Errorf("max_participants = %d, want 4", got.Value)
	}

	path := filepath.Join(tmpDir, "home", ".darkforest", "config.yaml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if !cfg.Report.Compress || cfg.Room.MaxParticipants != 4 {
		t.Errorf("saved config = %+v", cfg)
	}
}

func TestConfigCmd_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown get key", args: []string{"config", "get", "llm.provider"}},
		{name: "unknown set key", args: []string{"config", "set", "llm.provider", "x"}},
		{name: "bad driver", args: []string{"config", "set", "store.driver", "postgres"}},
		{name: "bad level", args: []string{"config", "set", "logging.level", "loud"}},
		{name: "bad bool", args: []string{"config", "set", "report.compress", "maybe"}},
		{name: "negative max", args: []string{"config", "set", "room.max_participants", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, "", tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfigCmd_List(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := runCmd(t, "", "config", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"store.driver:           sqlite", "logging.level:          info", "report.compress:        false"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfig_MaxParticipantsLimitsRooms(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := runCmd(t, "", "config", "set", "room.max_participants", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	var room struct {
		ID string `json:"id"`
	}
	mustRunJSON(t, &room, "room", "create", "--root", tmpDir)
	if _, err := runCmd(t, "", "room", "join", room.ID, "--user", "a", "--root", tmpDir); err != nil {
		t.Fatalf("first join: %v", err)
	}
	_, err := runCmd(t, "", "room", "join", room.ID, "--user", "b", "--root", tmpDir)
	if err == nil || !strings.Contains(err.Error(), "full") {
		t.Errorf("second join error = %v, want room full", err)
	}
}
