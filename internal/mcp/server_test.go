package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/darkforest/internal/config"
	"github.com/nvandessel/darkforest/internal/store"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.darkforest/
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0755); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)
}

var fixedNow = time.Date(2026, 5, 4, 12, 30, 0, 0, time.UTC)

// setupTestServer returns a server over an in-memory store rooted in a temp dir.
func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	settings := config.Default()
	settings.Store.Driver = config.DriverMemory

	server, err := NewServer(&Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		Root:     tmpDir,
		Settings: settings,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, tmpDir
}

func TestNewServer(t *testing.T) {
	server, tmpDir := setupTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if server.manager == nil {
		t.Error("Server.manager is nil")
	}
	if server.catalog == nil || len(server.catalog.Contexts) == 0 {
		t.Error("Server.catalog is empty")
	}
	if server.root != tmpDir {
		t.Errorf("Server.root = %q, want %q", server.root, tmpDir)
	}
}

func TestNewServer_SQLiteCreatesDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if _, err := os.Stat(store.DefaultDBPath(tmpDir)); err != nil {
		t.Errorf("database not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.LocalDataPath(tmpDir), AuditFileName)); err != nil {
		t.Errorf("audit log not created: %v", err)
	}
}

func TestNewServer_InvalidSettings(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	settings := config.Default()
	settings.Store.Driver = "postgres"

	_, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir, Settings: settings})
	if err == nil {
		t.Fatal("expected error for unknown store driver")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("error = %v, want invalid configuration", err)
	}
}

func TestClose(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// The sqlite store tolerates a second close.
	if err := server.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestNewServer_HasRateLimiters(t *testing.T) {
	server, _ := setupTestServer(t)

	expectedTools := []string{
		"darkforest_catalog", "darkforest_start", "darkforest_select_context",
		"darkforest_begin", "darkforest_decide", "darkforest_advance",
		"darkforest_reset", "darkforest_session", "darkforest_report",
		"darkforest_stats", "darkforest_room_create", "darkforest_room_join",
		"darkforest_room_advance", "darkforest_rooms",
	}
	for _, tool := range expectedTools {
		if _, ok := server.toolLimiters[tool]; !ok {
			t.Errorf("missing rate limiter for %s", tool)
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	server, _ := setupTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Only checks that Run returns instead of hanging.
	if err := server.Run(ctx); err == nil {
		t.Log("Run returned nil (expected in test environment)")
	}
}

// connectClient wires an MCP client to server over in-memory transports.
func connectClient(t *testing.T, server *Server) *sdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := sdk.NewInMemoryTransports()

	ss, err := server.server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestServer_ListTools(t *testing.T) {
	server, _ := setupTestServer(t)
	cs := connectClient(t, server)

	res, err := cs.ListTools(context.Background(), &sdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	got := make(map[string]bool)
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for name := range server.toolLimiters {
		if !got[name] {
			t.Errorf("tool %s not registered", name)
		}
	}
	if len(res.Tools) != len(server.toolLimiters) {
		t.Errorf("registered %d tools, have %d limiters", len(res.Tools), len(server.toolLimiters))
	}
}

func TestServer_CallTool(t *testing.T) {
	server, _ := setupTestServer(t)
	cs := connectClient(t, server)
	ctx := context.Background()

	res, err := cs.CallTool(ctx, &sdk.CallToolParams{
		Name:      "darkforest_start",
		Arguments: map[string]any{"user_id": "alice", "context": "science"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("darkforest_start returned a tool error: %+v", res.Content)
	}
	structured, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("StructuredContent = %T, want map", res.StructuredContent)
	}
	sess, ok := structured["session"].(map[string]any)
	if !ok {
		t.Fatalf("missing session in %v", structured)
	}
	if sess["user_id"] != "alice" || sess["context"] != "science" {
		t.Errorf("session = %v", sess)
	}

	bad, err := cs.CallTool(ctx, &sdk.CallToolParams{
		Name:      "darkforest_start",
		Arguments: map[string]any{"context": "astrology"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !bad.IsError {
		t.Error("expected tool error for unknown context")
	}
}

func TestServer_ReadCatalogResource(t *testing.T) {
	server, _ := setupTestServer(t)
	cs := connectClient(t, server)

	res, err := cs.ReadResource(context.Background(), &sdk.ReadResourceParams{URI: CatalogURI})
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(res.Contents))
	}
	text := res.Contents[0].Text
	for _, want := range []string{"# Dark Forest Simulation", "Business Strategy", "PREEMPTIVE STRIKE", "Criticisms"} {
		if !strings.Contains(text, want) {
			t.Errorf("catalog resource missing %q", want)
		}
	}
}
