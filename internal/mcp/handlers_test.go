package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/report"
	"github.com/nvandessel/darkforest/internal/store"
)

// playSolo starts a session and decides every scenario with choice,
// advancing after each one.
func playSolo(t *testing.T, server *Server, ctxName, choice string) models.Session {
	t.Helper()
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, started, err := server.handleStart(ctx, req, StartInput{UserID: "alice", Context: ctxName})
	if err != nil {
		t.Fatalf("handleStart: %v", err)
	}
	id := started.Session.ID

	_, begun, err := server.handleBegin(ctx, req, SessionIDInput{SessionID: id})
	if err != nil {
		t.Fatalf("handleBegin: %v", err)
	}
	if begun.Scenario == nil {
		t.Fatal("handleBegin returned no scenario")
	}

	count, err := server.catalog.ScenarioCount(models.Context(ctxName))
	if err != nil {
		t.Fatalf("ScenarioCount: %v", err)
	}

	var last SessionOutput
	for i := 0; i < count; i++ {
		if _, _, err := server.handleDecide(ctx, req, DecideInput{SessionID: id, Choice: choice}); err != nil {
			t.Fatalf("handleDecide %d: %v", i, err)
		}
		_, last, err = server.handleAdvance(ctx, req, SessionIDInput{SessionID: id})
		if err != nil {
			t.Fatalf("handleAdvance %d: %v", i, err)
		}
	}
	return last.Session
}

func TestHandleCatalog(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleCatalog(ctx, &sdk.CallToolRequest{}, CatalogInput{})
	if err != nil {
		t.Fatalf("handleCatalog: %v", err)
	}
	if len(out.Contexts) != 4 {
		t.Errorf("contexts = %d, want 4", len(out.Contexts))
	}
	if len(out.Choices) != 3 {
		t.Errorf("choices = %d, want 3", len(out.Choices))
	}
	if len(out.Scenarios) != 0 {
		t.Errorf("scenarios without a context = %d, want 0", len(out.Scenarios))
	}

	_, out, err = server.handleCatalog(ctx, &sdk.CallToolRequest{}, CatalogInput{Context: "policy"})
	if err != nil {
		t.Fatalf("handleCatalog(policy): %v", err)
	}
	if len(out.Scenarios) != 4 {
		t.Errorf("policy scenarios = %d, want 4", len(out.Scenarios))
	}

	_, _, err = server.handleCatalog(ctx, &sdk.CallToolRequest{}, CatalogInput{Context: "astrology"})
	if err == nil || !strings.HasPrefix(err.Error(), "INVALID_CONTEXT") {
		t.Errorf("unknown context error = %v, want INVALID_CONTEXT prefix", err)
	}
}

func TestHandleStart(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		input    StartInput
		wantUser string
		wantErr  string
	}{
		{name: "named user", input: StartInput{UserID: "bob", Context: "business"}, wantUser: "bob"},
		{name: "anonymous", input: StartInput{Context: "science"}, wantUser: "anonymous"},
		{name: "bad context", input: StartInput{UserID: "bob", Context: "cooking"}, wantErr: "INVALID_CONTEXT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := server.handleStart(ctx, &sdk.CallToolRequest{}, tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("handleStart: %v", err)
			}
			if out.Session.UserID != tt.wantUser {
				t.Errorf("UserID = %q, want %q", out.Session.UserID, tt.wantUser)
			}
			if out.Session.Step != models.StepIntro {
				t.Errorf("Step = %q, want intro", out.Session.Step)
			}
			if out.Scenario != nil {
				t.Error("intro session should have no scenario")
			}
		})
	}
}

func TestHandleSelectContext(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, started, err := server.handleStart(ctx, req, StartInput{Context: "business"})
	if err != nil {
		t.Fatalf("handleStart: %v", err)
	}

	_, out, err := server.handleSelectContext(ctx, req, SelectContextInput{SessionID: started.Session.ID, Context: "philosophy"})
	if err != nil {
		t.Fatalf("handleSelectContext: %v", err)
	}
	if out.Session.Context != models.ContextPhilosophy {
		t.Errorf("Context = %q, want philosophy", out.Session.Context)
	}

	if _, _, err := server.handleBegin(ctx, req, SessionIDInput{SessionID: started.Session.ID}); err != nil {
		t.Fatalf("handleBegin: %v", err)
	}
	_, _, err = server.handleSelectContext(ctx, req, SelectContextInput{SessionID: started.Session.ID, Context: "science"})
	if err == nil || !strings.HasPrefix(err.Error(), "INVALID_STATE") {
		t.Errorf("select after begin error = %v, want INVALID_STATE", err)
	}
}

func TestHandlePlayThrough(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	final := playSolo(t, server, "business", "escalate")
	if !final.Completed {
		t.Fatal("session not completed after last advance")
	}
	if final.Step != models.StepResults {
		t.Errorf("Step = %q, want results", final.Step)
	}
	if final.Profile != models.ProfileDarkForestAdherent {
		t.Errorf("Profile = %q, want dark_forest_adherent", final.Profile)
	}
	if final.DecisionCount != 4 {
		t.Errorf("DecisionCount = %d, want 4", final.DecisionCount)
	}

	_, detail, err := server.handleSession(ctx, &sdk.CallToolRequest{}, SessionIDInput{SessionID: final.ID})
	if err != nil {
		t.Fatalf("handleSession: %v", err)
	}
	if len(detail.Decisions) != 4 {
		t.Errorf("decisions = %d, want 4", len(detail.Decisions))
	}
	if detail.Profile == nil || detail.Profile.Label != "Dark Forest Adherent" {
		t.Errorf("Profile = %+v", detail.Profile)
	}
	if detail.AwaitingAdvance {
		t.Error("completed session should not await advance")
	}
	if detail.Normalized.Aggression <= detail.Normalized.Cooperation {
		t.Errorf("normalized = %+v, want aggression dominant", detail.Normalized)
	}
}

func TestHandleDecide_Errors(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, started, err := server.handleStart(ctx, req, StartInput{Context: "science"})
	if err != nil {
		t.Fatalf("handleStart: %v", err)
	}
	id := started.Session.ID

	tests := []struct {
		name    string
		input   DecideInput
		wantErr string
	}{
		{name: "missing session id", input: DecideInput{Choice: "silence"}, wantErr: "session_id is required"},
		{name: "unknown choice", input: DecideInput{SessionID: id, Choice: "surrender"}, wantErr: "INVALID_CHOICE"},
		{name: "before begin", input: DecideInput{SessionID: id, Choice: "silence"}, wantErr: "INVALID_STATE"},
		{name: "unknown session", input: DecideInput{SessionID: "missing", Choice: "silence"}, wantErr: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleDecide(ctx, req, tt.input)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %s", err, tt.wantErr)
			}
		})
	}
}

func TestHandleSession_AwaitingAdvance(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, started, _ := server.handleStart(ctx, req, StartInput{Context: "policy"})
	id := started.Session.ID
	if _, _, err := server.handleBegin(ctx, req, SessionIDInput{SessionID: id}); err != nil {
		t.Fatalf("handleBegin: %v", err)
	}

	_, detail, err := server.handleSession(ctx, req, SessionIDInput{SessionID: id})
	if err != nil {
		t.Fatalf("handleSession: %v", err)
	}
	if detail.AwaitingAdvance {
		t.Error("undecided scenario should not await advance")
	}
	if detail.Scenario == nil || detail.Scenario.Title != "COLLECTIVE ACTION FAILURE" {
		t.Errorf("Scenario = %+v", detail.Scenario)
	}

	if _, _, err := server.handleDecide(ctx, req, DecideInput{SessionID: id, Choice: "communicate"}); err != nil {
		t.Fatalf("handleDecide: %v", err)
	}
	_, detail, _ = server.handleSession(ctx, req, SessionIDInput{SessionID: id})
	if !detail.AwaitingAdvance {
		t.Error("decided scenario should await advance")
	}

	_, _, err = server.handleDecide(ctx, req, DecideInput{SessionID: id, Choice: "escalate"})
	if err == nil || !strings.HasPrefix(err.Error(), "INVALID_STATE") {
		t.Errorf("second decision error = %v, want INVALID_STATE", err)
	}
}

func TestHandleReset(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	final := playSolo(t, server, "philosophy", "communicate")

	_, out, err := server.handleReset(ctx, req, SessionIDInput{SessionID: final.ID})
	if err != nil {
		t.Fatalf("handleReset: %v", err)
	}
	if out.Session.ID == final.ID {
		t.Error("reset should create a new session id")
	}
	if out.Session.Step != models.StepIntro || out.Session.DecisionCount != 0 {
		t.Errorf("reset session = %+v", out.Session)
	}
	if out.Session.UserID != final.UserID || out.Session.Context != final.Context {
		t.Errorf("reset changed user or context: %+v", out.Session)
	}

	_, old, err := server.handleSession(ctx, req, SessionIDInput{SessionID: final.ID})
	if err != nil {
		t.Fatalf("handleSession(old): %v", err)
	}
	if !old.Session.Completed {
		t.Error("reset should leave the old session untouched")
	}
}

func TestHandleReport_DefaultPath(t *testing.T) {
	server, tmpDir := setupTestServer(t)
	ctx := context.Background()

	final := playSolo(t, server, "science", "silence")

	_, out, err := server.handleReport(ctx, &sdk.CallToolRequest{}, ReportInput{SessionID: final.ID})
	if err != nil {
		t.Fatalf("handleReport: %v", err)
	}

	want := filepath.Join(store.LocalDataPath(tmpDir), "reports", "dark_forest_results_2026-05-04_"+final.ID+".json")
	if out.Path != want {
		t.Errorf("Path = %q, want %q", out.Path, want)
	}
	if out.Compressed {
		t.Error("Compressed = true, want false")
	}

	r, err := report.Read(out.Path)
	if err != nil {
		t.Fatalf("report.Read: %v", err)
	}
	if r.SessionID != final.ID || len(r.Decisions) != 4 {
		t.Errorf("report = %+v", r)
	}
	if r.Profile.Type != models.ProfileStrategicObserver {
		t.Errorf("Profile = %q, want strategic_observer", r.Profile.Type)
	}
}

func TestHandleReport_Compressed(t *testing.T) {
	server, tmpDir := setupTestServer(t)
	ctx := context.Background()

	final := playSolo(t, server, "business", "communicate")
	path := filepath.Join(tmpDir, ".darkforest", "reports", "run.json.gz")

	_, out, err := server.handleReport(ctx, &sdk.CallToolRequest{}, ReportInput{SessionID: final.ID, OutputPath: path, Compress: true})
	if err != nil {
		t.Fatalf("handleReport: %v", err)
	}
	if out.Path != path || !out.Compressed {
		t.Errorf("out = %+v", out)
	}

	hdr, err := report.Verify(path)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if hdr.SessionID != final.ID {
		t.Errorf("header session = %q, want %q", hdr.SessionID, final.ID)
	}
}

func TestHandleReport_Errors(t *testing.T) {
	server, tmpDir := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	final := playSolo(t, server, "policy", "escalate")

	outside := filepath.Join(tmpDir, "elsewhere", "report.json")
	_, _, err := server.handleReport(ctx, req, ReportInput{SessionID: final.ID, OutputPath: outside})
	if err == nil {
		t.Fatal("expected error for a path outside the report directories")
	}
	if !strings.Contains(err.Error(), ".../elsewhere/report.json") {
		t.Errorf("error = %v, want redacted output path", err)
	}
	if _, statErr := os.Stat(outside); !os.IsNotExist(statErr) {
		t.Error("rejected report should not be written")
	}

	_, started, _ := server.handleStart(ctx, req, StartInput{Context: "policy"})
	_, _, err = server.handleReport(ctx, req, ReportInput{SessionID: started.Session.ID})
	if err == nil || !strings.HasPrefix(err.Error(), "INVALID_STATE") {
		t.Errorf("incomplete session error = %v, want INVALID_STATE", err)
	}
}

func TestHandleReport_RateLimited(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	// darkforest_report has burst=2; failed calls still spend tokens.
	for i := 0; i < 2; i++ {
		_, _, err := server.handleReport(ctx, req, ReportInput{SessionID: "missing"})
		if err == nil || strings.Contains(err.Error(), "rate limit") {
			t.Fatalf("call %d error = %v, want not-found", i, err)
		}
	}

	_, _, err := server.handleReport(ctx, req, ReportInput{SessionID: "missing"})
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("third call error = %v, want rate limit", err)
	}
	if err != nil && !strings.HasPrefix(err.Error(), "RATE_LIMITED") {
		t.Errorf("error = %v, want RATE_LIMITED prefix", err)
	}
}

func TestHandleStats(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, out, err := server.handleStats(ctx, req, StatsInput{})
	if err != nil {
		t.Fatalf("handleStats: %v", err)
	}
	if out.Stats.TotalSessions != 0 || out.Stats.ProfileDistribution == nil {
		t.Errorf("empty stats = %+v", out.Stats)
	}

	playSolo(t, server, "business", "escalate")
	if _, _, err := server.handleStart(ctx, req, StartInput{Context: "science"}); err != nil {
		t.Fatalf("handleStart: %v", err)
	}

	_, out, err = server.handleStats(ctx, req, StatsInput{})
	if err != nil {
		t.Fatalf("handleStats: %v", err)
	}
	if out.Stats.TotalSessions != 2 || out.Stats.CompletedSessions != 1 {
		t.Errorf("stats = %+v", out.Stats)
	}
	if out.Stats.ProfileDistribution[models.ProfileDarkForestAdherent] != 1 {
		t.Errorf("ProfileDistribution = %v", out.Stats.ProfileDistribution)
	}
	if out.Stats.CompletionRate != 0.5 {
		t.Errorf("CompletionRate = %v, want 0.5", out.Stats.CompletionRate)
	}
}

func TestHandleRooms_Lockstep(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, created, err := server.handleRoomCreate(ctx, req, RoomCreateInput{Name: "  Team <b>Red</b> ", Context: "science", CreatedBy: "carol"})
	if err != nil {
		t.Fatalf("handleRoomCreate: %v", err)
	}
	room := created.Room
	if room.Name != "Team Red" {
		t.Errorf("Name = %q, want sanitized %q", room.Name, "Team Red")
	}

	var sessions []string
	for _, user := range []string{"carol", "dave"} {
		_, joined, err := server.handleRoomJoin(ctx, req, RoomJoinInput{RoomID: room.ID, UserID: user})
		if err != nil {
			t.Fatalf("handleRoomJoin(%s): %v", user, err)
		}
		if !joined.Result.Session.Multiplayer || joined.Result.Session.Step != models.StepSimulation {
			t.Errorf("joined session = %+v", joined.Result.Session)
		}
		sessions = append(sessions, joined.Result.Session.ID)
	}

	_, listed, err := server.handleRooms(ctx, req, RoomsInput{})
	if err != nil {
		t.Fatalf("handleRooms: %v", err)
	}
	if listed.Count != 1 || listed.Rooms[0].ID != room.ID {
		t.Errorf("rooms = %+v", listed)
	}

	// Room sessions cannot advance on their own.
	if _, err := server.manager.Decide(ctx, sessions[0], models.ChoiceSilence); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	_, _, err = server.handleAdvance(ctx, req, SessionIDInput{SessionID: sessions[0]})
	if err == nil || !strings.HasPrefix(err.Error(), "INVALID_STATE") {
		t.Errorf("solo advance of room session error = %v, want INVALID_STATE", err)
	}

	_, _, err = server.handleRoomAdvance(ctx, req, RoomIDInput{RoomID: room.ID})
	if err == nil || !strings.Contains(err.Error(), "dave") {
		t.Errorf("advance with pending participant error = %v, want dave pending", err)
	}

	count, _ := server.catalog.ScenarioCount(models.ContextScience)
	for i := 0; i < count; i++ {
		for _, id := range sessions {
			if i == 0 && id == sessions[0] {
				continue
			}
			if _, err := server.manager.Decide(ctx, id, models.ChoiceSilence); err != nil {
				t.Fatalf("Decide(%s, %d): %v", id, i, err)
			}
		}
		_, status, err := server.handleRoomAdvance(ctx, req, RoomIDInput{RoomID: room.ID})
		if err != nil {
			t.Fatalf("handleRoomAdvance %d: %v", i, err)
		}
		if len(status.Status.Participants) != 2 {
			t.Errorf("participants = %d, want 2", len(status.Status.Participants))
		}
	}

	_, detail, err := server.handleRooms(ctx, req, RoomsInput{RoomID: room.ID})
	if err != nil {
		t.Fatalf("handleRooms(room): %v", err)
	}
	if detail.Status == nil || detail.Status.Room.Active {
		t.Fatalf("room should be closed: %+v", detail.Status)
	}
	for _, p := range detail.Status.Participants {
		if p.Profile != models.ProfileStrategicObserver {
			t.Errorf("participant %s profile = %q", p.Participant.UserID, p.Profile)
		}
	}

	_, listed, _ = server.handleRooms(ctx, req, RoomsInput{})
	if listed.Count != 0 {
		t.Errorf("closed room still listed: %+v", listed.Rooms)
	}
}

func TestHandleRoomJoin_Errors(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	_, _, err := server.handleRoomJoin(ctx, req, RoomJoinInput{RoomID: "missing", UserID: "erin"})
	if err == nil || !strings.HasPrefix(err.Error(), "NOT_FOUND") {
		t.Errorf("unknown room error = %v, want NOT_FOUND", err)
	}

	_, created, err := server.handleRoomCreate(ctx, req, RoomCreateInput{Context: "business"})
	if err != nil {
		t.Fatalf("handleRoomCreate: %v", err)
	}
	_, _, err = server.handleRoomJoin(ctx, req, RoomJoinInput{RoomID: created.Room.ID, UserID: "!!!"})
	if err == nil || !strings.Contains(err.Error(), "user_id is required") {
		t.Errorf("blank user error = %v, want user_id is required", err)
	}
}

func TestRenderCatalog(t *testing.T) {
	server, _ := setupTestServer(t)

	md := renderCatalog(server.catalog)
	for _, c := range server.catalog.Contexts {
		if !strings.Contains(md, c.Name) {
			t.Errorf("markdown missing context %q", c.Name)
		}
		for _, sc := range c.Scenarios {
			if !strings.Contains(md, sc.Title) {
				t.Errorf("markdown missing scenario %q", sc.Title)
			}
		}
	}
}
