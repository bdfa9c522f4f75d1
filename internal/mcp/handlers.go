package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/darkforest/internal/analytics"
	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/pathutil"
	"github.com/nvandessel/darkforest/internal/profile"
	"github.com/nvandessel/darkforest/internal/ratelimit"
	"github.com/nvandessel/darkforest/internal/report"
	"github.com/nvandessel/darkforest/internal/sanitize"
	"github.com/nvandessel/darkforest/internal/session"
)

// CatalogURI is the markdown catalog resource.
const CatalogURI = "darkforest://catalog"

// registerTools registers all darkforest MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_catalog",
		Description: "List contexts and choices; pass a context to include its scenarios",
	}, s.handleCatalog)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_start",
		Description: "Create a new session in the intro step for a user and context",
	}, s.handleStart)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_select_context",
		Description: "Change the context of a session that has not begun",
	}, s.handleSelectContext)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_begin",
		Description: "Begin the simulation and return the first scenario",
	}, s.handleBegin)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_decide",
		Description: "Record a choice (communicate, silence, escalate) for the current scenario and return its consequence",
	}, s.handleDecide)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_advance",
		Description: "Move to the next scenario, or to results with a profile after the last one",
	}, s.handleAdvance)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_reset",
		Description: "Start over with a fresh session for the same user and context",
	}, s.handleReset)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_session",
		Description: "Show a session with its decision log and current scenario",
	}, s.handleSession)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_report",
		Description: "Export a completed session as a JSON report or checksummed archive",
	}, s.handleReport)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_stats",
		Description: "Aggregate statistics across all stored sessions",
	}, s.handleStats)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_room_create",
		Description: "Open a multiplayer room that plays one context in lockstep",
	}, s.handleRoomCreate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_room_join",
		Description: "Join a room before its first advance; creates the participant's session",
	}, s.handleRoomJoin)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_room_advance",
		Description: "Advance every participant once all have decided the room's current scenario",
	}, s.handleRoomAdvance)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "darkforest_rooms",
		Description: "List active rooms, or show participant progress for one room",
	}, s.handleRooms)

	return nil
}

// registerResources registers MCP resources.
func (s *Server) registerResources() error {
	s.server.AddResource(&sdk.Resource{
		URI:         CatalogURI,
		Name:        "darkforest-catalog",
		Description: "Contexts, scenarios and choices of the Dark Forest simulation.",
		MIMEType:    "text/markdown",
	}, s.handleCatalogResource)

	return nil
}

// handleCatalogResource renders the catalog as markdown.
func (s *Server) handleCatalogResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      CatalogURI,
				MIMEType: "text/markdown",
				Text:     renderCatalog(s.catalog),
			},
		},
	}, nil
}

func renderCatalog(cat *catalog.Catalog) string {
	var sb strings.Builder
	sb.WriteString("# Dark Forest Simulation\n\n")

	sb.WriteString("## Choices\n\n")
	for _, ch := range cat.Choices {
		fmt.Fprintf(&sb, "- **%s** (`%s`, risk: %s): %s\n", ch.Label, ch.ID, ch.Risk, ch.Theory)
	}

	for _, c := range cat.Contexts {
		fmt.Fprintf(&sb, "\n## %s (`%s`)\n\n%s\n\n", c.Name, c.ID, c.Description)
		for i, sc := range c.Scenarios {
			fmt.Fprintf(&sb, "%d. **%s**: %s\n", i+1, sc.Title, sc.RealWorld)
		}
		if c.Critique.Flaws != "" {
			fmt.Fprintf(&sb, "\n*Critique:* %s\n", c.Critique.Flaws)
		}
	}

	sb.WriteString("\n## Criticisms of Dark Forest Theory\n")
	writeList(&sb, "Logical", cat.Criticisms.Logical)
	writeList(&sb, "Empirical", cat.Criticisms.Empirical)
	writeList(&sb, "Ethical", cat.Criticisms.Ethical)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
}

// toolError prefixes err with its machine-readable code so MCP clients can
// branch on it.
func toolError(err error) error {
	if err == nil {
		return nil
	}
	if code := models.ErrorCode(err); code != "" {
		return fmt.Errorf("%s: %w", code, err)
	}
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("NOT_FOUND: %w", err)
	}
	if errors.Is(err, ratelimit.ErrRateLimited) {
		return fmt.Errorf("RATE_LIMITED: %w", err)
	}
	return err
}

func requireID(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// currentScenario returns the scenario awaiting a decision, or nil outside
// the simulation step.
func (s *Server) currentScenario(sess models.Session) *catalog.Scenario {
	if sess.Step != models.StepSimulation {
		return nil
	}
	sc, err := s.catalog.Scenario(sess.Context, sess.CurrentScenario)
	if err != nil {
		return nil
	}
	return sc
}

func profileFor(sess models.Session) *profile.Metadata {
	if !sess.Completed {
		return nil
	}
	md := profile.Describe(sess.Profile)
	return &md
}

func (s *Server) sessionOutput(sess models.Session, msg string) SessionOutput {
	return SessionOutput{
		Session:  sess,
		Scenario: s.currentScenario(sess),
		Profile:  profileFor(sess),
		Message:  msg,
	}
}

// handleCatalog implements the darkforest_catalog tool.
func (s *Server) handleCatalog(ctx context.Context, req *sdk.CallToolRequest, args CatalogInput) (_ *sdk.CallToolResult, _ CatalogOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_catalog", start, retErr, sanitizeToolParams(map[string]any{
			"context": args.Context,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_catalog"); err != nil {
		return nil, CatalogOutput{}, toolError(err)
	}

	out := CatalogOutput{
		Contexts: make([]ContextSummary, 0, len(s.catalog.Contexts)),
		Choices:  make([]ChoiceSummary, 0, len(s.catalog.Choices)),
	}
	for _, c := range s.catalog.Contexts {
		out.Contexts = append(out.Contexts, ContextSummary{
			ID:            c.ID,
			Name:          c.Name,
			Description:   c.Description,
			ScenarioCount: len(c.Scenarios),
		})
	}
	for _, ch := range s.catalog.Choices {
		out.Choices = append(out.Choices, ChoiceSummary{ID: ch.ID, Label: ch.Label, Risk: ch.Risk, Theory: ch.Theory})
	}

	if args.Context != "" {
		c, err := models.ParseContext(args.Context)
		if err != nil {
			return nil, CatalogOutput{}, toolError(err)
		}
		info, err := s.catalog.Context(c)
		if err != nil {
			return nil, CatalogOutput{}, toolError(err)
		}
		out.Scenarios = info.Scenarios
	}

	return nil, out, nil
}

// handleStart implements the darkforest_start tool.
func (s *Server) handleStart(ctx context.Context, req *sdk.CallToolRequest, args StartInput) (_ *sdk.CallToolResult, _ SessionOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_start", start, retErr, sanitizeToolParams(map[string]any{
			"user_id": args.UserID,
			"context": args.Context,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_start"); err != nil {
		return nil, SessionOutput{}, toolError(err)
	}

	c, err := models.ParseContext(args.Context)
	if err != nil {
		return nil, SessionOutput{}, toolError(err)
	}

	sess, err := s.manager.Start(ctx, sanitize.UserID(args.UserID), c)
	if err != nil {
		return nil, SessionOutput{}, toolError(err)
	}

	return nil, s.sessionOutput(*sess, fmt.Sprintf("Session %s created for %s. Call darkforest_begin to see the first scenario.", sess.ID, sess.UserID)), nil
}

// handleSelectContext implements the darkforest_select_context tool.
func (s *Server) handleSelectContext(ctx context.Context, req *sdk.CallToolRequest, args SelectContextInput) (_ *sdk.CallToolResult, _ SessionOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_select_context", start, retErr, sanitizeToolParams(map[string]any{
			"session_id": args.SessionID,
			"context":    args.Context,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_select_context"); err != nil {
		return nil, SessionOutput{}, toolError(err)
	}
	if err := requireID("session_id", args.SessionID); err != nil {
		return nil, SessionOutput{}, err
	}

	c, err := models.ParseContext(args.Context)
	if err != nil {
		return nil, SessionOutput{}, toolError(err)
	}

	sess, err := s.manager.SelectContext(ctx, args.SessionID, c)
	if err != nil {
		return nil, SessionOutput{}, toolError(err)
	}

	return nil, s.sessionOutput(*sess, fmt.Sprintf("Context set to %s.", c)), nil
}

// handleBegin implements the darkforest_begin tool.
func (s *Server) handleBegin(ctx context.Context, req *sdk.CallToolRequest, args SessionIDInput) (_ *sdk.CallToolResult, _ SessionOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_begin", start, retErr, sanitizeToolParams(map[string]any{
			"session_id": args.SessionID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_begin"); err != nil {
		return nil, SessionOutput{}, toolError(err)
	}
	if err := requireID("session_id", args.SessionID); err != nil {
		return nil, SessionOutput{}, err
	}

	sess, err := s.manager.Begin(ctx, args.SessionID)
	if err != nil {
		return nil, SessionOutput{}, toolError(err)
	}

	count, _ := s.catalog.ScenarioCount(sess.Context)
	return nil, s.sessionOutput(*sess, fmt.Sprintf("Simulation begun: scenario 1 of %d.", count)), nil
}

// handleDecide implements the darkforest_decide tool.
func (s *Server) handleDecide(ctx context.Context, req *sdk.CallToolRequest, args DecideInput) (_ *sdk.CallToolResult, _ DecideOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_decide", start, retErr, sanitizeToolParams(map[string]any{
			"session_id": args.SessionID,
			"choice":     args.Choice,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_decide"); err != nil {
		return nil, DecideOutput{}, toolError(err)
	}
	if err := requireID("session_id", args.SessionID); err != nil {
		return nil, DecideOutput{}, err
	}

	choice, err := models.ParseChoice(args.Choice)
	if err != nil {
		return nil, DecideOutput{}, toolError(err)
	}

	res, err := s.manager.Decide(ctx, args.SessionID, choice)
	if err != nil {
		return nil, DecideOutput{}, toolError(err)
	}

	next := "Call darkforest_advance to continue."
	if res.Session.Multiplayer {
		next = "Waiting for the room to advance."
	}
	return nil, DecideOutput{
		Session:     res.Session,
		Decision:    res.Decision,
		Consequence: res.Consequence,
		Message:     fmt.Sprintf("%s recorded for %q. %s", res.Decision.ChoiceLabel, res.Decision.ScenarioTitle, next),
	}, nil
}

// handleAdvance implements the darkforest_advance tool.
func (s *Server) handleAdvance(ctx context.Context, req *sdk.CallToolRequest, args SessionIDInput) (_ *sdk.CallToolResult, _ SessionOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_advance", start, retErr, sanitizeToolParams(map[string]any{
			"session_id": args.SessionID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_advance"); err != nil {
		return nil, SessionOutput{}, toolError(err)
	}
	if err := requireID("session_id", args.SessionID); err != nil {
		return nil, SessionOutput{}, err
	}

	sess, err := s.manager.Advance(ctx, args.SessionID)
	if err != nil {
		return nil, SessionOutput{}, toolError(err)
	}

	msg := fmt.Sprintf("Advanced to scenario %d.", sess.CurrentScenario+1)
	if sess.Completed {
		msg = fmt.Sprintf("Simulation complete. Profile: %s.", profile.Label(sess.Profile))
	}
	return nil, s.sessionOutput(*sess, msg), nil
}

// handleReset implements the darkforest_reset tool.
func (s *Server) handleReset(ctx context.Context, req *sdk.CallToolRequest, args SessionIDInput) (_ *sdk.CallToolResult, _ SessionOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_reset", start, retErr, sanitizeToolParams(map[string]any{
			"session_id": args.SessionID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_reset"); err != nil {
		return nil, SessionOutput{}, toolError(err)
	}
	if err := requireID("session_id", args.SessionID); err != nil {
		return nil, SessionOutput{}, err
	}

	sess, err := s.manager.Reset(ctx, args.SessionID)
	if err != nil {
		return nil, SessionOutput{}, toolError(err)
	}

	return nil, s.sessionOutput(*sess, fmt.Sprintf("New session %s replaces %s.", sess.ID, args.SessionID)), nil
}

// handleSession implements the darkforest_session tool.
func (s *Server) handleSession(ctx context.Context, req *sdk.CallToolRequest, args SessionIDInput) (_ *sdk.CallToolResult, _ SessionDetailOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_session", start, retErr, sanitizeToolParams(map[string]any{
			"session_id": args.SessionID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_session"); err != nil {
		return nil, SessionDetailOutput{}, toolError(err)
	}
	if err := requireID("session_id", args.SessionID); err != nil {
		return nil, SessionDetailOutput{}, err
	}

	snap, err := s.manager.Snapshot(ctx, args.SessionID)
	if err != nil {
		return nil, SessionDetailOutput{}, toolError(err)
	}

	decisions := snap.Decisions
	if decisions == nil {
		decisions = []models.Decision{}
	}
	awaiting := snap.Session.Step == models.StepSimulation && len(decisions) == snap.Session.CurrentScenario+1

	return nil, SessionDetailOutput{
		Session:         snap.Session,
		Decisions:       decisions,
		AwaitingAdvance: awaiting,
		Scenario:        s.currentScenario(snap.Session),
		Profile:         profileFor(snap.Session),
		Normalized:      snap.Session.Scores.Normalized(snap.Session.DecisionCount),
	}, nil
}

// handleReport implements the darkforest_report tool.
func (s *Server) handleReport(ctx context.Context, req *sdk.CallToolRequest, args ReportInput) (_ *sdk.CallToolResult, _ ReportOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_report", start, retErr, sanitizeToolParams(map[string]any{
			"session_id":  args.SessionID,
			"output_path": args.OutputPath,
			"compress":    args.Compress,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_report"); err != nil {
		return nil, ReportOutput{}, toolError(err)
	}
	if err := requireID("session_id", args.SessionID); err != nil {
		return nil, ReportOutput{}, err
	}

	snap, err := s.manager.Snapshot(ctx, args.SessionID)
	if err != nil {
		return nil, ReportOutput{}, toolError(err)
	}

	r, err := report.Build(s.catalog, &snap.Session, snap.Decisions, s.now())
	if err != nil {
		return nil, ReportOutput{}, toolError(err)
	}

	compress := args.Compress || s.settings.Report.Compress
	opts := report.ExportOptions{Dir: s.reportDir(), Compress: compress}
	if args.OutputPath != "" {
		// Caller-chosen path: restrict to the report directories.
		allowed, err := s.allowedReportDirs()
		if err != nil {
			return nil, ReportOutput{}, fmt.Errorf("failed to determine allowed report dirs: %w", err)
		}
		opts.Path = args.OutputPath
		opts.AllowedDirs = allowed
	}

	path, err := report.Export(r, opts)
	if err != nil {
		if args.OutputPath != "" {
			return nil, ReportOutput{}, fmt.Errorf("report export to %s failed: %w", pathutil.RedactPath(args.OutputPath), err)
		}
		return nil, ReportOutput{}, fmt.Errorf("report export failed: %w", err)
	}

	s.logger.Info("report exported", "session", r.SessionID, "path", path, "compressed", compress)
	return nil, ReportOutput{
		Path:       path,
		Compressed: compress,
		Report:     r,
		Message:    fmt.Sprintf("Report for %s (%s) written to %s", r.SessionID, r.Profile.Label, path),
	}, nil
}

// handleStats implements the darkforest_stats tool.
func (s *Server) handleStats(ctx context.Context, req *sdk.CallToolRequest, args StatsInput) (_ *sdk.CallToolResult, _ StatsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_stats", start, retErr, sanitizeToolParams(map[string]any{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_stats"); err != nil {
		return nil, StatsOutput{}, toolError(err)
	}

	st, err := analytics.Load(ctx, s.store)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{Stats: st}, nil
}

// handleRoomCreate implements the darkforest_room_create tool.
func (s *Server) handleRoomCreate(ctx context.Context, req *sdk.CallToolRequest, args RoomCreateInput) (_ *sdk.CallToolResult, _ RoomOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_room_create", start, retErr, sanitizeToolParams(map[string]any{
			"name":       args.Name,
			"context":    args.Context,
			"created_by": args.CreatedBy,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_room_create"); err != nil {
		return nil, RoomOutput{}, toolError(err)
	}

	c, err := models.ParseContext(args.Context)
	if err != nil {
		return nil, RoomOutput{}, toolError(err)
	}

	createdBy := sanitize.UserID(args.CreatedBy)
	if createdBy == "" {
		createdBy = "anonymous"
	}

	room, err := s.manager.CreateRoom(ctx, sanitize.RoomName(args.Name), c, createdBy)
	if err != nil {
		return nil, RoomOutput{}, toolError(err)
	}

	return nil, RoomOutput{
		Room:    *room,
		Message: fmt.Sprintf("Room %q (%s) open for joining.", room.Name, room.ID),
	}, nil
}

// handleRoomJoin implements the darkforest_room_join tool.
func (s *Server) handleRoomJoin(ctx context.Context, req *sdk.CallToolRequest, args RoomJoinInput) (_ *sdk.CallToolResult, _ RoomJoinOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_room_join", start, retErr, sanitizeToolParams(map[string]any{
			"room_id": args.RoomID,
			"user_id": args.UserID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_room_join"); err != nil {
		return nil, RoomJoinOutput{}, toolError(err)
	}
	if err := requireID("room_id", args.RoomID); err != nil {
		return nil, RoomJoinOutput{}, err
	}
	userID := sanitize.UserID(args.UserID)
	if userID == "" {
		return nil, RoomJoinOutput{}, fmt.Errorf("user_id is required")
	}

	res, err := s.manager.JoinRoom(ctx, args.RoomID, userID)
	if err != nil {
		return nil, RoomJoinOutput{}, toolError(err)
	}

	return nil, RoomJoinOutput{
		Result:  *res,
		Message: fmt.Sprintf("%s joined %q with session %s.", userID, res.Room.Name, res.Session.ID),
	}, nil
}

// handleRoomAdvance implements the darkforest_room_advance tool.
func (s *Server) handleRoomAdvance(ctx context.Context, req *sdk.CallToolRequest, args RoomIDInput) (_ *sdk.CallToolResult, _ RoomStatusOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_room_advance", start, retErr, sanitizeToolParams(map[string]any{
			"room_id": args.RoomID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_room_advance"); err != nil {
		return nil, RoomStatusOutput{}, toolError(err)
	}
	if err := requireID("room_id", args.RoomID); err != nil {
		return nil, RoomStatusOutput{}, err
	}

	status, err := s.manager.AdvanceRoom(ctx, args.RoomID)
	if err != nil {
		return nil, RoomStatusOutput{}, toolError(err)
	}

	msg := fmt.Sprintf("Room advanced to scenario %d.", status.Room.CurrentScenario+1)
	if !status.Room.Active {
		msg = "Room complete. Every participant has a profile."
	}
	return nil, RoomStatusOutput{Status: *status, Message: msg}, nil
}

// handleRooms implements the darkforest_rooms tool.
func (s *Server) handleRooms(ctx context.Context, req *sdk.CallToolRequest, args RoomsInput) (_ *sdk.CallToolResult, _ RoomsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("darkforest_rooms", start, retErr, sanitizeToolParams(map[string]any{
			"room_id": args.RoomID,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "darkforest_rooms"); err != nil {
		return nil, RoomsOutput{}, toolError(err)
	}

	if args.RoomID != "" {
		status, err := s.manager.RoomStatus(ctx, args.RoomID)
		if err != nil {
			return nil, RoomsOutput{}, toolError(err)
		}
		return nil, RoomsOutput{Status: status, Count: 1}, nil
	}

	rooms, err := s.manager.ActiveRooms(ctx)
	if err != nil {
		return nil, RoomsOutput{}, toolError(err)
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return nil, RoomsOutput{Rooms: rooms, Count: len(rooms)}, nil
}
