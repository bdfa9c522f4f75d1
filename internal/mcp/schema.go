package mcp

import (
	"github.com/nvandessel/darkforest/internal/analytics"
	"github.com/nvandessel/darkforest/internal/catalog"
	"github.com/nvandessel/darkforest/internal/models"
	"github.com/nvandessel/darkforest/internal/profile"
	"github.com/nvandessel/darkforest/internal/report"
	"github.com/nvandessel/darkforest/internal/session"
)

// CatalogInput defines the input for darkforest_catalog tool.
type CatalogInput struct {
	Context string `json:"context,omitempty" jsonschema:"Context to expand with its full scenario list: business, philosophy, science or policy"`
}

// CatalogOutput defines the output for darkforest_catalog tool.
type CatalogOutput struct {
	Contexts  []ContextSummary   `json:"contexts" jsonschema:"Available contexts"`
	Choices   []ChoiceSummary    `json:"choices" jsonschema:"The three strategic responses"`
	Scenarios []catalog.Scenario `json:"scenarios,omitempty" jsonschema:"Scenarios of the requested context in play order"`
}

// ContextSummary is a list view of a context.
type ContextSummary struct {
	ID            models.Context `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	ScenarioCount int            `json:"scenario_count"`
}

// ChoiceSummary is a list view of a choice.
type ChoiceSummary struct {
	ID     models.Choice `json:"id"`
	Label  string        `json:"label"`
	Risk   string        `json:"risk"`
	Theory string        `json:"theory"`
}

// StartInput defines the input for darkforest_start tool.
type StartInput struct {
	UserID  string `json:"user_id,omitempty" jsonschema:"Player identifier (default: anonymous)"`
	Context string `json:"context" jsonschema:"Context to play: business, philosophy, science or policy"`
}

// SelectContextInput defines the input for darkforest_select_context tool.
type SelectContextInput struct {
	SessionID string `json:"session_id" jsonschema:"Session to update"`
	Context   string `json:"context" jsonschema:"New context: business, philosophy, science or policy"`
}

// SessionIDInput is the input for tools that act on one session.
type SessionIDInput struct {
	SessionID string `json:"session_id" jsonschema:"Session identifier"`
}

// SessionOutput is returned by tools that move a session through its steps.
type SessionOutput struct {
	Session  models.Session    `json:"session" jsonschema:"Session after the operation"`
	Scenario *catalog.Scenario `json:"scenario,omitempty" jsonschema:"Scenario now awaiting a decision, if any"`
	Profile  *profile.Metadata `json:"profile,omitempty" jsonschema:"Profile details once the session is complete"`
	Message  string            `json:"message" jsonschema:"Human-readable result message"`
}

// DecideInput defines the input for darkforest_decide tool.
type DecideInput struct {
	SessionID string `json:"session_id" jsonschema:"Session identifier"`
	Choice    string `json:"choice" jsonschema:"Response to the current scenario: communicate, silence or escalate"`
}

// DecideOutput defines the output for darkforest_decide tool.
type DecideOutput struct {
	Session     models.Session      `json:"session" jsonschema:"Session after the decision"`
	Decision    models.Decision     `json:"decision" jsonschema:"The logged decision"`
	Consequence catalog.Consequence `json:"consequence" jsonschema:"How the choice plays out"`
	Message     string              `json:"message" jsonschema:"Human-readable result message"`
}

// SessionDetailOutput defines the output for darkforest_session tool.
type SessionDetailOutput struct {
	Session         models.Session    `json:"session"`
	Decisions       []models.Decision `json:"decisions"`
	AwaitingAdvance bool              `json:"awaiting_advance" jsonschema:"Whether the current scenario is decided and the session can advance"`
	Scenario        *catalog.Scenario `json:"scenario,omitempty" jsonschema:"Current scenario while in the simulation step"`
	Profile         *profile.Metadata `json:"profile,omitempty"`
	Normalized      models.Scores     `json:"normalized_scores" jsonschema:"Scores divided by max(1, decision count)"`
}

// ReportInput defines the input for darkforest_report tool.
type ReportInput struct {
	SessionID  string `json:"session_id" jsonschema:"Completed session to export"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"Output file (default: .darkforest/reports/dark_forest_results_<date>_<session>.json)"`
	Compress   bool   `json:"compress,omitempty" jsonschema:"Write a checksummed gzip archive instead of plain JSON"`
}

// ReportOutput defines the output for darkforest_report tool.
type ReportOutput struct {
	Path       string         `json:"path" jsonschema:"File written"`
	Compressed bool           `json:"compressed"`
	Report     *report.Report `json:"report"`
	Message    string         `json:"message"`
}

// StatsInput defines the input for darkforest_stats tool.
type StatsInput struct{}

// StatsOutput defines the output for darkforest_stats tool.
type StatsOutput struct {
	Stats analytics.Stats `json:"stats"`
}

// RoomCreateInput defines the input for darkforest_room_create tool.
type RoomCreateInput struct {
	Name      string `json:"name,omitempty" jsonschema:"Display name (default: room-<id prefix>)"`
	Context   string `json:"context" jsonschema:"Shared context for every participant"`
	CreatedBy string `json:"created_by,omitempty" jsonschema:"Creator user id (default: anonymous)"`
}

// RoomOutput is returned by darkforest_room_create.
type RoomOutput struct {
	Room    models.Room `json:"room"`
	Message string      `json:"message"`
}

// RoomJoinInput defines the input for darkforest_room_join tool.
type RoomJoinInput struct {
	RoomID string `json:"room_id" jsonschema:"Room to join"`
	UserID string `json:"user_id" jsonschema:"Joining user id"`
}

// RoomJoinOutput defines the output for darkforest_room_join tool.
type RoomJoinOutput struct {
	Result  session.JoinResult `json:"result"`
	Message string             `json:"message"`
}

// RoomIDInput is the input for tools that act on one room.
type RoomIDInput struct {
	RoomID string `json:"room_id" jsonschema:"Room identifier"`
}

// RoomStatusOutput defines the output for darkforest_room_advance tool.
type RoomStatusOutput struct {
	Status  session.RoomStatus `json:"status"`
	Message string             `json:"message"`
}

// RoomsInput defines the input for darkforest_rooms tool.
type RoomsInput struct {
	RoomID string `json:"room_id,omitempty" jsonschema:"Room to inspect; omit to list active rooms"`
}

// RoomsOutput defines the output for darkforest_rooms tool.
type RoomsOutput struct {
	Rooms  []models.Room       `json:"rooms,omitempty" jsonschema:"Active rooms, newest first"`
	Status *session.RoomStatus `json:"status,omitempty" jsonschema:"Participant progress for the requested room"`
	Count  int                 `json:"count"`
}
