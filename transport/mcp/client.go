package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/drivesim/game/engine"
	"github.com/wricardo/drivesim/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// drive holds controls for up to ten seconds of simulated time
			Timeout: 20 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Driving Theory Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Driving Theory Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Drive the car around a small town. Approaching a road element (pedestrian
crossing, traffic light, stop sign, school zone, intersection) pauses the
car and asks a driving theory question. Answer five questions to finish
the run, then call proceed to hand the result off.

AVAILABLE TOOLS:
- create_session: Start a new run with an optional tuning profile
- get_session / list_sessions: Inspect sessions
- get_state: Current snapshot (vehicle, scenario on screen, score)
- drive: Hold controls (accelerate, brake, steer_left, steer_right) for some seconds
- press: Send one raw input event
- answer_scenario: Answer the question on screen by option index
- proceed: Finalize a finished run and submit the result
- get_result: Run summary and submission status
- reset_run / toggle_pause: Run control
- describe_surroundings: Nearest road elements with distance and bearing
- list_configs / list_scenarios: Tuning profiles and the question catalog
- driving_instructions: Controls and rules`),
	)

	c.registerTools()
}

func sessionSchema(extra map[string]interface{}, required ...string) mcp.ToolInputSchema {
	props := map[string]interface{}{
		"session_id": map[string]interface{}{
			"type":        "string",
			"description": "Session ID",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   append([]string{"session_id"}, required...),
	}
}

var emptySchema = mcp.ToolInputSchema{
	Type:       "object",
	Properties: map[string]interface{}{},
}

var controlEnum = []string{
	string(engine.ControlAccelerate),
	string(engine.ControlBrake),
	string(engine.ControlSteerLeft),
	string(engine.ControlSteerRight),
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Start a new driving run with an optional tuning profile",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Tuning profile to use, e.g. standard or learner (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active driving sessions",
		InputSchema: emptySchema,
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: sessionSchema(nil),
	}, c.handleGetSession)

	// Driving
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_state",
		Description: "Get the current snapshot: vehicle, scenario on screen, score and recent notices",
		InputSchema: sessionSchema(nil),
	}, c.handleGetState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "drive",
		Description: "Hold a set of controls for a number of seconds. Stops early when a scenario appears, the run finishes or the session pauses.",
		InputSchema: sessionSchema(map[string]interface{}{
			"controls": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "string",
					"enum": controlEnum,
				},
				"description": "Controls held down for the whole drive. Empty means coast.",
			},
			"seconds": map[string]interface{}{
				"type":        "number",
				"description": "How long to hold the controls (0-10)",
			},
			"intent": map[string]interface{}{
				"type":        "string",
				"description": "Brief explanation of where you are heading and why",
			},
		}, "seconds"),
	}, c.handleDrive)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "press",
		Description: "Send one input event: key_down or key_up with a control, or a command",
		InputSchema: sessionSchema(map[string]interface{}{
			"type": map[string]interface{}{
				"type": "string",
				"enum": []string{string(engine.KeyDown), string(engine.KeyUp), string(engine.CommandEvent)},
			},
			"control": map[string]interface{}{
				"type": "string",
				"enum": controlEnum,
			},
			"command": map[string]interface{}{
				"type": "string",
				"enum": []string{string(engine.CommandTogglePause), string(engine.CommandReset), string(engine.CommandProceed)},
			},
		}, "type"),
	}, c.handlePress)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "answer_scenario",
		Description: "Answer the scenario on screen with a 0-based option index",
		InputSchema: sessionSchema(map[string]interface{}{
			"option": map[string]interface{}{
				"type":        "integer",
				"description": "0-based index of the chosen option",
			},
		}, "option"),
	}, c.handleAnswer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "proceed",
		Description: "Finalize a finished run and hand the result to the results service",
		InputSchema: sessionSchema(nil),
	}, c.handleProceed)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_result",
		Description: "Get the run summary and the submission status",
		InputSchema: sessionSchema(nil),
	}, c.handleGetResult)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_run",
		Description: "Start a new run in the same session",
		InputSchema: sessionSchema(nil),
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "toggle_pause",
		Description: "Pause or resume the session",
		InputSchema: sessionSchema(nil),
	}, c.handleTogglePause)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_surroundings",
		Description: "List the nearest road elements with distance and bearing relative to the car",
		InputSchema: sessionSchema(map[string]interface{}{
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Number of elements to list (default 5)",
			},
		}),
	}, c.handleDescribeSurroundings)

	// Catalog
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available tuning profiles",
		InputSchema: emptySchema,
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_scenarios",
		Description: "List the driving theory questions a run draws from",
		InputSchema: emptySchema,
	}, c.handleListScenarios)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "driving_instructions",
		Description: "Get the controls, rules and scoring",
		InputSchema: emptySchema,
	}, c.handleDrivingInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func sessionPath(args map[string]interface{}, suffix string) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n", session.ID, session.ConfigName)
	if session.State != nil {
		result += "\n" + formatState(session.State)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		line := fmt.Sprintf("- %s (Config: %s, Created: %s", s.ID, s.ConfigName, s.CreatedAt.Format("15:04:05"))
		if s.State != nil {
			line += fmt.Sprintf(", Answered: %d/%d", s.State.Stats.ScenariosCompleted, engine.ScenariosPerRun)
		}
		result += line + ")\n"
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state engine.State
	if err := c.apiCall(ctx, "GET", path, nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatState(&state)), nil
}

func (c *Client) handleDrive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/drive")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	seconds, _ := args["seconds"].(float64)
	controlsRaw, _ := args["controls"].([]interface{})
	controls := make([]engine.Control, 0, len(controlsRaw))
	for _, raw := range controlsRaw {
		if ctl, ok := raw.(string); ok {
			controls = append(controls, engine.Control(ctl))
		}
	}

	body := service.DriveRequest{Controls: controls, Seconds: seconds}

	var result service.DriveResult
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatDriveResult(&result)), nil
}

func (c *Client) handlePress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/input")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	evType, _ := args["type"].(string)
	control, _ := args["control"].(string)
	command, _ := args["command"].(string)
	ev := engine.InputEvent{
		Type:    engine.InputEventType(evType),
		Control: engine.Control(control),
		Command: engine.Command(command),
	}

	var state engine.State
	if err := c.apiCall(ctx, "POST", path, ev, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatState(&state)), nil
}

func (c *Client) handleAnswer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/answer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	option, ok := args["option"].(float64)
	if !ok {
		return mcp.NewToolResultError("option is required"), nil
	}

	var result service.AnswerResult
	if err := c.apiCall(ctx, "POST", path, map[string]int{"option": int(option)}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatAnswerResult(&result)), nil
}

func (c *Client) handleProceed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/proceed")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.ResultInfo
	if err := c.apiCall(ctx, "POST", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatResult(&result)), nil
}

func (c *Client) handleGetResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/result")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.ResultInfo
	if err := c.apiCall(ctx, "GET", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/reset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Message string        `json:"message"`
		State   *engine.State `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatState(response.State))), nil
}

func (c *Client) handleTogglePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/pause")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state engine.State
	if err := c.apiCall(ctx, "POST", path, nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatState(&state)), nil
}

func (c *Client) handleDescribeSurroundings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	statePath, err := sessionPath(args, "/state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := 5
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	var state engine.State
	if err := c.apiCall(ctx, "GET", statePath, nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSurroundings(&state, limit)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Configurations:\n\n"
	for _, cfg := range configs {
		result += fmt.Sprintf("• %s (%s)\n  %s\n  Top speed: %.0f km/h, World: %.0fx%.0f, Elements: %d\n\n",
			cfg.ConfigID, cfg.Name, cfg.Description, cfg.MaxSpeedKmh, cfg.WorldWidth, cfg.WorldHeight, cfg.Elements)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count     int               `json:"count"`
		PerRun    int               `json:"per_run"`
		Scenarios []engine.Scenario `json:"scenarios"`
	}
	if err := c.apiCall(ctx, "GET", "/api/scenarios", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Scenario catalog (%d questions, %d per run):\n\n", response.Count, response.PerRun)
	for _, s := range response.Scenarios {
		fmt.Fprintf(&sb, "• %s [%s] %s\n", s.ID, s.TriggerKind, s.Title)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleDrivingInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := fmt.Sprintf(`Driving Theory Simulator - Instructions

OBJECTIVE:
Drive around town and answer %d driving theory questions. Each question is
triggered by driving close to a road element. The run finishes after the
last answer; call proceed to submit the result.

CONTROLS:
• accelerate - speed up (up arrow / W)
• brake - slow down, then reverse slowly when stopped (down arrow / S)
• steer_left / steer_right - turn; steering needs some speed (left/right arrows, A/D)
• Releasing everything lets friction slow the car

ROAD ELEMENTS:
• pedestrian_crossing - zebra stripes across the road
• traffic_light - cycles red, yellow and green
• stop_sign - red octagon by the roadside
• school_zone - yellow zone with reduced speed expectations
• intersection - where two roads cross

SCENARIOS:
• Coming within trigger range of an untriggered element stops the car
  and shows a question with several options
• Driving is ignored until the question is answered
• A correct answer earns points; the explanation is shown either way
• Each element triggers at most once per run

COORDINATES:
• Positions are world units; X grows to the right and Y grows downward
• Heading is in degrees: 0 points east (+X), -90 points north (-Y)

TIPS:
• Use describe_surroundings to find the nearest untriggered element
• Drive in short bursts (1-3 seconds) and re-check the heading
• Leaving the road shows an advisory; drive back onto the asphalt

SESSIONS:
• Each session is an independent run with its own tuning profile
• reset_run starts over in the same session`, engine.ScenariosPerRun)

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func headingDegrees(rad float64) float64 {
	return math.Round(rad * 180 / math.Pi)
}

func formatSessionInfo(session *service.SessionInfo) string {
	result := fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\nLast access: %s\n",
		session.ID, session.ConfigName,
		session.CreatedAt.Format(time.RFC3339), session.LastAccessedAt.Format(time.RFC3339))
	if session.State != nil {
		result += "\n" + formatState(session.State)
	}
	return result
}

func formatState(state *engine.State) string {
	if state == nil {
		return "No state available"
	}

	var sb strings.Builder
	switch {
	case state.Fatal != "":
		fmt.Fprintf(&sb, "⛔ STOPPED: %s\n\n", state.Fatal)
	case state.Phase == engine.PhaseFinished:
		sb.WriteString("🏁 RUN FINISHED\n\n")
	case state.Paused:
		sb.WriteString("⏸ PAUSED\n\n")
	}

	v := state.Vehicle
	fmt.Fprintf(&sb, "Position: (%.0f,%.0f)\n", v.Position.X, v.Position.Y)
	fmt.Fprintf(&sb, "Heading: %.0f°\n", headingDegrees(v.Heading))
	fmt.Fprintf(&sb, "Speed: %.0f km/h (%s)\n", state.SpeedKmh, state.VehicleMode)
	if !state.OnRoad {
		sb.WriteString("Off road!\n")
	}
	fmt.Fprintf(&sb, "Score: %d\n", state.Stats.Score)
	fmt.Fprintf(&sb, "Answered: %d/%d (correct: %d)\n",
		state.Stats.ScenariosCompleted, engine.ScenariosPerRun, state.Stats.CorrectCount)
	fmt.Fprintf(&sb, "Phase: %s\n", state.Phase)

	if state.Advisory != "" {
		fmt.Fprintf(&sb, "Advisory: %s\n", state.Advisory)
	}

	if state.Scenario != nil {
		sb.WriteString("\n" + formatScenario(state.Scenario))
	}

	if n := len(state.Notices); n > 0 {
		sb.WriteString("\nRecent notices:\n")
		start := n - 3
		if start < 0 {
			start = 0
		}
		for _, notice := range state.Notices[start:] {
			fmt.Fprintf(&sb, "  [%s] %s\n", notice.Kind, notice.Message)
		}
	}

	if state.Phase == engine.PhaseFinished {
		fmt.Fprintf(&sb, "\nSubmission: %s", state.Submission.State)
		if state.Submission.Message != "" {
			fmt.Fprintf(&sb, " (%s)", state.Submission.Message)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatScenario(s *engine.ScenarioView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 %s (%s)\n%s\n", s.Title, s.ElementKind, s.Prompt)
	for i, opt := range s.Options {
		marker := " "
		if s.Result != nil && s.Result.SelectedOption == i {
			marker = "→"
		}
		fmt.Fprintf(&sb, " %s %d) %s\n", marker, i, opt)
	}
	if s.Answered && s.Result != nil {
		if s.Result.IsCorrect {
			fmt.Fprintf(&sb, "✓ Correct (+%d)\n", s.Result.PointsEarned)
		} else {
			fmt.Fprintf(&sb, "✗ Wrong, the answer was %d\n", s.Result.CorrectOption)
		}
		if s.Explanation != "" {
			fmt.Fprintf(&sb, "%s\n", s.Explanation)
		}
	} else {
		sb.WriteString("Answer with answer_scenario.\n")
	}
	return sb.String()
}

func formatDriveResult(result *service.DriveResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Drove %.0f units in %.1fs (%.0f,%.0f) → (%.0f,%.0f)\n",
		result.Distance, result.Elapsed,
		result.StartPosition.X, result.StartPosition.Y,
		result.EndPosition.X, result.EndPosition.Y)

	switch result.StopReason {
	case service.StopScenario:
		sb.WriteString("Stopped: a scenario needs an answer\n")
	case service.StopFinished:
		sb.WriteString("Stopped: the run is finished\n")
	case service.StopPaused:
		sb.WriteString("Stopped: the session is paused\n")
	case service.StopLoopStopped:
		sb.WriteString("Stopped: the simulation is no longer running\n")
	}
	if result.OffRoad {
		sb.WriteString("⚠ The car is off the road\n")
	}
	for _, ev := range result.Events {
		fmt.Fprintf(&sb, "  [%s] %s\n", ev.Kind, ev.Message)
	}
	if result.State != nil {
		sb.WriteString("\n" + formatState(result.State))
	}
	return sb.String()
}

func formatAnswerResult(result *service.AnswerResult) string {
	var sb strings.Builder
	if !result.Accepted {
		fmt.Fprintf(&sb, "✗ Answer not accepted: %s\n", result.Message)
	} else {
		fmt.Fprintf(&sb, "%s\n", result.Message)
		if result.Explanation != "" {
			fmt.Fprintf(&sb, "%s\n", result.Explanation)
		}
	}
	if result.State != nil {
		sb.WriteString("\n" + formatState(result.State))
	}
	return sb.String()
}

func formatResult(result *service.ResultInfo) string {
	var sb strings.Builder
	if !result.Finished {
		fmt.Fprintf(&sb, "Run in progress: %d/%d answered, score %d\n",
			result.Stats.ScenariosCompleted, engine.ScenariosPerRun, result.Stats.Score)
	}
	if p := result.Payload; p != nil {
		fmt.Fprintf(&sb, "Run %s\n", p.RunID)
		fmt.Fprintf(&sb, "Correct: %d, Wrong: %d, Score: %d (%.0f%%)\n",
			p.CorrectCount, p.WrongCount, p.Score, p.ScorePercentage)
		fmt.Fprintf(&sb, "Elapsed: %.0fs\n", p.ElapsedSeconds)
		for _, r := range p.PerScenario {
			mark := "✗"
			if r.IsCorrect {
				mark = "✓"
			}
			fmt.Fprintf(&sb, "  %s %s\n", mark, r.ScenarioID)
		}
	}
	fmt.Fprintf(&sb, "Submission: %s", result.Submission.State)
	if result.Submission.Message != "" {
		fmt.Fprintf(&sb, " (%s)", result.Submission.Message)
	}
	sb.WriteString("\n")
	return sb.String()
}

// formatSurroundings lists elements by distance with the bearing relative to
// the car's heading; positive turns are to the right
func formatSurroundings(state *engine.State, limit int) string {
	type entry struct {
		el       engine.RoadElement
		distance float64
		relative float64
	}

	pos := state.Vehicle.Position
	entries := make([]entry, 0, len(state.Elements))
	for _, el := range state.Elements {
		d := el.Position.Sub(pos)
		bearing := math.Atan2(d.Y, d.X) - state.Vehicle.Heading
		for bearing > math.Pi {
			bearing -= 2 * math.Pi
		}
		for bearing < -math.Pi {
			bearing += 2 * math.Pi
		}
		entries = append(entries, entry{el: el, distance: d.Len(), relative: headingDegrees(bearing)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].distance < entries[j].distance })
	if limit < len(entries) {
		entries = entries[:limit]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Car at (%.0f,%.0f) heading %.0f°\n\n", pos.X, pos.Y, headingDegrees(state.Vehicle.Heading))
	for _, e := range entries {
		status := "untriggered"
		if e.el.Triggered {
			status = "done"
		}
		light := ""
		if e.el.Light != engine.LightNone {
			light = fmt.Sprintf(", light %s", e.el.Light)
		}
		fmt.Fprintf(&sb, "• #%d %s at (%.0f,%.0f): %.0f units, turn %+.0f°, %s%s\n",
			e.el.ID, e.el.Kind, e.el.Position.X, e.el.Position.Y, e.distance, e.relative, status, light)
	}
	return sb.String()
}
