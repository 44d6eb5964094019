// Package mcp exposes the driving simulator to AI agents over the Model
// Context Protocol.
//
// The Client is a thin proxy: every tool call becomes one REST request
// against the api package, and the JSON reply is rendered as readable text.
//
// Tools:
//   - create_session, get_session, list_sessions
//   - get_state: snapshot with the scenario on screen and recent notices
//   - drive: hold controls for a number of seconds
//   - press: send a single input event
//   - answer_scenario: answer the question on screen
//   - proceed, get_result: finish the run and follow the result hand-off
//   - reset_run, toggle_pause
//   - describe_surroundings: nearest road elements with distance and bearing
//   - list_configs, list_scenarios, driving_instructions
//
// Transport Modes:
//   - HTTP: mount GetMCPServer() under /mcp on the API server
//   - Stdio: serve GetMCPServer() with server.ServeStdio
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
