// Package api provides the HTTP REST API for the driving simulator.
//
// The api package implements:
//   - Session management endpoints
//   - Driving input, timed drives and scenario answers
//   - Finished-run results and the submission status
//   - Tuning profile listing and creation
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "learner"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Stop and remove a session
//
// Views:
//   - GET /api/sessions/{id}/state - Current snapshot
//   - GET /api/sessions/{id}/world - Road network, elements and buildings
//   - GET /api/sessions/{id}/frame - Display list of the last rendered frame
//   - GET /api/sessions/{id}/result - Run summary and submission status
//
// Driving:
//   - POST /api/sessions/{id}/input - One input event
//   - POST /api/sessions/{id}/drive - Hold controls for a duration
//   - POST /api/sessions/{id}/answer - Answer the scenario on screen
//   - POST /api/sessions/{id}/proceed - Finalize a finished run
//   - POST /api/sessions/{id}/reset - Start a new run
//   - POST /api/sessions/{id}/pause - Toggle pause
//
// Configuration:
//   - GET /api/configs - List tuning profiles
//   - GET /api/configs/{name} - Get one profile
//   - POST /api/configs - Save a profile; omitted fields take defaults
//   - GET /api/scenarios - The scenario catalog
//
// Input events are JSON objects:
//
//	{"type": "key_down", "control": "accelerate"}
//	{"type": "key_up", "control": "steer_left"}
//	{"type": "command", "command": "toggle_pause"}
//
// Drives hold a set of controls until the duration elapses, a scenario
// appears, the run finishes or the session pauses:
//
//	{"controls": ["accelerate", "steer_right"], "seconds": 2}
//
// Errors are returned as JSON with an HTTP status code:
//
//	{"error": "error message"}
//
// Unknown sessions and profiles answer 404, malformed input 400 and
// proceeding before the run finishes 409.
package api
