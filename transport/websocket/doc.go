// Package websocket streams session snapshots to browser and remote clients
// and accepts their input.
//
// The Hub owns every connection. Session runners hand it snapshots through
// Publish, which never blocks the simulation; the hub goroutine fans them out
// to the clients of that session together with any notices they have not
// seen yet.
//
// Message Protocol:
//
// Outgoing messages are JSON with an event name:
//   - state_update: {"session_id", "event", "state"}
//   - notice: {"session_id", "event", "notice"}
//   - answer: the service.AnswerResult for an answer sent on this connection
//   - error: {"error": "..."} for a rejected client message
//
// Incoming messages use the engine input vocabulary:
//
//	{"type": "key_down", "control": "accelerate"}
//	{"type": "key_up", "control": "accelerate"}
//	{"type": "command", "command": "toggle_pause"}
//	{"type": "answer", "option": 1}
//
// Usage:
//
//	hub := websocket.NewHub(gameService)
//	go hub.Run(ctx)
//	manager := session.NewManager(session.WithFrameListener(hub.Publish))
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session_id"))
//	})
package websocket
