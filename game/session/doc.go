// Package session manages driving sessions.
//
// Each session owns a simulation and the engine.Runner goroutine that drives
// it at the profile's frame rate. Deleting a session, expiring it or calling
// StopAll stops its runner.
//
// Session Identifiers:
//
// Generated IDs are 4 hex characters from crypto/rand, retried on collision.
// Lookups are case-insensitive and custom IDs may not contain whitespace or
// slashes.
//
// Usage:
//
//	manager := session.NewManager(
//		session.WithResultSink(sink),
//		session.WithFrameListener(hub.Publish),
//	)
//	defer manager.StopAll()
//
//	sess, err := manager.Create("", tuning)
//	if err != nil {
//		log.Fatal(err)
//	}
//	st, err := sess.Runner.Snapshot(ctx)
//
// Cleanup:
//
// CleanupExpiredSessions removes sessions that have not been accessed within
// the given age; the server runs it on a ticker.
package session
