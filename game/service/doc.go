// Package service provides the business logic layer for the driving simulator.
//
// The service package implements:
//   - Multi-session management on top of per-session runners
//   - Tuning profile loading and saving
//   - Timed driving (Drive) and single input events
//   - Scenario answers, the proceed step and the result hand-off status
//
// Core Interfaces:
//
// GameService is the main service interface used by the HTTP, WebSocket and
// MCP transports. SessionManager handles session creation, retrieval and
// lifecycle. ConfigManager loads tuning profiles.
//
// Every session owns an engine.Runner. The service never touches a
// simulation directly; it submits closures through Runner.Do and returns the
// snapshot taken on the runner goroutine.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := gameService.CreateSession(ctx, "learner")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Hold the accelerator for two seconds
//	result, err := gameService.Drive(ctx, info.ID, service.DriveRequest{
//		Controls: []engine.Control{engine.ControlAccelerate},
//		Seconds:  2,
//	})
//	if result.StopReason == service.StopScenario {
//		answer, _ := gameService.SubmitAnswer(ctx, info.ID, 1)
//	}
package service
