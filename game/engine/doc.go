// Package engine provides the core simulation for the driving theory trainer.
//
// The engine package implements:
//   - A 2D road network with a main road, cross roads and scripted road elements
//   - Vehicle physics with a speed ceiling and road containment
//   - A scenario state machine that asks one driving theory question per element
//   - A frame loop with clamped time steps and per-phase error containment
//   - Result packaging and asynchronous hand-off to an external collaborator
//
// Core Types:
//
// Simulation implements the Engine interface and owns a World, a
// VehicleController, a ScenarioEngine, a Scheduler for one-shot timers and a
// ResultReporter. RenderLoop advances a Simulation once per display frame and
// paints it onto a Canvas; Runner drives a RenderLoop from a ticker for
// headless sessions. Tuning holds every constant and is loaded from JSON
// profiles.
//
// Usage:
//
//	sim, err := engine.NewSimulation(engine.DefaultTuning(), nil, engine.WithSink(sink))
//	if err != nil {
//		log.Fatal(err)
//	}
//	loop := engine.NewRenderLoop(sim)
//
//	// once per display frame
//	sim.HandleInput(engine.InputEvent{Type: engine.KeyDown, Control: engine.ControlAccelerate})
//	active := loop.Frame(time.Now(), canvas)
//
// Run Rules:
//
// The driver follows the road; leaving it brakes the car hard and puts it back
// on the nearest road point. Driving close to an untriggered element stops the
// car and presents a question matching the element. Each run presents exactly
// five questions sampled from twenty, each correct answer is worth twenty
// points, and the run ends with a results screen once the driver proceeds.
package engine
