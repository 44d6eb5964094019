package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/wricardo/drivesim/game/engine"
)

// keyboard is the slice of ebiten input the client reads
type keyboard interface {
	Pressed(ebiten.Key) bool
	JustPressed(ebiten.Key) bool
}

type ebitenKeyboard struct{}

func (ebitenKeyboard) Pressed(k ebiten.Key) bool     { return ebiten.IsKeyPressed(k) }
func (ebitenKeyboard) JustPressed(k ebiten.Key) bool { return inpututil.IsKeyJustPressed(k) }

var controlKeys = map[engine.Control][]ebiten.Key{
	engine.ControlAccelerate: {ebiten.KeyArrowUp, ebiten.KeyW},
	engine.ControlBrake:      {ebiten.KeyArrowDown, ebiten.KeyS, ebiten.KeySpace},
	engine.ControlSteerLeft:  {ebiten.KeyArrowLeft, ebiten.KeyA},
	engine.ControlSteerRight: {ebiten.KeyArrowRight, ebiten.KeyD},
}

var commandKeys = []struct {
	key     ebiten.Key
	command engine.Command
}{
	{ebiten.KeyP, engine.CommandTogglePause},
	{ebiten.KeyR, engine.CommandReset},
	{ebiten.KeyEnter, engine.CommandProceed},
}

var answerKeys = []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4}

// heldControls returns the driving controls currently held down
func heldControls(kb keyboard) engine.InputState {
	held := func(c engine.Control) bool {
		for _, k := range controlKeys[c] {
			if kb.Pressed(k) {
				return true
			}
		}
		return false
	}
	return engine.InputState{
		Accelerate: held(engine.ControlAccelerate),
		Brake:      held(engine.ControlBrake),
		SteerLeft:  held(engine.ControlSteerLeft),
		SteerRight: held(engine.ControlSteerRight),
	}
}

// controlEvents turns the difference between two held states into key events
func controlEvents(prev, next engine.InputState) []engine.InputEvent {
	var events []engine.InputEvent
	diff := func(c engine.Control, was, is bool) {
		switch {
		case is && !was:
			events = append(events, engine.InputEvent{Type: engine.KeyDown, Control: c})
		case was && !is:
			events = append(events, engine.InputEvent{Type: engine.KeyUp, Control: c})
		}
	}
	diff(engine.ControlAccelerate, prev.Accelerate, next.Accelerate)
	diff(engine.ControlBrake, prev.Brake, next.Brake)
	diff(engine.ControlSteerLeft, prev.SteerLeft, next.SteerLeft)
	diff(engine.ControlSteerRight, prev.SteerRight, next.SteerRight)
	return events
}

// commandEvents returns the commands whose keys went down this tick
func commandEvents(kb keyboard) []engine.InputEvent {
	var events []engine.InputEvent
	for _, ck := range commandKeys {
		if kb.JustPressed(ck.key) {
			events = append(events, engine.InputEvent{Type: engine.CommandEvent, Command: ck.command})
		}
	}
	return events
}

// answerKey returns the option picked with the number keys, if any
func answerKey(kb keyboard, options int) (int, bool) {
	for i, k := range answerKeys {
		if i < options && kb.JustPressed(k) {
			return i, true
		}
	}
	return 0, false
}
