// Command desktop runs a driving theory session in a local window. The
// simulation runs in-process and is painted with ebiten every frame.
//
// Controls: arrows or WASD drive, space brakes, 1-4 or a click answers,
// P pauses, R starts a new run and Enter submits a finished run.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/drivesim/game/config"
	"github.com/wricardo/drivesim/game/engine"
	"github.com/wricardo/drivesim/game/results"
)

// Game adapts a render loop to ebiten's Update/Draw cycle
type Game struct {
	sim  *engine.Simulation
	loop *engine.RenderLoop
	kb   keyboard
	held engine.InputState

	width, height float64
}

// NewGame wraps a simulation for the window
func NewGame(sim *engine.Simulation) *Game {
	v := sim.Tuning().Viewport
	return &Game{
		sim:    sim,
		loop:   engine.NewRenderLoop(sim),
		kb:     ebitenKeyboard{},
		width:  v.Width,
		height: v.Height,
	}
}

// Update applies this tick's input and advances the simulation one frame
func (g *Game) Update() error {
	next := heldControls(g.kb)
	events := append(controlEvents(g.held, next), commandEvents(g.kb)...)
	g.held = next

	for _, ev := range events {
		if err := g.sim.HandleInput(ev); err != nil {
			if errors.Is(err, engine.ErrNotFinished) {
				log.Debug("proceed ignored, run is not finished")
				continue
			}
			log.WithError(err).WithField("event", ev.Type).Warn("input rejected")
		}
	}

	if option, ok := g.pickedOption(); ok {
		if result, accepted := g.sim.SubmitAnswer(option); accepted {
			log.WithFields(log.Fields{"option": option, "result": result}).Info("answer submitted")
		}
	}

	g.loop.Frame(time.Now(), nil)
	return nil
}

// pickedOption returns the answer chosen with a number key or a click while
// a question is on screen
func (g *Game) pickedOption() (int, bool) {
	if g.sim.Phase() != engine.PhasePresenting {
		return 0, false
	}
	st := g.sim.Snapshot()
	if st.Scenario == nil || st.Scenario.Answered {
		return 0, false
	}
	n := len(st.Scenario.Options)

	if i, ok := answerKey(g.kb, n); ok {
		return i, true
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		return engine.OptionAt(g.width, g.height, float64(x), float64(y), n)
	}
	return 0, false
}

// Draw paints the current state back to front
func (g *Game) Draw(screen *ebiten.Image) {
	g.loop.Paint(screenCanvas{dst: screen})
}

// Layout keeps the logical screen at the profile's viewport size
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return int(g.width), int(g.height)
}

func loadTuning(path string) (*engine.Tuning, error) {
	if path == "" {
		return engine.DefaultTuning(), nil
	}
	return config.ReadProfile(path)
}

func buildSink(dir, url, token string) (engine.ResultSink, error) {
	var sinks results.MultiSink
	if url != "" {
		sinks = append(sinks, results.NewHTTPSubmitter(url, token))
	}
	if dir != "" {
		store, err := results.NewFileStore(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open results dir: %w", err)
		}
		sinks = append(sinks, store)
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

func newSimulation(cmd *cli.Command) (*engine.Simulation, error) {
	tuning, err := loadTuning(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	sink, err := buildSink(cmd.String("results-dir"), cmd.String("results-url"), cmd.String("results-token"))
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithNoticeListener(func(n engine.Notice) {
			log.WithField("kind", n.Kind).Info(n.Message)
		}),
	}
	if sink != nil {
		opts = append(opts, engine.WithSink(sink))
	}
	return engine.NewSimulation(tuning, nil, opts...)
}

func run(ctx context.Context, cmd *cli.Command) error {
	sim, err := newSimulation(cmd)
	if err != nil {
		return err
	}
	t := sim.Tuning()
	log.WithField("profile", t.Name).Info("starting desktop session")

	ebiten.SetTPS(t.Loop.TargetFPS)
	ebiten.SetWindowSize(int(t.Viewport.Width), int(t.Viewport.Height))
	ebiten.SetWindowTitle("Driving Theory Simulator - " + t.Name)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	return ebiten.RunGame(NewGame(sim))
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "desktop",
		Usage: "Drive a theory session in a local window",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "tuning profile to load (built-in standard profile when empty)"},
			&cli.StringFlag{Name: "results-dir", Usage: "directory for finished run files", Sources: cli.EnvVars("RESULTS_DIR")},
			&cli.StringFlag{Name: "results-url", Usage: "endpoint that receives finished runs", Sources: cli.EnvVars("RESULTS_URL")},
			&cli.StringFlag{Name: "results-token", Usage: "bearer token for the results endpoint", Sources: cli.EnvVars("RESULTS_TOKEN")},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: cli.EnvVars("DEBUG")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Action: run,
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
