// Command drivesim starts the driving theory simulator server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, the tuning profile directory, where finished runs
// are submitted, debug logging, and optional ngrok tunneling for easy
// external access during development. Every flag can also be set from the
// environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/drivesim/api"
	"github.com/wricardo/drivesim/game/config"
	"github.com/wricardo/drivesim/game/engine"
	"github.com/wricardo/drivesim/game/results"
	"github.com/wricardo/drivesim/game/service"
	"github.com/wricardo/drivesim/game/session"
	"github.com/wricardo/drivesim/transport/mcp"
	"github.com/wricardo/drivesim/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Driving Theory Simulator Server"
)

const (
	sessionMaxAge       = 24 * time.Hour
	sessionCleanupEvery = time.Hour
	externalAPIURL      = "http://localhost:8080"
)

// options holds the resolved command line flags
type options struct {
	Host      string
	Port      int
	ConfigDir string
	Debug     bool

	ResultsURL   string
	ResultsToken string
	ResultsDir   string
	MongoURI     string
	MongoDB      string

	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

var globalFlags = []cli.Flag{
	&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
	&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
	&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing tuning profiles", Sources: cli.EnvVars("CONFIG_DIR")},
	&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
	&cli.StringFlag{Name: "results-url", Usage: "Endpoint finished runs are POSTed to", Sources: cli.EnvVars("RESULTS_URL")},
	&cli.StringFlag{Name: "results-token", Usage: "Bearer token for --results-url", Sources: cli.EnvVars("RESULTS_TOKEN")},
	&cli.StringFlag{Name: "results-dir", Value: "results", Usage: "Directory finished runs are written to (empty disables)", Sources: cli.EnvVars("RESULTS_DIR")},
	&cli.StringFlag{Name: "mongo-uri", Usage: "MongoDB URI finished runs are stored in", Sources: cli.EnvVars("MONGO_URI")},
	&cli.StringFlag{Name: "mongo-db", Value: "drivesim", Usage: "MongoDB database name", Sources: cli.EnvVars("MONGO_DB")},
	&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
	&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
	&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
}

func optionsFromCommand(cmd *cli.Command) options {
	return options{
		Host:         cmd.String("host"),
		Port:         cmd.Int("port"),
		ConfigDir:    cmd.String("config-dir"),
		Debug:        cmd.Bool("debug"),
		ResultsURL:   cmd.String("results-url"),
		ResultsToken: cmd.String("results-token"),
		ResultsDir:   cmd.String("results-dir"),
		MongoURI:     cmd.String("mongo-uri"),
		MongoDB:      cmd.String("mongo-db"),
		Ngrok:        cmd.Bool("ngrok"),
		NgrokAuth:    cmd.String("ngrok-auth"),
		NgrokDomain:  cmd.String("ngrok-domain"),
	}
}

func newApp() *cli.Command {
	serve := func(ctx context.Context, cmd *cli.Command) error {
		return runHTTPServer(ctx, optionsFromCommand(cmd))
	}

	return &cli.Command{
		Name:    "drivesim",
		Usage:   AppName,
		Version: Version,
		Flags:   globalFlags,
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd.Bool("debug"))
			return ctx, nil
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action:  serve,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runStdioMCPWithInternalServer(ctx, optionsFromCommand(cmd))
				},
			},
		},
	}
}

// main loads .env, parses flags, and starts the selected mode.
func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("error loading .env file")
		}
	} else {
		log.Info("loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.WithError(err).Fatal("drivesim failed")
	}
}

func setupLogging(debug bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// services is everything a server mode needs
type services struct {
	game     service.GameService
	sessions *session.Manager
	hub      *websocket.Hub
	closers  []func(context.Context) error
}

func (s *services) close(ctx context.Context) {
	s.sessions.StopAll()
	for _, c := range s.closers {
		if err := c(ctx); err != nil {
			log.WithError(err).Warn("failed to close results sink")
		}
	}
}

// initializeServices wires the results sinks, session/config managers, the
// game service and the WebSocket hub. The hub is not started.
func initializeServices(ctx context.Context, opts options) (*services, error) {
	configManager, err := config.NewManager(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	sink, closers, err := buildResultSink(ctx, opts)
	if err != nil {
		return nil, err
	}

	// Snapshots are streamed to the hub, which is created once the service
	// it forwards client input to exists
	var hub *websocket.Hub
	managerOpts := []session.Option{
		session.WithFrameListener(func(sessionID string, st engine.State) {
			hub.Publish(sessionID, st)
		}),
	}
	if sink != nil {
		managerOpts = append(managerOpts, session.WithResultSink(sink))
	}
	sessionManager := session.NewManager(managerOpts...)

	gameService := service.NewGameService(sessionManager, configManager)
	hub = websocket.NewHub(gameService)

	return &services{
		game:     gameService,
		sessions: sessionManager,
		hub:      hub,
		closers:  closers,
	}, nil
}

// buildResultSink combines every configured destination for finished runs.
// A nil sink means results are not handed off.
func buildResultSink(ctx context.Context, opts options) (engine.ResultSink, []func(context.Context) error, error) {
	var sinks results.MultiSink
	var closers []func(context.Context) error

	if opts.ResultsURL != "" {
		sinks = append(sinks, results.NewHTTPSubmitter(opts.ResultsURL, opts.ResultsToken))
		log.WithField("url", opts.ResultsURL).Info("submitting results over HTTP")
	}

	if opts.ResultsDir != "" {
		store, err := results.NewFileStore(opts.ResultsDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create results store: %w", err)
		}
		sinks = append(sinks, store)
		log.WithField("dir", opts.ResultsDir).Info("writing results to disk")
	}

	if opts.MongoURI != "" {
		client, err := results.ConnectMongo(ctx, opts.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		sinks = append(sinks, results.NewMongoStore(client, opts.MongoDB, "runs"))
		closers = append(closers, client.Disconnect)
		log.WithField("database", opts.MongoDB).Info("storing results in mongodb")
	}

	switch len(sinks) {
	case 0:
		log.Warn("no results destination configured, finished runs are not submitted")
		return nil, closers, nil
	case 1:
		return sinks[0], closers, nil
	}
	return sinks, closers, nil
}

// mcpHandler serves single JSON-RPC messages against the MCP server
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter combines the API server and the /mcp endpoint
func newRouter(svc *services, baseURL string) http.Handler {
	apiServer := api.NewServer(svc.game, svc.hub)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, opts options) error {
	log.WithFields(log.Fields{"version": Version, "mode": "server"}).Infof("starting %s", AppName)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := initializeServices(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	go svc.hub.Run(ctx)
	go sessionCleanupRoutine(ctx, svc.sessions)

	addr := opts.addr()
	mainRouter := newRouter(svc, fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     mainRouter,
		ReadTimeout: 15 * time.Second,
		// drive requests hold the connection for up to ten seconds
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Infof("HTTP server listening on %s", addr)
		log.Infof("REST API: http://%s/api", addr)
		log.Infof("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if opts.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, opts, mainRouter)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		cancel()
		wg.Wait()
		svc.close(context.Background())
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}
	cancel()

	wg.Wait()
	svc.close(shutdownCtx)
	log.Info("server stopped")
	return nil
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx is done
func runNgrokTunnel(ctx context.Context, opts options, handler http.Handler) {
	if opts.NgrokAuth == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	log.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if opts.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.NgrokDomain))
		log.WithField("domain", opts.NgrokDomain).Info("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.NgrokAuth))
	if err != nil {
		log.WithError(err).Error("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.WithError(err).Warn("failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.Infof("ngrok tunnel established: %s", ngrokURL)
	log.Infof("  REST API (ngrok): %s/api", ngrokURL)
	log.Infof("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.WithError(err).Error("ngrok server error")
	}
	log.Info("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the retention window.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(sessionCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				log.WithField("removed", removed).Info("cleaned up expired sessions")
			}
		}
	}
}

// externalAPIAvailable reports whether an API server answers at baseURL
func externalAPIAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:8080; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, opts options) error {
	// stdout carries the MCP protocol
	log.SetOutput(os.Stderr)

	baseURL := externalAPIURL
	log.Debugf("checking for external API server at %s", externalAPIURL)

	if externalAPIAvailable(externalAPIURL) {
		log.Infof("external API server found at %s, using it for MCP", externalAPIURL)
	} else {
		log.Info("no external API server found, starting internal HTTP server")

		svc, err := initializeServices(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.close(context.Background())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()
		baseURL = fmt.Sprintf("http://%s", internalAddr)

		go svc.hub.Run(ctx)
		go sessionCleanupRoutine(ctx, svc.sessions)

		httpServer := &http.Server{Handler: api.NewServer(svc.game, svc.hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		log.Infof("internal HTTP server on %s for MCP stdio", internalAddr)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.WithField("api", baseURL).Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
