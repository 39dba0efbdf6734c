// Package server orchestrates all components: NATS client, bridge runtime,
// connector, optional journal, invoke gateway, HTTP health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/intent-bridge/internal/config"
	"github.com/morezero/intent-bridge/pkg/bridge"
	"github.com/morezero/intent-bridge/pkg/commsutil"
	"github.com/morezero/intent-bridge/pkg/connector"
	"github.com/morezero/intent-bridge/pkg/did"
	"github.com/morezero/intent-bridge/pkg/gateway"
	"github.com/morezero/intent-bridge/pkg/hostcompat"
	"github.com/morezero/intent-bridge/pkg/intent"
	"github.com/morezero/intent-bridge/pkg/journal"
	"github.com/morezero/intent-bridge/pkg/metrics"
	"github.com/morezero/intent-bridge/pkg/response"
)

const logPrefix = "server:server"

const shutdownTimeout = 10 * time.Second

// Server is the intent-bridge orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	rt         *connector.Runtime
	gw         *gateway.Gateway
	invokeSub  *comms.Subscription
	httpServer *http.Server

	status *statusSource
}

// ConfigureLogging installs the default text logger at the given level.
func ConfigureLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	ConfigureLogging(cfg.LogLevel)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting intent-bridge", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}
	if err := s.start(ctx); err != nil {
		s.close()
		return err
	}

	slog.Info(fmt.Sprintf("%s - intent-bridge is ready", logPrefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	s.close()
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// start brings components up in dependency order. On error the caller closes
// whatever was started.
func (s *Server) start(ctx context.Context) error {
	cfg := s.cfg

	// Step 1: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.nc = nc

	// Step 2: Optional dispatch journal
	journalObserver, repo, err := s.openJournal(ctx)
	if err != nil {
		return err
	}

	// Step 3: Metrics, runtime and connector
	collector, err := metrics.NewCollector()
	if err != nil {
		return fmt.Errorf("%s - failed to create metrics: %w", logPrefix, err)
	}
	codec, err := commsutil.CodecByName(cfg.Codec)
	if err != nil {
		return fmt.Errorf("%s - %w", logPrefix, err)
	}
	channel := bridge.NewCommsChannel(nc, bridge.CommsChannelOpts{
		RequestSubject:  cfg.BridgeRequestSubject(),
		ResponseSubject: cfg.BridgeResponseSubject(),
	})
	rt, err := connector.NewRuntime(connector.RuntimeParams{
		Channel:   channel,
		Codec:     codec,
		Observers: []intent.Observer{collector, journalObserver},
	})
	if err != nil {
		return fmt.Errorf("%s - failed to create runtime: %w", logPrefix, err)
	}
	s.rt = rt
	if err := collector.RegisterRuntimeGauges(rt.Bridge.Pending, rt.InFlight.Len); err != nil {
		return fmt.Errorf("%s - failed to register runtime gauges: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Bridge to %s on %s (codec %s)", logPrefix, cfg.HostName, cfg.BridgeRequestSubject(), codec.Name()))

	conn := connector.New(rt)
	if err := conn.Configure(connector.ModuleRefs{Identity: did.StaticIdentity(cfg.ApplicationDID)}); err != nil {
		return fmt.Errorf("%s - failed to configure connector: %w", logPrefix, err)
	}
	conn.RegisterResponseHandler(response.NewCommsHandler(nc, cfg.BridgeResultSubject()))

	// Step 4: Host compatibility handshake
	var hostInfo *hostcompat.HostInfo
	if cfg.HostVersionConstraint != "" {
		hsCtx, hsCancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
		hostInfo, err = hostcompat.Check(hsCtx, rt.Bridge, cfg.HostVersionConstraint)
		hsCancel()
		if err != nil {
			return fmt.Errorf("%s - host handshake failed: %w", logPrefix, err)
		}
	}

	// Step 5: Invoke gateway
	gw := gateway.NewGateway(gateway.NewGatewayParams{
		Facade:        conn,
		Observer:      collector,
		InvokeTimeout: cfg.InvokeTimeout,
	})
	s.gw = gw
	invokeSubject := cfg.BridgeInvokeSubject()
	sub, err := nc.Subscribe(invokeSubject, gw.MessageHandler(ctx))
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, invokeSubject, err)
	}
	s.invokeSub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, invokeSubject))

	// Step 6: HTTP health, status and metrics
	s.status = &statusSource{
		comms:       nc,
		pending:     rt.Bridge,
		flows:       rt.InFlight,
		sink:        rt.Sink,
		facade:      conn,
		hostInfo:    hostInfo,
		subjects:    subjectsOf(cfg),
		pingTimeout: cfg.HealthCheckTimeout,
	}
	if repo != nil {
		s.status.journal = repo
	}
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.routes(collector.Handler())}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()
	return nil
}

// openJournal connects the journal when DATABASE_URL is set. Without it the
// returned observer is a no-op and the repository is nil.
func (s *Server) openJournal(ctx context.Context) (intent.Observer, *journal.Repository, error) {
	cfg := s.cfg
	if !cfg.JournalEnabled() {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, dispatch journal disabled", logPrefix))
		return journal.NoOpObserver{}, nil, nil
	}

	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool

	if cfg.RunMigrations {
		migrationSQL, err := journal.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			return nil, nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := journal.RunMigrations(ctx, pool, migrationSQL); err != nil {
			return nil, nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}

	repo := journal.NewRepository(pool)
	slog.Info(fmt.Sprintf("%s - Dispatch journal enabled", logPrefix))
	return journal.NewObserver(journal.NewObserverParams{Store: repo}), repo, nil
}

// close tears down in reverse order. Safe on a partially started server.
func (s *Server) close() {
	if s.invokeSub != nil {
		if err := s.invokeSub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe failed: %v", logPrefix, err))
		}
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
		cancel()
	}
	// Closing the runtime rejects pending host requests, which releases
	// invocations still being served before the connection drains.
	if s.rt != nil {
		if err := s.rt.Close(); err != nil {
			slog.Warn(fmt.Sprintf("%s - %v", logPrefix, err))
		}
	}
	if s.gw != nil {
		s.gw.Wait()
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - NATS drain failed: %v", logPrefix, err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func subjectsOf(cfg *config.Config) Subjects {
	return Subjects{
		Request:  cfg.BridgeRequestSubject(),
		Response: cfg.BridgeResponseSubject(),
		Invoke:   cfg.BridgeInvokeSubject(),
		Result:   cfg.BridgeResultSubject(),
	}
}
