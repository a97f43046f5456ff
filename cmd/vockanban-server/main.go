package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	server "github.com/vocautobot/vockanban/internal"
	"github.com/vocautobot/vockanban/internal/board"
	"github.com/vocautobot/vockanban/internal/config"
	"github.com/vocautobot/vockanban/internal/eventbus"
	"github.com/vocautobot/vockanban/internal/kanban"
	"github.com/vocautobot/vockanban/internal/vocapi"
	"github.com/vocautobot/vockanban/pkg/clog"
)

const sessionSweepInterval = time.Minute

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr,
			clog.WithLevel(level),
			clog.WithColor(os.Getenv("NO_COLOR") == ""),
			clog.WithLeadKeys(clog.ConnectLeadKeys...),
		)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup VOC backend client
	api := vocapi.New(env.BackendEnv.URL,
		vocapi.WithToken(env.BackendEnv.Token),
		vocapi.WithPageSize(env.ListPageSize),
		vocapi.WithTimeout(env.BackendEnv.Timeout),
	)

	// Setup event bus
	bus := eventbus.New()

	// Setup board
	engine := kanban.NewEngine(kanban.NewStore(), api,
		kanban.WithTimeout(env.TransitionTimeout),
		kanban.WithOrderedCalls(env.OrderedCalls),
		kanban.WithPublisher(bus),
		kanban.WithLogger(slog.Default()),
	)
	b := kanban.NewBoard(engine, api,
		kanban.WithLockTerminal(env.LockTerminal),
		kanban.WithRefreshOnConflict(env.RefreshOnConflict),
		kanban.WithBoardPublisher(bus),
		kanban.WithBoardLogger(slog.Default()),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// An unreachable backend leaves the board empty until the next Refresh.
	if _, err := b.Refresh(ctx); err != nil {
		slog.Warn("failed to load tickets", "backend", env.BackendEnv.URL, "error", err)
	}

	sessions := board.NewSessionRegistry(b.NewSession)
	boardServer := board.NewServer(b, sessions, bus)
	srv := server.NewServer(env, boardServer)

	if env.Relay == config.EventRelayRedis {
		rdb := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
		defer rdb.Close()
		relay := eventbus.NewRedisRelay(rdb, env.RedisChannel, bus)
		go func() {
			if err := relay.Run(ctx); err != nil {
				slog.Error("event relay stopped", "error", err)
			}
		}()
	}

	var journalDone chan struct{}
	if env.JournalDir != "" {
		journal, err := eventbus.NewJournal(env.JournalDir)
		if err != nil {
			slog.Error("failed to open event journal", "error", err)
			os.Exit(1)
		}
		// The journal outlives the signal so that reconciliations finishing
		// during shutdown are still recorded; bus.Close ends it.
		journalDone = make(chan struct{})
		go func() {
			defer close(journalDone)
			journal.Run(context.WithoutCancel(ctx), bus)
		}()
	}

	go boardServer.SweepSessions(ctx, sessionSweepInterval, env.SessionIdle)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// Let in-flight status changes reconcile before exiting.
	slog.Info("waiting for pending transitions", "tickets", len(engine.PendingTickets()))
	engine.Wait()
	bus.Close()
	if journalDone != nil {
		<-journalDone
	}
}
