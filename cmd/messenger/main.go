package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Arisha-27/KalaSetu/internal/config"
	cacheadapter "github.com/Arisha-27/KalaSetu/internal/infrastructure/cache/adapter"
	"github.com/Arisha-27/KalaSetu/internal/infrastructure/database"
	"github.com/Arisha-27/KalaSetu/internal/infrastructure/realtime"
	"github.com/Arisha-27/KalaSetu/internal/observability"
	messenger "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/domain"
	"github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/session"
	"github.com/Arisha-27/KalaSetu/internal/pkg/messenger/application/usecase"
	repoadapter "github.com/Arisha-27/KalaSetu/internal/pkg/messenger/persistence/repository/adapter"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.Load()
	logger := observability.WithComponent("messenger")

	if cfg.ParticipantID == "" || cfg.ConversationID == "" {
		log.Fatal("KALASETU_USER_ID and KALASETU_CONVERSATION_ID must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := buildHistoryLoader(ctx, cfg, logger)

	sess, err := session.New(session.Config{
		ConversationID: cfg.ConversationID,
		ParticipantID:  cfg.ParticipantID,
		Role:           messenger.Role(cfg.Role),
		Loader:         loader,
	})
	if err != nil {
		log.Fatalf("cannot start session: %v", err)
	}
	defer sess.Close()

	dispose := sess.Subscribe(renderUpdate(sess))
	defer dispose()

	dial := func(ctx context.Context) (session.LiveChannel, error) {
		ch := realtime.NewChannel(cfg.GatewayURL, cfg.ParticipantID, nil)
		if err := ch.Connect(ctx); err != nil {
			return nil, err
		}
		return ch, nil
	}
	sv := session.NewSupervisor(sess, dial, 0, 0)
	go func() {
		if err := sv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("supervisor stopped", "error", err)
		}
	}()

	runInputLoop(ctx, sess, stop)
}

// buildHistoryLoader wires the durable-log read path: Postgres when DB_URL is
// set, an empty in-memory log otherwise, with an optional redis snapshot
// cache on top.
func buildHistoryLoader(ctx context.Context, cfg *config.Config, logger *slog.Logger) *usecase.LoadHistoryUseCase {
	var uc *usecase.LoadHistoryUseCase
	if os.Getenv("DB_URL") != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := database.NewPoolFromEnv(dbCtx)
		cancel()
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		uc = usecase.NewLoadHistoryUseCase(repoadapter.NewPgHistoryRepository(pool))
	} else {
		logger.Warn("DB_URL not set, starting with empty history")
		uc = usecase.NewLoadHistoryUseCase(repoadapter.NewMemoryHistoryRepository())
	}

	if os.Getenv("REDIS_URL") != "" {
		cache, err := cacheadapter.NewRedisAdapter()
		if err != nil {
			logger.Warn("redis unavailable, history snapshots disabled", "error", err)
		} else {
			uc.WithCache(cache, cfg.HistoryCacheTTL)
		}
	}
	return uc
}

// renderUpdate prints session changes. Alignment is decided only by comparing
// the sender against the local participant, never by origin.
func renderUpdate(sess *session.Session) func(session.Update) {
	return func(u session.Update) {
		switch u.Kind {
		case session.UpdateTimeline:
			msgs := sess.Messages()
			if len(msgs) == 0 {
				return
			}
			last := msgs[len(msgs)-1]
			who := "them"
			if last.SenderID == sess.ParticipantID() {
				who = "you"
			}
			fmt.Printf("[%s] %s> %s\n", last.CreatedAt.Local().Format("15:04"), who, last.Text)
		case session.UpdateSuggestion:
			if text, ok := sess.Suggestion(); ok {
				fmt.Printf("(AI suggestion: %s, type /accept to use it)\n", text)
			}
		case session.UpdateConnection:
			fmt.Printf("(connection: %s)\n", sess.ConnectionState())
		}
	}
}

func runInputLoop(ctx context.Context, sess *session.Session, stop func()) {
	comp := sess.Composer()
	fmt.Println("KalaSetu messenger. Type a message and press enter; /accept takes the AI suggestion; /quit exits.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			stop()
			return
		case "/accept":
			if comp.AcceptSuggestion() {
				fmt.Printf("draft: %s\n", comp.Draft())
			} else {
				fmt.Println("no suggestion pending")
			}
		default:
			comp.SetDraft(line)
			if err := comp.Send(); err != nil {
				fmt.Printf("not sent: %v\n", err)
			}
		}
	}
}
