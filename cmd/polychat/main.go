package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gorm.io/gorm/logger"

	"polychat/internal/config"
	"polychat/internal/database"
	"polychat/internal/events"
	"polychat/internal/repositories"
	"polychat/internal/retry"
	"polychat/internal/services"
	"polychat/internal/utils"
)

func main() {
	if err := utils.LoadEnv(); err != nil {
		log.Printf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := logger.Warn
	if cfg.LogSQL {
		logLevel = logger.Info
	}
	db, err := database.Init(database.Config{Path: cfg.DBPath, LogLevel: logLevel})
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configRepo := repositories.NewModelConfigRepository(db)
	sessionRepo := repositories.NewChatSessionRepository(db)
	keyringSvc := services.NewKeyringService()

	configSvc := services.NewConfigService(configRepo, keyringSvc, nil)
	sessionSvc := services.NewSessionService(sessionRepo, configRepo)

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	chatSvc := services.NewChatService(sessionRepo, configSvc, services.WithRetryPolicy(policy))

	configSvc.Startup(ctx)
	sessionSvc.Startup(ctx)
	chatSvc.Startup(ctx)

	done := make(chan string, 1)
	events.SetEmitter(func(ctx context.Context, evt events.StreamEvent) {
		switch evt.Type {
		case events.StreamChunk:
			fmt.Print(evt.Chunk)
		case events.StreamEnd:
			fmt.Println()
			done <- evt.MessageID
		case events.StreamError:
			fmt.Println("\nerror: " + evt.Message)
			done <- evt.MessageID
		}
	})

	if err := run(ctx, configSvc, sessionSvc, chatSvc, done); err != nil {
		log.Fatal(err)
	}
}

// run is a minimal driver standing in for the UI layer.
func run(ctx context.Context, configSvc services.ConfigService, sessionSvc services.SessionService, chatSvc services.ChatService, done <-chan string) error {
	configs, err := configSvc.List()
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return fmt.Errorf("no model configs; create one first")
	}

	session, err := sessionSvc.NewSession("")
	if err != nil {
		return err
	}
	fmt.Printf("session %s (config %s). /new, /configs, /use <id>, /regen, /quit\n", session.ID, session.ConfigID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/new":
			session, err = sessionSvc.NewSession("")
			if err != nil {
				return err
			}
			fmt.Printf("session %s\n", session.ID)
		case line == "/configs":
			list, err := configSvc.List()
			if err != nil {
				return err
			}
			for _, c := range list {
				marker := " "
				if c.IsDefault {
					marker = "*"
				}
				fmt.Printf("%s %s  %s (%s/%s)\n", marker, c.ID, c.Name, c.Provider, c.ModelName)
			}
		case strings.HasPrefix(line, "/use "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/use "))
			if err := chatSvc.SwitchSessionConfig(session.ID, id); err != nil {
				fmt.Println("switch:", err)
			}
		case line == "/regen":
			if err := chatSvc.RegenerateLastResponse(session.ID); err != nil {
				fmt.Println("regen:", err)
				continue
			}
			awaitTurn(ctx, chatSvc, session.ID, done)
		default:
			if _, err := chatSvc.SendMessage(session.ID, line, nil, nil); err != nil {
				fmt.Println("send:", err)
				continue
			}
			awaitTurn(ctx, chatSvc, session.ID, done)
		}
	}
}

func awaitTurn(ctx context.Context, chatSvc services.ChatService, sessionID string, done <-chan string) {
	select {
	case <-done:
	case <-ctx.Done():
		chatSvc.CancelStream(sessionID)
		<-done
	}
}
