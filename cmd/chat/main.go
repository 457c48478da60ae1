// Command chat is a terminal chat client against a running areachat
// service: log in, open the company channel or a private channel, type
// to send. Mostly a development tool for exercising the realtime layer
// end to end.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lalith-99/areachat/internal/auth"
	"github.com/lalith-99/areachat/internal/chat"
	"github.com/lalith-99/areachat/internal/config"
	"github.com/lalith-99/areachat/internal/history"
	"github.com/lalith-99/areachat/internal/models"
	"github.com/lalith-99/areachat/internal/observ"
	"github.com/lalith-99/areachat/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var (
		backend  = flag.String("backend", cfg.BackendURL, "REST base URL")
		socket   = flag.String("socket", cfg.SocketURL, "websocket URL")
		email    = flag.String("email", "", "login email")
		password = flag.String("password", "", "login password")
		with     = flag.String("with", "", "counterpart id for a private chat (empty: company channel)")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		return fmt.Errorf("-email and -password are required")
	}

	logger, err := observ.NewLogger(cfg.Env, "warn")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	token, user, err := login(*backend, *email, *password)
	if err != nil {
		return err
	}
	sctx := auth.SessionContext{
		ParticipantID: user.ID,
		Name:          user.Name,
		Role:          user.Role,
		CompanyScope:  user.CompanyID,
	}

	deps := chat.Deps{
		Dialer:  session.NewWebsocketDialer(*socket),
		History: history.NewClient(*backend, logger),
		Logger:  logger,
	}
	opts := chat.Options{Reconnect: chat.DefaultReconnectPolicy()}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if *with != "" {
		return runPrivate(ctx, deps, sctx, token, models.ID(*with), opts)
	}
	return runGlobal(ctx, deps, sctx, token, opts)
}

func runGlobal(ctx context.Context, deps chat.Deps, sctx auth.SessionContext, token string, opts chat.Options) error {
	surface, err := chat.OpenGlobal(ctx, deps, sctx, token, opts)
	if err != nil {
		return fmt.Errorf("open company channel: %w", err)
	}
	defer surface.Close()

	surface.OnStateChange(func(s chat.State) {
		fmt.Printf("-- connection %s --\n", s)
	})
	surface.OnMessage(func(m models.Message) {
		printLive(m, sctx.ParticipantID)
	})

	printBacklog(surface.Timeline().Messages(), sctx.ParticipantID)
	fmt.Printf("[%s] connected to company channel, %d online. Type and press enter.\n",
		sctx.Name, surface.Tracker().OnlineCount())

	return inputLoop(surface.Input, surface.Send)
}

func runPrivate(ctx context.Context, deps chat.Deps, sctx auth.SessionContext, token string, other models.ID, opts chat.Options) error {
	surface, err := chat.OpenPrivate(ctx, deps, sctx, token, other, opts)
	if err != nil {
		return fmt.Errorf("open private channel: %w", err)
	}
	defer surface.Close()

	surface.OnStateChange(func(s chat.State) {
		fmt.Printf("-- connection %s --\n", s)
	})
	surface.OnMessage(func(m models.Message) {
		printLive(m, sctx.ParticipantID)
	})

	printBacklog(surface.Timeline().Messages(), sctx.ParticipantID)
	status := "offline"
	if surface.CounterpartOnline() {
		status = "online"
	}
	fmt.Printf("[%s] private chat with %s (%s). Type and press enter.\n", sctx.Name, other, status)

	return inputLoop(surface.Input, surface.Send)
}

func inputLoop(input func(string), send func(string) error) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		input(line)
		if line == "" {
			continue
		}
		if err := send(line); err != nil {
			fmt.Printf("-- send failed: %v --\n", err)
		}
	}
	return scanner.Err()
}

func printLive(m models.Message, localID models.ID) {
	if m.SentBy(localID) {
		return // own echo, already on screen as the typed line
	}
	fmt.Printf("%s %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.Sender.Name, m.Body)
}

func printBacklog(msgs []models.Message, localID models.ID) {
	for _, m := range msgs {
		name := m.Sender.Name
		if m.SentBy(localID) {
			name = "you"
		}
		fmt.Printf("%s %s: %s\n", m.CreatedAt.Local().Format("15:04"), name, m.Body)
	}
}

func login(backend, email, password string) (string, *models.User, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", nil, fmt.Errorf("encode login: %w", err)
	}

	resp, err := http.Post(backend+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("login rejected: status %d", resp.StatusCode)
	}

	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, fmt.Errorf("decode login response: %w", err)
	}
	return out.Token, &out.User, nil
}
