// Package relay provides the chat relay server. It accepts a conversation on
// POST /api/chat, composes one upstream request for the configured provider
// and streams the provider's answer back as server-sent events.
//
//	Client <--> Relay <--> Upstream LLM Provider
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
)

// Relay is the chat relay server.
type Relay struct {
	config     Config
	provider   provider.Provider
	logger     *slog.Logger
	httpClient *http.Client
	server     *fiber.App

	// newID and now stamp translated chunks.
	newID func() string
	now   func() time.Time
}

// New creates a new Relay. The provider for the configured wire shape is
// resolved once here.
func New(config Config, logger *slog.Logger) (*Relay, error) {
	if config.Profile.Shape == "" {
		return nil, errors.New("wire shape is required")
	}

	prov, err := provider.New(config.Profile.Shape)
	if err != nil {
		return nil, fmt.Errorf("could not create provider: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// The timeout covers connecting and waiting for response headers only;
	// a streamed body lasts as long as the turn's context.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.timeout()

	r := &Relay{
		config:   config,
		provider: prov,
		logger:   logger,
		server:   app,
		httpClient: &http.Client{
			Transport: transport,
		},
		newID: func() string { return "chatcmpl-" + uuid.NewString() },
		now:   time.Now,
	}

	app.Get("/healthz", r.handleHealth)
	app.Post("/api/chat", r.handleChat)
	app.All("/api", r.handleNotFound)
	app.All("/api/*", r.handleNotFound)
	app.Get("/*", indexHandler())

	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"upstream", r.config.Profile.String(),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"upstream", r.config.Profile.String(),
	)

	return r.server.Listener(listener)
}

// Close gracefully shuts down the relay server.
func (r *Relay) Close() error {
	return r.server.Shutdown()
}

func (r *Relay) handleHealth(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func (r *Relay) handleNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "not found"})
}

// handleChat normalizes the inbound conversation and streams one turn.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		r.logger.Debug("rejecting chat request", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	messages := r.Messages(req.History, req.Text)
	r.logger.Debug("relaying chat turn",
		"shape", r.config.Profile.Shape,
		"message_count", len(messages),
	)

	c.Set(fiber.HeaderContentType, "text/event-stream; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache, no-transform")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The stream outlives the handler: fasthttp recycles its RequestCtx once
	// the handler returns, so the upstream call gets its own context and is
	// torn down when the pipe reader is closed by a client disconnect.
	//
	// pw.Write blocks until fasthttp consumes the chunk and flushes it to the
	// socket, which gives per-frame streaming with backpressure.
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		if err := r.Stream(context.Background(), messages, pw); err != nil {
			r.logger.Debug("chat turn ended with error", "error", err)
		}
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// Messages builds the canonical conversation for one turn. When the history
// is empty a non-empty text is sent as a single user message.
func (r *Relay) Messages(history json.RawMessage, text string) []llm.Message {
	entries := llm.DecodeHistory(history)
	if len(entries) == 0 && text != "" {
		messages := llm.Normalize(nil, r.config.SystemPrompt)
		return append(messages, llm.NewTextMessage(llm.RoleUser, text))
	}
	return llm.Normalize(entries, r.config.SystemPrompt)
}
