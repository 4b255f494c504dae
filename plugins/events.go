package plugins

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/linht/rf-manager/radio"
)

// EventMessage is one frame of the reception stream
type EventMessage struct {
	Type      string           `json:"type"`
	Reception *radio.Reception `json:"reception,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// wsUpgrade rejects non-websocket requests and checks the query token,
// since browsers cannot set headers on websocket requests
func (p *RadioPlugin) wsUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if p.tokenValidator != nil && !p.tokenValidator(c.Query("token")) {
		return c.Status(401).JSON(APIResponse{
			Success: false,
			Error:   "Unauthorized",
		})
	}
	return c.Next()
}

// handleWebSocket streams receptions to the client until it disconnects
func (p *RadioPlugin) handleWebSocket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		svc, err := p.Service()
		if err != nil {
			c.WriteJSON(EventMessage{Type: "error", Error: err.Error()})
			return
		}

		id, receptions := svc.Subscribe()
		defer svc.Unsubscribe(id)
		slog.Info("Reception stream opened", "subscriber", id, "remote", c.RemoteAddr())

		// The client only sends close frames; a read error ends the stream
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if err := c.WriteJSON(EventMessage{Type: "subscribed"}); err != nil {
			return
		}

		for {
			select {
			case <-closed:
				slog.Info("Reception stream closed", "subscriber", id)
				return
			case rx, ok := <-receptions:
				if !ok {
					return
				}
				if err := c.WriteJSON(EventMessage{Type: "reception", Reception: &rx}); err != nil {
					slog.Warn("Reception stream write failed", "subscriber", id, "error", err)
					return
				}
			}
		}
	})
}

// handleEvents streams receptions as server-sent events
func (p *RadioPlugin) handleEvents(c *fiber.Ctx) error {
	// EventSource can't use headers
	token := c.Query("token")
	if p.tokenValidator != nil && !p.tokenValidator(token) {
		return c.Status(401).JSON(APIResponse{
			Success: false,
			Error:   "Unauthorized",
		})
	}

	svc, err := p.Service()
	if err != nil {
		return SendRadioError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	id, receptions := svc.Subscribe()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer svc.Unsubscribe(id)

		ticker := time.NewTicker(eventKeepalive)
		defer ticker.Stop()

		if err := streamReceptions(w, receptions, ticker.C); err != nil {
			slog.Info("Event stream closed", "subscriber", id, "error", err)
		}
	})

	return nil
}

// eventKeepalive is the interval of comment lines on an idle event stream.
// A failed flush is the only sign that the client has gone.
const eventKeepalive = 15 * time.Second

// streamReceptions writes receptions as server-sent events until the
// channel closes or a flush fails
func streamReceptions(w *bufio.Writer, receptions <-chan radio.Reception, keepalive <-chan time.Time) error {
	for {
		select {
		case rx, ok := <-receptions:
			if !ok {
				return nil
			}
			data, err := json.Marshal(rx)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: reception\ndata: %s\n\n", data)
		case <-keepalive:
			w.WriteString(": keepalive\n\n")
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}
