package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/satishydv/meshaid-mvp/internal/protocol"
)

// Command is the text prefix that asks a gateway to relay a non-SOS message.
const Command = "/uplink"

const queueSize = 64

// Service relays SOS traffic and /uplink messages to a Discord webhook.
type Service struct {
	WebhookURL string
	client     *http.Client
	queue      chan protocol.Message
}

func NewService(url string) *Service {
	return &Service{
		WebhookURL: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		queue: make(chan protocol.Message, queueSize),
	}
}

// Handle queues msg for relay when it qualifies. It never blocks: with the
// queue full the message is dropped and logged.
func (s *Service) Handle(msg protocol.Message) {
	if !Qualifies(msg) {
		return
	}
	select {
	case s.queue <- msg:
	default:
		slog.Warn("Uplink queue full, dropping message", "id", msg.ID)
	}
}

// Qualifies reports whether msg should leave the mesh.
func Qualifies(msg protocol.Message) bool {
	return msg.Type == protocol.KindSOS || strings.HasPrefix(msg.Payload.Text, Command)
}

// Start runs the relay worker until ctx is done.
func (s *Service) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-s.queue:
				if err := s.post(ctx, msg); err != nil {
					slog.Error("Uplink failed", "id", msg.ID, "error", err)
					continue
				}
				slog.Info("Relayed to cloud", "id", msg.ID, "type", msg.Type)
			}
		}
	}()
}

func (s *Service) post(ctx context.Context, msg protocol.Message) error {
	body, err := json.Marshal(map[string]string{"content": Format(msg)})
	if err != nil {
		return fmt.Errorf("failed to marshal uplink payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// Format renders msg as a Discord markdown post.
func Format(msg protocol.Message) string {
	text := msg.Payload.Text
	if strings.HasPrefix(text, Command) {
		text = strings.TrimSpace(strings.TrimPrefix(text, Command))
	}

	location := "Unknown"
	switch loc := msg.Payload.Location; {
	case loc != nil:
		location = fmt.Sprintf("%.4f, %.4f\n[Open in Maps](https://maps.google.com/?q=%f,%f)", loc.Lat, loc.Lng, loc.Lat, loc.Lng)
	case msg.Payload.ManualLocation != "":
		location = msg.Payload.ManualLocation
	}

	label := string(msg.Type)
	if info, ok := msg.Type.Info(); ok {
		label = info.Label
	}

	return fmt.Sprintf("📡 **[MESH RELAY]**\n**Type:** %s\n**User:** %s\n**Message:** %s\n**Location:** %s",
		label,
		msg.Sender,
		text,
		location,
	)
}
