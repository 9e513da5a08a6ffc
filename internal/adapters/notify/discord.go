package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/rsibot/internal/ports"
)

const (
	colorRed    = 0xE74C3C
	colorOrange = 0xE67E22
	colorBlue   = 0x3498DB
)

// Discord implementa ports.Alerter enviando embeds a un webhook.
// Sin URL configurada, Alert no hace nada.
type Discord struct {
	webhookURL string
	source     string
	client     *http.Client
}

var _ ports.Alerter = (*Discord)(nil)

// NewDiscord crea el alerter. source aparece en el pie de cada aviso.
func NewDiscord(webhookURL, source string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		source:     source,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled indica si hay webhook configurado.
func (d *Discord) Enabled() bool {
	return d.webhookURL != ""
}

type discordEmbed struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Footer      map[string]string `json:"footer,omitempty"`
	Timestamp   string            `json:"timestamp"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Alert publica un aviso. El color depende de la gravedad deducida del título.
func (d *Discord) Alert(ctx context.Context, title, message string) error {
	if !d.Enabled() {
		return nil
	}

	payload := discordPayload{Embeds: []discordEmbed{{
		Title:       title,
		Description: message,
		Color:       alertColor(title),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}}}
	if d.source != "" {
		payload.Embeds[0].Footer = map[string]string{"text": d.source}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify.Alert: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify.Alert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify.Alert: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify.Alert: discord returned status %d", resp.StatusCode)
	}
	return nil
}

func alertColor(title string) int {
	switch {
	case strings.Contains(title, "stop_loss"):
		return colorRed
	case strings.Contains(title, "lock"), strings.Contains(title, "timeout"):
		return colorOrange
	}
	return colorBlue
}
