package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// webhookClient posts to a Discord webhook, optionally overriding the
// displayed author with the bot's in-game name.
type webhookClient struct {
	url      string
	username string
	client   *http.Client
}

func newWebhookClient(url, username string) *webhookClient {
	return &webhookClient{
		url:      strings.TrimSpace(url),
		username: strings.TrimSpace(username),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *webhookClient) Send(ctx context.Context, content string) error {
	return w.post(ctx, &discordgo.WebhookParams{Content: content})
}

func (w *webhookClient) SendEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error {
	return w.post(ctx, &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}})
}

// post sends params as multipart form. Plain text goes in form fields; once
// embeds are present Discord only reads payload_json, so every field moves there.
func (w *webhookClient) post(ctx context.Context, params *discordgo.WebhookParams) error {
	params.Username = w.username

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writeWebhookFields(writer, params); err != nil {
		writer.Close()
		return err
	}

	contentType := writer.FormDataContentType()
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &body)
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return nil
}

func writeWebhookFields(writer *multipart.Writer, params *discordgo.WebhookParams) error {
	if len(params.Embeds) > 0 {
		payload, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to serialize webhook payload: %w", err)
		}
		if err := writer.WriteField("payload_json", string(payload)); err != nil {
			return fmt.Errorf("failed to prepare webhook payload: %w", err)
		}
		return nil
	}

	if err := writer.WriteField("content", params.Content); err != nil {
		return fmt.Errorf("failed to prepare webhook content: %w", err)
	}
	if params.Username != "" {
		if err := writer.WriteField("username", params.Username); err != nil {
			return fmt.Errorf("failed to prepare webhook username: %w", err)
		}
	}
	return nil
}
