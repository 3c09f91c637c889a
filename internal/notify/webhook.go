package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sgc/internal/domain"
)

const defaultTimeout = 5 * time.Second

// Webhook posts each notification as JSON to a mail relay endpoint.
type Webhook struct {
	URL       string
	Remetente string
	Client    *http.Client
}

func NewWebhook(url, remetente string, timeout time.Duration) Webhook {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Webhook{URL: url, Remetente: remetente, Client: &http.Client{Timeout: timeout}}
}

type webhookBody struct {
	ID           string `json:"id"`
	Remetente    string `json:"remetente,omitempty"`
	Destinatario string `json:"destinatario"`
	Assunto      string `json:"assunto"`
	Corpo        string `json:"corpo"`
}

func (w Webhook) Notify(ctx context.Context, n domain.Notificacao) error {
	data, err := json.Marshal(webhookBody{
		ID:           n.ID,
		Remetente:    w.Remetente,
		Destinatario: n.Destinatario,
		Assunto:      n.Assunto,
		Corpo:        n.Corpo,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SGC-Notificacao", n.ID)
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
