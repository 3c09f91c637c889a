package sgcsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal SGC HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v0",
		Timeout:  10 * time.Second,
	}
}

type Processo struct {
	ID              int64      `json:"id"`
	Descricao       string     `json:"descricao"`
	Tipo            string     `json:"tipo"`
	Situacao        string     `json:"situacao"`
	DataLimite      time.Time  `json:"data_limite"`
	DataFinalizacao *time.Time `json:"data_finalizacao,omitempty"`
}

type Movimentacao struct {
	ID             int64     `json:"id"`
	UnidadeOrigem  string    `json:"unidade_origem"`
	UnidadeDestino string    `json:"unidade_destino"`
	Descricao      string    `json:"descricao"`
	DataHora       time.Time `json:"data_hora"`
}

type Analise struct {
	ID          int64     `json:"id"`
	Unidade     string    `json:"unidade"`
	Acao        string    `json:"acao"`
	Observacoes string    `json:"observacoes,omitempty"`
	DataHora    time.Time `json:"data_hora"`
}

// Subprocesso is the per-unit workflow record (partial).
type Subprocesso struct {
	ID              int64          `json:"id"`
	ProcessoID      int64          `json:"processo_id"`
	Unidade         string         `json:"unidade"`
	UnidadeAtual    string         `json:"unidade_atual"`
	UnidadeAnterior *string        `json:"unidade_anterior,omitempty"`
	Situacao        string         `json:"situacao"`
	Analises        []Analise      `json:"analises,omitempty"`
	Movimentacoes   []Movimentacao `json:"movimentacoes,omitempty"`
}

type Alerta struct {
	ID             int64     `json:"id"`
	ProcessoID     int64     `json:"processo_id"`
	UnidadeOrigem  string    `json:"unidade_origem"`
	UnidadeDestino string    `json:"unidade_destino"`
	Descricao      string    `json:"descricao"`
	DataHora       time.Time `json:"data_hora"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProcessoID *int64 `json:"processo_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type ResultadoBloco struct {
	Processadas []Subprocesso `json:"processadas"`
	Ignoradas   []struct {
		Unidade string `json:"unidade"`
		Motivo  string `json:"motivo"`
	} `json:"ignoradas"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DevLogin mints a token on servers started with dev login enabled and
// stores it on the client.
func (c *Client) DevLogin(ctx context.Context, actorID, perfil, unidade string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "auth/dev/login", map[string]any{
		"actor_id": actorID,
		"perfil":   perfil,
		"unidade":  unidade,
	}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp.Token, err
}

// CriarProcesso creates a processo for the given units.
func (c *Client) CriarProcesso(ctx context.Context, descricao, tipo string, dataLimite time.Time, unidades []string) (Processo, error) {
	var resp Processo
	err := c.do(ctx, http.MethodPost, "processos", map[string]any{
		"descricao":   descricao,
		"tipo":        tipo,
		"data_limite": dataLimite,
		"unidades":    unidades,
	}, &resp)
	return resp, err
}

func (c *Client) Processo(ctx context.Context, id int64) (Processo, error) {
	var resp Processo
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("processos/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) IniciarProcesso(ctx context.Context, id int64) (Processo, error) {
	var resp Processo
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("processos/%d/iniciar", id), nil, &resp)
	return resp, err
}

// FinalizarProcesso reports found=false for unknown processos.
func (c *Client) FinalizarProcesso(ctx context.Context, id int64) (proc Processo, found bool, err error) {
	var resp struct {
		Encontrado bool      `json:"encontrado"`
		Processo   *Processo `json:"processo"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("processos/%d/finalizar", id), nil, &resp); err != nil {
		return proc, false, err
	}
	if resp.Processo != nil {
		proc = *resp.Processo
	}
	return proc, resp.Encontrado, nil
}

func (c *Client) Subprocesso(ctx context.Context, processoID int64, unidade string) (Subprocesso, error) {
	var resp Subprocesso
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("processos/%d/unidades/%s", processoID, url.PathEscape(unidade)), nil, &resp)
	return resp, err
}

// Transicao posts a subprocesso action such as "cadastro/aceitar" or
// "mapa/rejeitar" on behalf of unidade.
func (c *Client) Transicao(ctx context.Context, processoID int64, unidade, acao string, body map[string]any) (Subprocesso, error) {
	if body == nil {
		body = map[string]any{}
	}
	var resp Subprocesso
	endpoint := fmt.Sprintf("processos/%d/unidades/%s/%s", processoID, url.PathEscape(unidade), strings.Trim(acao, "/"))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

func (c *Client) DisponibilizarCadastro(ctx context.Context, processoID int64, unidade string) (Subprocesso, error) {
	return c.Transicao(ctx, processoID, unidade, "cadastro/disponibilizar", nil)
}

func (c *Client) AceitarCadastro(ctx context.Context, processoID int64, unidade, observacoes string) (Subprocesso, error) {
	return c.Transicao(ctx, processoID, unidade, "cadastro/aceitar", map[string]any{"observacoes": observacoes})
}

func (c *Client) HomologarCadastro(ctx context.Context, processoID int64, unidade, observacoes string) (Subprocesso, error) {
	return c.Transicao(ctx, processoID, unidade, "cadastro/homologar", map[string]any{"observacoes": observacoes})
}

func (c *Client) AceitarMapa(ctx context.Context, processoID int64, unidade string) (Subprocesso, error) {
	return c.Transicao(ctx, processoID, unidade, "mapa/aceitar", nil)
}

func (c *Client) RejeitarMapa(ctx context.Context, processoID int64, unidade, observacoes string) (Subprocesso, error) {
	return c.Transicao(ctx, processoID, unidade, "mapa/rejeitar", map[string]any{"observacoes": observacoes})
}

// CadastroBloco accepts ("aceitar") or homologates ("homologar") several
// cadastros at once.
func (c *Client) CadastroBloco(ctx context.Context, processoID int64, tipoAcao string, unidades []string) (ResultadoBloco, error) {
	var resp ResultadoBloco
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("processos/%d/cadastro/bloco", processoID), map[string]any{
		"tipo_acao": tipoAcao,
		"unidades":  unidades,
	}, &resp)
	return resp, err
}

// MapaBloco publishes ("disponibilizar"), accepts ("aceitar") or homologates
// ("homologar") several maps at once. dataLimite is only sent when set.
func (c *Client) MapaBloco(ctx context.Context, processoID int64, tipoAcao string, unidades []string, dataLimite time.Time) (ResultadoBloco, error) {
	body := map[string]any{
		"tipo_acao": tipoAcao,
		"unidades":  unidades,
	}
	if !dataLimite.IsZero() {
		body["data_limite"] = dataLimite
	}
	var resp ResultadoBloco
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("processos/%d/mapa/bloco", processoID), body, &resp)
	return resp, err
}

func (c *Client) EnviarLembrete(ctx context.Context, processoID int64, unidade string) (Alerta, error) {
	var resp Alerta
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("processos/%d/unidades/%s/lembrete", processoID, url.PathEscape(unidade)), nil, &resp)
	return resp, err
}

func (c *Client) Alertas(ctx context.Context, processoID int64) ([]Alerta, error) {
	endpoint := "alertas"
	if processoID > 0 {
		endpoint = fmt.Sprintf("%s?processo_id=%d", endpoint, processoID)
	}
	var resp []Alerta
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) url(endpoint string) string {
	parts := []string{strings.TrimRight(c.BaseURL, "/")}
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, strings.TrimLeft(endpoint, "/"))
	return strings.Join(parts, "/")
}
