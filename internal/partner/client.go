// Package partner queries the upstream partner directory for registered
// company addresses.
package partner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/resilead/sinir-cli/internal/normalize"
)

// DefaultBaseURL is the production partner lookup endpoint.
const DefaultBaseURL = "https://mtr.sinir.gov.br/api/mtr"

// fallbackName fills the partner name when the directory omits it.
const fallbackName = "SINIR PARCEIRO"

// Address is one usable partner unit: a 14-digit company tax id with a
// non-empty registered address.
type Address struct {
	Unidade  string
	CpfCnpj  string
	Nome     string
	Endereco string
}

type response struct {
	Mensagem       string        `json:"mensagem"`
	ObjetoResposta []responseRow `json:"objetoResposta"`
	Erro           bool          `json:"erro"`
}

type responseRow struct {
	ParCodigo    json.Number `json:"parCodigo"`
	ParDescricao string      `json:"parDescricao"`
	JurCnpj      string      `json:"jurCnpj"`
	PaeEndereco  string      `json:"paeEndereco"`
}

// Client looks partner units up by company tax id.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// New builds a client; empty baseURL uses DefaultBaseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		client:  httpClient,
		logger:  zap.L().With(zap.String("component", "partner")),
	}
}

// Lookup returns the usable partner units for a CNPJ. Rows are deduped by
// partner code (first occurrence wins) and filtered down to entries with a
// 14-digit tax id and a non-empty address. A payload with the error flag
// set is a hard failure.
func (c *Client) Lookup(ctx context.Context, cnpj string) ([]Address, error) {
	url := fmt.Sprintf("%s/consultaParceiro/J/%s", c.baseURL, cnpj)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "partner: build request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "partner: lookup %s", cnpj)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("partner: lookup %s: status %d", cnpj, resp.StatusCode)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, eris.Wrapf(err, "partner: decode %s", cnpj)
	}
	if payload.Erro {
		return nil, eris.Errorf("partner: lookup %s: upstream error: %s", cnpj, payload.Mensagem)
	}

	seen := make(map[string]bool)
	var out []Address
	for _, row := range payload.ObjetoResposta {
		code := row.ParCodigo.String()
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		taxID := normalize.OnlyDigits(row.JurCnpj)
		endereco := strings.TrimSpace(row.PaeEndereco)
		if len(taxID) != 14 || endereco == "" {
			continue
		}
		nome := strings.TrimSpace(row.ParDescricao)
		if nome == "" {
			nome = fallbackName
		}
		out = append(out, Address{
			Unidade:  code,
			CpfCnpj:  taxID,
			Nome:     nome,
			Endereco: endereco,
		})
	}
	c.logger.Debug("partner lookup",
		zap.String("cnpj", cnpj),
		zap.Int("rows", len(payload.ObjetoResposta)),
		zap.Int("usable", len(out)))
	return out, nil
}
