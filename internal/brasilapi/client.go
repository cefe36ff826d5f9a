// Package brasilapi looks company registrations up by CNPJ in the public
// BrasilAPI registry.
package brasilapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Company is the registry record subset the enrichment step consumes.
type Company struct {
	RazaoSocial         string `json:"razao_social"`
	NomeFantasia        string `json:"nome_fantasia"`
	UF                  string `json:"uf"`
	CEP                 string `json:"cep"`
	Municipio           string `json:"municipio"`
	CodigoMunicipioIBGE *int   `json:"codigo_municipio_ibge"`
	Logradouro          string `json:"logradouro"`
	Numero              string `json:"numero"`
	Complemento         string `json:"complemento"`
	Bairro              string `json:"bairro"`
	Porte               string `json:"porte"`
	DataInicioAtividade string `json:"data_inicio_atividade"`
	CnaeFiscal          *int64 `json:"cnae_fiscal"`
	CnaeFiscalDescricao string `json:"cnae_fiscal_descricao"`
}

// Client queries the CNPJ endpoint. Every failure mode is a lookup miss:
// the registry is best-effort and enrichment decides what a miss means.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// New builds a client. baseURL defaults to the public BrasilAPI CNPJ v1
// endpoint when empty.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "https://brasilapi.com.br/api/cnpj/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		client:  httpClient,
		logger:  zap.L().With(zap.String("component", "brasilapi")),
	}
}

// Lookup fetches the registration for a 14-digit CNPJ. A miss (non-2xx,
// network error, undecodable body) returns (nil, nil); only a canceled
// context is an error.
func (c *Client) Lookup(ctx context.Context, cnpj string) (*Company, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, cnpj)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "brasilapi: build request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "brasilapi: lookup canceled")
		}
		c.logger.Debug("registry lookup failed", zap.String("cnpj", cnpj), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.Debug("registry miss",
			zap.String("cnpj", cnpj), zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var company Company
	if err := json.NewDecoder(resp.Body).Decode(&company); err != nil {
		c.logger.Debug("registry body undecodable", zap.String("cnpj", cnpj), zap.Error(err))
		return nil, nil
	}
	return &company, nil
}
