package partner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupFiltersAndDedupes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/consultaParceiro/J/12345678000190", r.URL.Path)
		w.Write([]byte(`{
			"mensagem": "",
			"erro": false,
			"objetoResposta": [
				{"parCodigo": 101, "parDescricao": "UNIDADE CENTRO", "jurCnpj": "12.345.678/0001-90", "paeEndereco": "RUA A, 10"},
				{"parCodigo": 101, "parDescricao": "DUPLICATA", "jurCnpj": "12.345.678/0001-90", "paeEndereco": "RUA B, 20"},
				{"parCodigo": 102, "parDescricao": "", "jurCnpj": "12345678000190", "paeEndereco": "RUA C, 30"},
				{"parCodigo": 103, "parDescricao": "SEM ENDERECO", "jurCnpj": "12345678000190", "paeEndereco": "  "},
				{"parCodigo": 104, "parDescricao": "CPF", "jurCnpj": "12345678901", "paeEndereco": "RUA D, 40"}
			]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	addrs, err := c.Lookup(context.Background(), "12345678000190")
	require.NoError(t, err)
	require.Len(t, addrs, 2)

	assert.Equal(t, "101", addrs[0].Unidade)
	assert.Equal(t, "UNIDADE CENTRO", addrs[0].Nome)
	assert.Equal(t, "12345678000190", addrs[0].CpfCnpj)
	assert.Equal(t, "RUA A, 10", addrs[0].Endereco)

	assert.Equal(t, "102", addrs[1].Unidade)
	assert.Equal(t, "SINIR PARCEIRO", addrs[1].Nome)
}

func TestLookupUpstreamErrorFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mensagem": "parceiro inválido", "erro": true, "objetoResposta": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Lookup(context.Background(), "12345678000190")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parceiro inválido")
}

func TestLookupNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Lookup(context.Background(), "12345678000190")
	assert.Error(t, err)
}

func TestLookupEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mensagem": "", "erro": false, "objetoResposta": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	addrs, err := c.Lookup(context.Background(), "12345678000190")
	require.NoError(t, err)
	assert.Empty(t, addrs)
}
