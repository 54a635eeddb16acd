// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package tiny implements catalog search and stock lookup against the
// Tiny ERP API v2.
package tiny

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sigil-dev/balcao/internal/catalog"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

const (
	DefaultBaseURL = "https://api.tiny.com.br/api2"
	DefaultTimeout = 15 * time.Second

	// placeholderToken is the value shipped in sample configs.
	placeholderToken = "SEU_TOKEN_AQUI"

	// errNoRecords is returned by Tiny when a query matches nothing.
	errNoRecords = "20"

	maxResponseBytes = 4 << 20
)

// Config holds the Tiny API connection settings.
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Tiny ERP API. It satisfies catalog.Searcher and
// catalog.StockLookup.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

var (
	_ catalog.Searcher    = (*Client)(nil)
	_ catalog.StockLookup = (*Client)(nil)
)

// New creates a Tiny client. A missing token is not an error here; calls
// report CodeCatalogCredentialsMissing so the customer gets a readable reply.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		token:   strings.TrimSpace(cfg.Token),
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) checkToken() error {
	if c.token == "" || c.token == placeholderToken {
		return balcaoerr.New(balcaoerr.CodeCatalogCredentialsMissing, "tiny api token is not configured")
	}
	return nil
}

type envelope[T any] struct {
	Retorno T `json:"retorno"`
}

type status struct {
	Status    string     `json:"status"`
	ErrorCode flexString `json:"codigo_erro"`
	Errors    []struct {
		Erro string `json:"erro"`
	} `json:"erros"`
}

func (s status) ok() bool {
	return strings.EqualFold(s.Status, "OK")
}

func (s status) message() string {
	msgs := make([]string, 0, len(s.Errors))
	for _, e := range s.Errors {
		if e.Erro != "" {
			msgs = append(msgs, e.Erro)
		}
	}
	if len(msgs) == 0 {
		return "status " + s.Status
	}
	return strings.Join(msgs, "; ")
}

type searchResult struct {
	status
	Produtos []struct {
		Produto struct {
			ID    flexString `json:"id"`
			Nome  string     `json:"nome"`
			Preco flexFloat  `json:"preco"`
		} `json:"produto"`
	} `json:"produtos"`
}

type stockResult struct {
	status
	Produto struct {
		ID             flexString `json:"id"`
		Nome           string     `json:"nome"`
		Saldo          flexFloat  `json:"saldo"`
		SaldoReservado flexFloat  `json:"saldoReservado"`
	} `json:"produto"`
}

// Search queries produtos.pesquisa.php. An empty match set is reported as
// CodeCatalogSearchNotFound carrying the term.
func (c *Client) Search(ctx context.Context, term string) ([]catalog.Product, error) {
	if err := c.checkToken(); err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, balcaoerr.New(balcaoerr.CodeCatalogSearchInvalid, "search term is empty")
	}

	q := url.Values{}
	q.Set("token", c.token)
	q.Set("pesquisa", term)
	q.Set("formato", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/produtos.pesquisa.php?"+q.Encode(), nil)
	if err != nil {
		return nil, balcaoerr.Errorf(balcaoerr.CodeCatalogUpstreamFailure, "building tiny search request: %w", err)
	}

	var out envelope[searchResult]
	if err := c.do(req, &out); err != nil {
		return nil, balcaoerr.With(err, balcaoerr.FieldTerm(term))
	}

	if !out.Retorno.ok() {
		if string(out.Retorno.ErrorCode) == errNoRecords {
			return nil, notFound(term)
		}
		return nil, balcaoerr.New(balcaoerr.CodeCatalogUpstreamFailure,
			"tiny search failed: "+out.Retorno.message(), balcaoerr.FieldTerm(term))
	}
	if len(out.Retorno.Produtos) == 0 {
		return nil, notFound(term)
	}

	products := make([]catalog.Product, 0, len(out.Retorno.Produtos))
	for _, item := range out.Retorno.Produtos {
		products = append(products, catalog.Product{
			ID:    string(item.Produto.ID),
			Name:  item.Produto.Nome,
			Price: float64(item.Produto.Preco),
			Stock: catalog.StockUnknown(),
		})
	}

	slog.Debug("tiny search completed", "term", term, "results", len(products))
	return products, nil
}

// Stock queries produto.obter.estoque.php and returns the available balance
// (total minus reserved).
func (c *Client) Stock(ctx context.Context, productID string) (catalog.Stock, error) {
	if err := c.checkToken(); err != nil {
		return catalog.StockUnknown(), err
	}

	form := url.Values{}
	form.Set("token", c.token)
	form.Set("id", productID)
	form.Set("formato", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/produto.obter.estoque.php",
		strings.NewReader(form.Encode()))
	if err != nil {
		return catalog.StockUnknown(), balcaoerr.Errorf(balcaoerr.CodeCatalogUpstreamFailure, "building tiny stock request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out envelope[stockResult]
	if err := c.do(req, &out); err != nil {
		return catalog.StockUnknown(), balcaoerr.With(err, balcaoerr.FieldProductID(productID))
	}
	if !out.Retorno.ok() {
		return catalog.StockUnknown(), balcaoerr.New(balcaoerr.CodeCatalogStockUnavailable,
			"tiny stock lookup failed: "+out.Retorno.message(), balcaoerr.FieldProductID(productID))
	}

	available := float64(out.Retorno.Produto.Saldo) - float64(out.Retorno.Produto.SaldoReservado)
	return catalog.StockOf(available), nil
}

// Ping runs a cheap search to confirm the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Search(ctx, "a")
	if err != nil && balcaoerr.IsNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeCatalogUpstreamFailure, "calling tiny api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeCatalogUpstreamFailure, "reading tiny response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return balcaoerr.Errorf(balcaoerr.CodeCatalogUpstreamFailure, "tiny api returned HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeCatalogResponseInvalid, "decoding tiny response: %w", err)
	}
	return nil
}

func notFound(term string) error {
	return balcaoerr.New(balcaoerr.CodeCatalogSearchNotFound, "no products match term", balcaoerr.FieldTerm(term))
}

// flexString accepts JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// flexFloat accepts JSON numbers and numeric strings, including Brazilian
// decimal commas.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	raw := strings.TrimSpace(string(s))
	if raw == "" {
		*f = 0
		return nil
	}
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
