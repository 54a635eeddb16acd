// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package catalog holds the product model, the relevance scorer used to
// narrow result sets, and the contracts for catalog and stock backends.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// Product is a single catalog item as returned by a Searcher.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock Stock   `json:"stock"`
}

// PriceText renders the price in Brazilian notation without the currency symbol.
func (p Product) PriceText() string {
	return strings.Replace(strconv.FormatFloat(p.Price, 'f', 2, 64), ".", ",", 1)
}

// Stock is an available quantity or the unknown sentinel.
type Stock struct {
	quantity float64
	known    bool
}

// StockUnknown returns the sentinel used when a lookup failed or never ran.
func StockUnknown() Stock {
	return Stock{}
}

// StockOf returns a known quantity.
func StockOf(quantity float64) Stock {
	return Stock{quantity: quantity, known: true}
}

func (s Stock) Known() bool {
	return s.known
}

// Quantity returns the quantity and whether it is known.
func (s Stock) Quantity() (float64, bool) {
	return s.quantity, s.known
}

func (s Stock) String() string {
	if !s.known {
		return "unknown"
	}
	return strconv.FormatFloat(s.quantity, 'f', -1, 64)
}

func (s Stock) MarshalJSON() ([]byte, error) {
	if !s.known {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(s.quantity, 'f', -1, 64)), nil
}

func (s *Stock) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*s = StockUnknown()
		return nil
	}
	q, err := strconv.ParseFloat(strings.Trim(raw, `"`), 64)
	if err != nil {
		return fmt.Errorf("parsing stock %q: %w", raw, err)
	}
	*s = StockOf(q)
	return nil
}

// Searcher finds products matching a free-text term.
// An empty result is reported as a CodeCatalogSearchNotFound error.
type Searcher interface {
	Search(ctx context.Context, term string) ([]Product, error)
}

// StockLookup returns the available stock of a single product.
type StockLookup interface {
	Stock(ctx context.Context, productID string) (Stock, error)
}

// UserMessage converts a search error into the text shown to the customer.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case balcaoerr.IsMissingCredentials(err):
		return "O token da API Tiny não está configurado."
	case balcaoerr.IsNotFound(err):
		term, _ := balcaoerr.FieldsOf(err)["term"].(string)
		return fmt.Sprintf("Não encontrei nenhum produto para %q.", term)
	default:
		return "Ocorreu um erro ao buscar produtos. Tente novamente mais tarde."
	}
}
