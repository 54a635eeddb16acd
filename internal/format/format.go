// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package format renders dialogue replies. Everything here is pure.
package format

import (
	"fmt"
	"strings"

	"github.com/sigil-dev/balcao/internal/catalog"
	"github.com/sigil-dev/balcao/internal/session"
)

// DefaultPageSize is the number of products listed before the
// "show all" hint.
const DefaultPageSize = 1

// Formatter renders product lists and prompts.
type Formatter struct {
	PageSize int
}

func New(pageSize int) Formatter {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Formatter{PageSize: pageSize}
}

func (f Formatter) pageSize() int {
	if f.PageSize <= 0 {
		return DefaultPageSize
	}
	return f.PageSize
}

// Item renders a single product block.
func Item(p catalog.Product) string {
	stock := msgStockAbsent
	if p.Stock.Known() {
		stock = p.Stock.String()
	}
	return fmt.Sprintf("* %s (ID: %s)\n  Preço: R$ %s\n  Estoque: %s", p.Name, p.ID, p.PriceText(), stock)
}

func items(products []catalog.Product) string {
	blocks := make([]string, len(products))
	for i, p := range products {
		blocks[i] = Item(p)
	}
	return strings.Join(blocks, "\n\n")
}

// Page renders the first PageSize products followed by the hidden-count
// hint when more remain.
func (f Formatter) Page(products []catalog.Product) string {
	n := min(f.pageSize(), len(products))
	out := items(products[:n])
	if hidden := len(products) - n; hidden > 0 {
		out += "\n\n" + fmt.Sprintf(msgHidden, hidden)
	}
	return out
}

// Footer lists the commands valid in state. hasHistory adds the 'back' hint.
func Footer(state session.State, hasHistory bool) string {
	switch state {
	case session.StateSearchMode:
		parts := []string{footerRefine}
		if hasHistory {
			parts = append(parts, footerBack)
		}
		return strings.Join(append(parts, footerCancel), " ")
	case session.StateAwaitingConfirmation:
		return footerConfirm
	default:
		return MsgMoreSearch
	}
}

// Refined renders the outcome of a successful refinement.
func (f Formatter) Refined(term string, results []catalog.Product, hasHistory bool) string {
	return fmt.Sprintf(msgRefined, term, len(results)) + "\n\n" +
		f.Page(results) + "\n\n" +
		Footer(session.StateSearchMode, hasHistory)
}

// Direct renders a search whose result set fits the display threshold.
func (f Formatter) Direct(term string, results []catalog.Product) string {
	return fmt.Sprintf(msgDirect, term) + "\n\n" + items(results) + "\n\n" + MsgMoreSearch
}

// Full renders every product without paging.
func (f Formatter) Full(results []catalog.Product, hasHistory bool) string {
	return fmt.Sprintf(msgFull, len(results)) + "\n\n" + items(results) + "\n\n" +
		Footer(session.StateSearchMode, hasHistory)
}

// First renders the first n products.
func (f Formatter) First(n int, results []catalog.Product, hasHistory bool) string {
	n = max(0, min(n, len(results)))
	return fmt.Sprintf(msgFirst, n, len(results)) + "\n\n" + items(results[:n]) + "\n\n" +
		Footer(session.StateSearchMode, hasHistory)
}

// Back confirms a return to the previous result set.
func (f Formatter) Back(results []catalog.Product, hasHistory bool) string {
	return fmt.Sprintf(msgBack, len(results)) + "\n\n" + Footer(session.StateSearchMode, hasHistory)
}

func Confirm(term string) string {
	return fmt.Sprintf(msgConfirm, term)
}

func Narrow(count int, term string) string {
	return fmt.Sprintf(msgNarrow, count, term)
}

func NoMatch(phrase string) string {
	return fmt.Sprintf(msgNoMatch, phrase)
}

// Greeting echoes the salutation the customer used.
func Greeting(salutation string) string {
	if salutation == "" {
		salutation = "Olá"
	}
	r := []rune(salutation)
	return fmt.Sprintf(msgGreeting, strings.ToUpper(string(r[0]))+string(r[1:]))
}
