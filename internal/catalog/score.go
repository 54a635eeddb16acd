// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package catalog

import (
	"regexp"
	"slices"
	"strings"
)

var numberUnit = regexp.MustCompile(`^(\d+)([a-z]+)$`)

// Tokenize lowercases text, splits it on whitespace and separates a leading
// number from a unit suffix ("50mm" becomes "50", "mm"). Order and duplicates
// are preserved.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if m := numberUnit.FindStringSubmatch(f); m != nil {
			tokens = append(tokens, m[1], m[2])
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Scored pairs a product with its relevance for one refinement pass.
type Scored struct {
	Product
	Score int
}

// Rank scores every product against phrase and returns the non-zero matches,
// best first. Ties keep their input order. Rank returns nil when phrase has no
// tokens; callers that need the identity law should use Score.
func Rank(products []Product, phrase string) []Scored {
	query := Tokenize(phrase)
	if len(query) == 0 || len(products) == 0 {
		return nil
	}

	ranked := make([]Scored, 0, len(products))
	for _, p := range products {
		names := make(map[string]struct{})
		for _, tok := range Tokenize(p.Name) {
			names[tok] = struct{}{}
		}

		score := 0
		for _, tok := range query {
			if _, ok := names[tok]; ok {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, Scored{Product: p, Score: score})
		}
	}

	slices.SortStableFunc(ranked, func(a, b Scored) int {
		return b.Score - a.Score
	})
	return ranked
}

// Score narrows products to those whose names share tokens with phrase,
// ordered by descending match count. An empty phrase, an empty product list
// or a phrase without tokens returns the input unchanged. The input slice is
// never modified.
func Score(products []Product, phrase string) []Product {
	if phrase == "" || len(products) == 0 || len(Tokenize(phrase)) == 0 {
		return products
	}

	ranked := Rank(products, phrase)
	out := make([]Product, len(ranked))
	for i, s := range ranked {
		out[i] = s.Product
	}
	return out
}
