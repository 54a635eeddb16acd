// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package dialogue

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Vocabulary lists the literal phrases recognised as commands. Matching is
// exact after trimming and lowercasing.
type Vocabulary struct {
	Cancel    []string
	Back      []string
	ShowAll   []string
	Affirm    []string
	Greetings []string
}

// DefaultVocabulary combines the Portuguese phrases customers use with
// their English equivalents.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Cancel:    []string{"cancelar", "nao", "não", "nova busca", "sair", "cancel", "no", "new search", "exit"},
		Back:      []string{"voltar", "back"},
		ShowAll:   []string{"todos", "mostrar tudo", "lista completa", "all", "show all", "show everything", "full list"},
		Affirm:    []string{"sim", "1", "yes"},
		Greetings: []string{"oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "e aí", "e ai", "tudo bem", "hello", "hi"},
	}
}

// withDefaults fills empty lists from DefaultVocabulary.
func (v Vocabulary) withDefaults() Vocabulary {
	d := DefaultVocabulary()
	if len(v.Cancel) == 0 {
		v.Cancel = d.Cancel
	}
	if len(v.Back) == 0 {
		v.Back = d.Back
	}
	if len(v.ShowAll) == 0 {
		v.ShowAll = d.ShowAll
	}
	if len(v.Affirm) == 0 {
		v.Affirm = d.Affirm
	}
	if len(v.Greetings) == 0 {
		v.Greetings = d.Greetings
	}
	return v
}

// Command is the closed set of shapes an inbound message can take before
// any state is consulted.
type Command interface {
	command()
}

type (
	Cancel  struct{}
	Back    struct{}
	ShowAll struct{}
	Affirm  struct{}
	// ShowFirst asks for the first N products of the current list.
	ShowFirst struct{ N int }
	// Greeting carries the salutation the customer opened with.
	Greeting struct{ Word string }
	// Text is anything else: a refinement phrase or a request for the classifier.
	Text struct{ Body string }
)

func (Cancel) command()    {}
func (Back) command()      {}
func (ShowAll) command()   {}
func (Affirm) command()    {}
func (ShowFirst) command() {}
func (Greeting) command()  {}
func (Text) command()      {}

var showFirstPattern = regexp.MustCompile(`^(?:quero ver os (\d+) primeiros|quero ver (\d+)|(?:os )?(\d+) primeiros|show (\d+)|first (\d+))$`)

// Normalize trims and lowercases a message the way command matching sees it.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Classify maps text to a Command. It never consults session state; the
// transition functions decide which commands apply where.
func Classify(text string, vocab Vocabulary) Command {
	msg := Normalize(text)

	switch {
	case slices.Contains(vocab.Back, msg):
		return Back{}
	case slices.Contains(vocab.Cancel, msg):
		return Cancel{}
	case slices.Contains(vocab.ShowAll, msg):
		return ShowAll{}
	case slices.Contains(vocab.Affirm, msg):
		return Affirm{}
	}

	if m := showFirstPattern.FindStringSubmatch(msg); m != nil {
		for _, g := range m[1:] {
			if n, err := strconv.Atoi(g); err == nil && n > 0 {
				return ShowFirst{N: n}
			}
		}
	}

	if word, ok := greeting(msg, vocab.Greetings); ok {
		return Greeting{Word: word}
	}

	return Text{Body: msg}
}

// greeting reports whether msg is made only of salutations ("oi", "oi, bom
// dia!") and returns the first one.
func greeting(msg string, words []string) (string, bool) {
	rest := strings.TrimRight(msg, "!.,? ")
	if rest == "" {
		return "", false
	}

	// Longest phrases first so "boa tarde" is not read as a prefix of something shorter.
	sorted := slices.Clone(words)
	slices.SortFunc(sorted, func(a, b string) int { return len(b) - len(a) })

	first := ""
	for rest != "" {
		matched := false
		for _, w := range sorted {
			after, ok := strings.CutPrefix(rest, w)
			if !ok || (after != "" && !strings.ContainsAny(after[:1], " ,!.?")) {
				continue
			}
			if first == "" {
				first = w
			}
			rest = strings.TrimLeft(after, " ,!.?")
			matched = true
			break
		}
		if !matched {
			return "", false
		}
	}
	return first, true
}
