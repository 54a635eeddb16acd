// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sigil-dev/balcao/internal/provider"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

const classifyPrompt = `SUA ÚNICA RESPOSTA DEVE SER UM OBJETO JSON VÁLIDO.
NÃO INCLUA NENHUM TEXTO, SAUDAÇÃO OU FORMATAÇÃO ADICIONAL.
Analise a "Frase do usuário" e defina a intenção.

--- Intenção: Buscar Produto ---
Se a frase pedir para buscar um produto pela primeira vez e for um termo amplo, retorne:
{"acao": "confirma_busca", "termo": "[termo que você identificou]"}
Se for uma busca por um termo específico, retorne:
{"acao": "buscar_produto", "termo": "[termo específico que será usado na busca]"}

--- Intenção: Nova Busca ---
Se a frase iniciar uma nova busca sem relação com o tópico anterior, retorne:
{"acao": "nova_busca", "termo": "[o novo termo de busca]"}

--- Intenção padrão: conversa genérica (não é produto) ---
Se não reconhecer nenhuma intenção clara, retorne:
{"acao": "desconhecida"}

---
Frase do usuário: "%s"
---
JSON de saída:`

const probePrompt = "Olá. Responda apenas 'OK'"

// LLMClassifier classifies messages by prompting a routed LLM provider.
type LLMClassifier struct {
	router provider.Router
	ref    string
}

var _ Classifier = (*LLMClassifier)(nil)

// NewLLMClassifier uses router to resolve ref ("provider/model", empty for
// the default).
func NewLLMClassifier(router provider.Router, ref string) *LLMClassifier {
	return &LLMClassifier{router: router, ref: ref}
}

// Prompt renders the classification prompt for text.
func Prompt(text string) string {
	return fmt.Sprintf(classifyPrompt, strings.ReplaceAll(text, `"`, `'`))
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (Intent, error) {
	raw, err := c.complete(ctx, Prompt(text))
	if err != nil {
		return nil, err
	}

	in, err := Decode(raw)
	if err != nil {
		slog.Warn("classifier answer rejected",
			"raw", truncate(raw, 200),
			"error", err,
		)
		return nil, err
	}
	return in, nil
}

func (c *LLMClassifier) complete(ctx context.Context, prompt string) (string, error) {
	temp := float32(0)
	req := provider.UserPrompt("", prompt)
	req.Options.Temperature = &temp

	raw, err := provider.Generate(ctx, c.router, c.ref, req)
	if err != nil {
		return "", balcaoerr.Wrapf(err, balcaoerr.CodeIntentClassifyFailure, "classifier call failed")
	}
	return raw, nil
}

// Probe asks the model to answer "OK" and reports whether it did.
func (c *LLMClassifier) Probe(ctx context.Context) error {
	raw, err := c.complete(ctx, probePrompt)
	if err != nil {
		return err
	}
	answer := strings.Trim(strings.TrimSpace(Unwrap(raw)), `'".!`)
	if !strings.EqualFold(answer, "OK") {
		return balcaoerr.New(balcaoerr.CodeIntentClassifyFailure, "unexpected probe answer",
			balcaoerr.Field("answer", truncate(raw, 50)))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
