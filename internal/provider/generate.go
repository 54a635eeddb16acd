// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"context"
	"strings"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// Generate routes ref, sends req and collects the streamed text into one
// string. req.Model is filled from the routing result. A failed call is not
// retried on another provider.
func Generate(ctx context.Context, router Router, ref string, req ChatRequest) (string, error) {
	p, model, err := router.Route(ctx, ref)
	if err != nil {
		return "", err
	}
	req.Model = model

	events, err := p.Chat(ctx, req)
	if err != nil {
		return "", balcaoerr.Wrap(err, balcaoerr.CodeProviderUpstreamFailure, "starting chat",
			balcaoerr.FieldProvider(p.Name()))
	}

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", balcaoerr.Wrap(ctx.Err(), balcaoerr.CodeProviderUpstreamFailure, "waiting for completion",
				balcaoerr.FieldProvider(p.Name()))
		case ev, ok := <-events:
			if !ok {
				return sb.String(), nil
			}
			switch ev.Type {
			case EventTypeTextDelta:
				sb.WriteString(ev.Text)
			case EventTypeError:
				return "", balcaoerr.New(balcaoerr.CodeProviderUpstreamFailure, ev.Error,
					balcaoerr.FieldProvider(p.Name()))
			case EventTypeDone:
				return sb.String(), nil
			}
		}
	}
}
