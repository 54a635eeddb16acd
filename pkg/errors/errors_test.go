// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := balcaoerr.New(
		balcaoerr.CodeCatalogUpstreamFailure,
		"catalog unreachable",
		balcaoerr.FieldConversationID("5511999999999@c.us"),
		balcaoerr.FieldTerm("cuba inox"),
	)

	require.Error(t, err)
	assert.Equal(t, balcaoerr.CodeCatalogUpstreamFailure, balcaoerr.CodeOf(err))
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeCatalogUpstreamFailure))

	fields := balcaoerr.FieldsOf(err)
	assert.Equal(t, "5511999999999@c.us", fields["conversation_id"])
	assert.Equal(t, "cuba inox", fields["term"])
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := balcaoerr.Errorf(balcaoerr.CodeIntentDecodeInvalidFormat, "decoding intent %q at byte %d", "{", 1)
	require.Error(t, err)
	assert.Equal(t, balcaoerr.CodeIntentDecodeInvalidFormat, balcaoerr.CodeOf(err))
	assert.Contains(t, err.Error(), `decoding intent "{" at byte 1`)
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("connection reset")
	err := balcaoerr.Errorf(balcaoerr.CodeCatalogUpstreamFailure, "searching catalog: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, balcaoerr.CodeCatalogUpstreamFailure, balcaoerr.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf / With
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("no such conversation")
	err := balcaoerr.Wrap(root, balcaoerr.CodeSessionNotFound, "loading session",
		balcaoerr.FieldConversationID("abc"))

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, balcaoerr.IsNotFound(err))
	assert.Equal(t, "abc", balcaoerr.FieldsOf(err)["conversation_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, balcaoerr.Wrap(nil, balcaoerr.CodeStoreDatabaseFailure, "x"))
	assert.NoError(t, balcaoerr.Wrapf(nil, balcaoerr.CodeStoreDatabaseFailure, "x %d", 1))
	assert.NoError(t, balcaoerr.With(nil, balcaoerr.FieldTerm("x")))
}

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	err := balcaoerr.New(balcaoerr.CodeChannelSendFailure, "send failed")
	err = balcaoerr.With(err, balcaoerr.FieldChannel("wppconnect"))

	assert.Equal(t, balcaoerr.CodeChannelSendFailure, balcaoerr.CodeOf(err))
	assert.Equal(t, "wppconnect", balcaoerr.FieldsOf(err)["channel"])
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	err := balcaoerr.With(stderrors.New("plain"), balcaoerr.FieldProductID("42"))
	assert.Equal(t, balcaoerr.CodeServerInternalFailure, balcaoerr.CodeOf(err))
}

func TestCodeOfReturnsInnermostCodedError(t *testing.T) {
	inner := balcaoerr.New(balcaoerr.CodeCatalogCredentialsMissing, "token missing")
	outer := balcaoerr.Wrap(inner, balcaoerr.CodeServerInternalFailure, "handler")
	assert.Equal(t, balcaoerr.CodeCatalogCredentialsMissing, balcaoerr.CodeOf(outer))
}

func TestCodeOfPlainAndNil(t *testing.T) {
	assert.Equal(t, balcaoerr.Code(""), balcaoerr.CodeOf(nil))
	assert.Equal(t, balcaoerr.Code(""), balcaoerr.CodeOf(stderrors.New("plain")))
	assert.Nil(t, balcaoerr.FieldsOf(nil))
	assert.Nil(t, balcaoerr.FieldsOf(stderrors.New("plain")))
}

func TestFieldsWithEmptyKeyAreIgnored(t *testing.T) {
	err := balcaoerr.New(balcaoerr.CodeStoreDatabaseFailure, "oops",
		balcaoerr.Field("", "dropped"),
		balcaoerr.FieldProvider("google"),
	)
	fields := balcaoerr.FieldsOf(err)
	assert.Equal(t, "google", fields["provider"])
	assert.NotContains(t, fields, "")
}

func TestErrorIsWithMultiWrap(t *testing.T) {
	sentinel := stderrors.New("original")
	first := balcaoerr.Wrap(sentinel, balcaoerr.CodeStoreDatabaseFailure, "layer 1")
	second := balcaoerr.Wrap(fmt.Errorf("mid: %w", first), balcaoerr.CodeServerInternalFailure, "layer 2")

	assert.ErrorIs(t, second, sentinel)
	assert.Equal(t, balcaoerr.CodeStoreDatabaseFailure, balcaoerr.CodeOf(second))
}

// ---------------------------------------------------------------------------
// Classification helpers
// ---------------------------------------------------------------------------

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   balcaoerr.Code
		status int
		check  func(error) bool
	}{
		{name: "session not found", code: balcaoerr.CodeSessionNotFound, status: 404, check: balcaoerr.IsNotFound},
		{name: "catalog not found", code: balcaoerr.CodeCatalogSearchNotFound, status: 404, check: balcaoerr.IsNotFound},
		{name: "provider not found", code: balcaoerr.CodeProviderNotFound, status: 404, check: balcaoerr.IsNotFound},
		{name: "config exists", code: balcaoerr.CodeConfigAlreadyExists, status: 409, check: balcaoerr.IsConflict},
		{name: "invalid value", code: balcaoerr.CodeConfigValidateInvalidValue, status: 400, check: balcaoerr.IsInvalidInput},
		{name: "intent invalid format", code: balcaoerr.CodeIntentDecodeInvalidFormat, status: 400, check: balcaoerr.IsInvalidInput},
		{name: "intent action invalid", code: balcaoerr.CodeIntentActionInvalid, status: 400, check: balcaoerr.IsInvalidInput},
		{name: "provider key", code: balcaoerr.CodeProviderKeyInvalid, status: 401, check: balcaoerr.IsUnauthorized},
		{name: "channel token", code: balcaoerr.CodeChannelTokenInvalid, status: 401, check: balcaoerr.IsUnauthorized},
		{name: "catalog upstream", code: balcaoerr.CodeCatalogUpstreamFailure, status: 502, check: balcaoerr.IsUpstreamFailure},
		{name: "classifier upstream", code: balcaoerr.CodeIntentClassifyFailure, status: 502, check: balcaoerr.IsUpstreamFailure},
		{name: "channel send", code: balcaoerr.CodeChannelSendFailure, status: 502, check: balcaoerr.IsUpstreamFailure},
		{name: "credentials missing", code: balcaoerr.CodeCatalogCredentialsMissing, status: 503, check: balcaoerr.IsMissingCredentials},
		{name: "internal", code: balcaoerr.CodeServerInternalFailure, status: 500, check: func(err error) bool { return !balcaoerr.IsNotFound(err) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := balcaoerr.New(tt.code, "boom")
			assert.Equal(t, tt.status, balcaoerr.HTTPStatus(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationNegativeCases(t *testing.T) {
	for _, err := range []error{nil, stderrors.New("plain"), balcaoerr.New(balcaoerr.CodeStoreDatabaseFailure, "db")} {
		assert.False(t, balcaoerr.IsNotFound(err))
		assert.False(t, balcaoerr.IsConflict(err))
		assert.False(t, balcaoerr.IsInvalidInput(err))
		assert.False(t, balcaoerr.IsUnauthorized(err))
		assert.False(t, balcaoerr.IsTimeout(err))
		assert.False(t, balcaoerr.IsUpstreamFailure(err))
		assert.False(t, balcaoerr.IsMissingCredentials(err))
	}
}

func TestHTTPStatusDefaults(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, balcaoerr.HTTPStatus(nil))
	assert.Equal(t, http.StatusInternalServerError, balcaoerr.HTTPStatus(stderrors.New("oops")))
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("first")
	b := stderrors.New("second")
	joined := balcaoerr.Join(a, b)

	require.Error(t, joined)
	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.Equal(t, balcaoerr.CodeServerInternalFailure, balcaoerr.CodeOf(joined))
}
