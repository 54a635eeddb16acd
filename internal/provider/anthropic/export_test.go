// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package anthropic

var (
	ConvertMessages = convertMessages
	BuildParams     = buildParams
)
