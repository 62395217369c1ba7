//go:build tools

// Package ai_live_chat pins mockgen, used by the go:generate lines of
// contract/ and repositories/, in go.mod.
package ai_live_chat

import (
	_ "go.uber.org/mock/mockgen"
)
