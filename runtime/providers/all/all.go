// Package all registers every built-in provider.
package all

import (
	_ "github.com/domini04/bluestar/runtime/providers/claude" // registers "claude"
	_ "github.com/domini04/bluestar/runtime/providers/gemini" // registers "gemini"
	_ "github.com/domini04/bluestar/runtime/providers/mock"   // registers "mock"
	_ "github.com/domini04/bluestar/runtime/providers/openai" // registers "openai"
)
