//go:build tools

package tools

// Tool dependencies were previously tracked here with blank imports.
// This repo uses hand-written fakes for registry.Session/registry.Clock
// in tests instead of generated mocks, so no code-generation tool is
// pinned here.
