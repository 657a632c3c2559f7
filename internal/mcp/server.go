package mcp

import (
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/tubestreak/internal/config"
	"github.com/hpungsan/tubestreak/internal/extension"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"share_submit": {
		def:     submitToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSubmit },
	},
	"share_encode": {
		def:     encodeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEncode },
	},
	"share_decode": {
		def:     decodeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDecode },
	},
	"share_backup": {
		def:     backupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBackup },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the share tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
// db may be nil when the backup store is disabled.
func NewServer(db *sql.DB, cfg *config.Config, ext *extension.Extension, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tubestreak",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, ext)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, ext *extension.Extension, version string) error {
	s := NewServer(db, cfg, ext, version)
	return server.ServeStdio(s)
}
