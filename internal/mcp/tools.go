package mcp

import "github.com/mark3labs/mcp-go/mcp"

var submitToolDef = mcp.NewTool("share_submit",
	mcp.WithDescription("Share one item with the host application. Items are candidate attachments in priority order; "+
		"the first web link wins, otherwise the first plain text that parses as an absolute URI. "+
		"Returns the dispatched address, or reason UNSUPPORTED_CONTENT when no item contains a URL."),
	mcp.WithArray("items",
		mcp.Required(),
		mcp.Description("Candidate attachments, each {\"type\": type identifier such as public.url or text/plain, \"value\": content}"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":  map[string]any{"type": "string"},
				"value": map[string]any{"type": "string"},
			},
			"required": []string{"type", "value"},
		}),
	),
	mcp.WithString("label", mcp.Description("Optional label typed by the user")),
)

var encodeToolDef = mcp.NewTool("share_encode",
	mcp.WithDescription("Encode a URL and optional label into a share address without dispatching it."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Absolute URI to share")),
	mcp.WithString("label", mcp.Description("Optional label; dropped when equal to the URL")),
)

var decodeToolDef = mcp.NewTool("share_decode",
	mcp.WithDescription("Decode a share address into its URL and label. Fails with MALFORMED_ADDRESS when the address is not a share address."),
	mcp.WithString("address", mcp.Required(), mcp.Description("Share address, e.g. tubestreak://share?url=...")),
)

var backupToolDef = mcp.NewTool("share_backup",
	mcp.WithDescription("Show the last address written to the shared backup store, or clear it."),
	mcp.WithBoolean("clear", mcp.Description("Remove the backup record instead of returning it")),
)
