package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/tubestreak/internal/config"
	"github.com/hpungsan/tubestreak/internal/db"
	"github.com/hpungsan/tubestreak/internal/errors"
	"github.com/hpungsan/tubestreak/internal/extension"
	"github.com/hpungsan/tubestreak/internal/payload"
	"github.com/hpungsan/tubestreak/internal/share"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
	ext *extension.Extension
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, ext *extension.Extension) *Handlers {
	return &Handlers{db: db, cfg: cfg, ext: ext}
}

// Request types for each tool

// SubmitItem is one candidate attachment in a submit request.
type SubmitItem struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SubmitRequest represents the arguments for share_submit.
type SubmitRequest struct {
	Items []SubmitItem `json:"items"`
	Label string       `json:"label,omitempty"`
}

// EncodeRequest represents the arguments for share_encode.
type EncodeRequest struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// DecodeRequest represents the arguments for share_decode.
type DecodeRequest struct {
	Address string `json:"address"`
}

// BackupRequest represents the arguments for share_backup.
type BackupRequest struct {
	Clear bool `json:"clear,omitempty"`
}

// EncodeResult is returned by share_encode.
type EncodeResult struct {
	Address string          `json:"address"`
	Payload payload.Payload `json:"payload"`
}

// BackupClearResult is returned by share_backup with clear set.
type BackupClearResult struct {
	Cleared bool   `json:"cleared"`
	Key     string `json:"backup_key"`
}

// HandleSubmit handles the share_submit tool call.
func (h *Handlers) HandleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SubmitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.Items) == 0 {
		return errorResult(errors.NewInvalidRequest("items must not be empty")), nil
	}
	if h.ext == nil {
		return errorResult(errors.NewInternal(stderrors.New("extension not configured"))), nil
	}

	attachments := make([]share.Attachment, 0, len(input.Items))
	for _, item := range input.Items {
		attachments = append(attachments, share.RawAttachment(item.Type, item.Value))
	}

	result, err := h.ext.Handle(ctx, attachments, input.Label)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEncode handles the share_encode tool call.
func (h *Handlers) HandleEncode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EncodeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := payload.New(input.URL, input.Label)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(EncodeResult{
		Address: h.ext.Codec.Encode(*p),
		Payload: *p,
	})
}

// HandleDecode handles the share_decode tool call.
func (h *Handlers) HandleDecode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DecodeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := h.ext.Codec.Parse(input.Address)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(p)
}

// HandleBackup handles the share_backup tool call.
func (h *Handlers) HandleBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BackupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.db == nil || h.cfg.BackupDisabled {
		return errorResult(errors.NewInvalidRequest("backup store is disabled")), nil
	}

	if input.Clear {
		cleared, err := db.ClearBackup(ctx, h.db, h.cfg.BackupKey)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(BackupClearResult{Cleared: cleared, Key: h.cfg.BackupKey})
	}

	b, err := db.GetBackup(ctx, h.db, h.cfg.BackupKey)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(b)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var result map[string]any

	var sErr *errors.ShareError
	if stderrors.As(err, &sErr) {
		message := sErr.Message
		// Keep context added by wrapping, e.g. "items[2]: ..."
		if err != error(sErr) {
			message = strings.Replace(err.Error(), sErr.Error(), sErr.Message, 1)
		}
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": message,
			"status":  sErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if sErr.Code != errors.ErrInternal && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		result = map[string]any{"error": errorObj}
	} else {
		result = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(result)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
