// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Glint tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/glintapp/glint/internal/itemservice"
	"github.com/glintapp/glint/internal/search"
)

// Server wraps the MCP server with Glint tools.
type Server struct {
	mcp    *server.MCPServer
	engine *itemservice.Engine
}

// New creates a new MCP server with all Glint tools registered.
func New(engine *itemservice.Engine) *Server {
	s := &Server{engine: engine}

	s.mcp = server.NewMCPServer(
		"Glint",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Full-text search through item titles and note bodies. "+
			"Falls back to substring and fuzzy matching when nothing matches exactly."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("read_item",
		mcp.WithDescription("Read the full note body of an item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Numeric item id")),
	), s.readItem)

	s.mcp.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create a new item with a title and a plain-text note body. "+
			"Reference attached images with the attach_image tool output."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
		mcp.WithString("note", mcp.Description("Note body (plain text)")),
	), s.createItem)

	s.mcp.AddTool(mcp.NewTool("save_item",
		mcp.WithDescription("Replace the note body of an existing item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Numeric item id")),
		mcp.WithString("note", mcp.Required(), mcp.Description("New note body")),
	), s.saveItem)

	s.mcp.AddTool(mcp.NewTool("rename_item",
		mcp.WithDescription("Change the title of an existing item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Numeric item id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
	), s.renameItem)

	s.mcp.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Move an item to the trash. The item can be restored later from the trash."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Numeric item id")),
	), s.deleteItem)

	s.mcp.AddTool(mcp.NewTool("list_trash",
		mcp.WithDescription("List recently deleted items with their archive keys."),
	), s.listTrash)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Download an image from a URL or data URI and store it as a blob. "+
			"Returns a noteRef field ready to paste into an item's note body."),
		mcp.WithString("url", mcp.Required(), mcp.Description("HTTP(S) URL or base64 data URI of the image")),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Numeric id of the item the image will be attached to")),
	), s.attachImage)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func requireItemID(req mcp.CallToolRequest) (int64, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id: %q", raw)
	}
	return id, nil
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.engine.Service().Search(query, search.MaxLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireItemID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.engine.Service().Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: item %d", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("# %s\n\n%s", item.Title, item.Note)), nil
}

func (s *Server) createItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note := ""
	if v, noteErr := req.RequireString("note"); noteErr == nil {
		note = v
	}

	item, err := s.engine.Service().Create(title, note, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: item %d", item.ID)), nil
}

func (s *Server) saveItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireItemID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.engine.Service().Save(id, note, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: item %d", id)), nil
}

func (s *Server) renameItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireItemID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.engine.Service().Rename(id, title); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed: item %d", id)), nil
}

func (s *Server) deleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireItemID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.Service().Delete(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: item %d", id)), nil
}

func (s *Server) listTrash(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deleted, err := s.engine.Service().ListDeleted(0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(deleted) == 0 {
		return mcp.NewToolResultText("trash is empty"), nil
	}
	out, _ := json.MarshalIndent(deleted, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
