package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/glintapp/glint/internal/itemservice"
)

func testServer(t *testing.T) (*Server, *itemservice.Engine) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc, err := itemservice.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	engine := itemservice.NewEngine(svc, logger)
	t.Cleanup(func() { engine.Close() })

	return New(engine), engine
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handler
	// functions are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_items":
		result, err = srv.searchItems(ctx, req)
	case "read_item":
		result, err = srv.readItem(ctx, req)
	case "create_item":
		result, err = srv.createItem(ctx, req)
	case "save_item":
		result, err = srv.saveItem(ctx, req)
	case "rename_item":
		result, err = srv.renameItem(ctx, req)
	case "delete_item":
		result, err = srv.deleteItem(ctx, req)
	case "list_trash":
		result, err = srv.listTrash(ctx, req)
	case "attach_image":
		result, err = srv.attachImage(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadItem(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_item", map[string]interface{}{
		"title": "Test",
		"note":  "Hello",
	})
	text := resultText(r)
	if text != "created: item 1" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_item", map[string]interface{}{"id": "1"})
	text = resultText(r)
	if text != "# Test\n\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadItemMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_item", map[string]interface{}{"id": "42"})
	if !r.IsError {
		t.Error("expected error for missing item")
	}
}

func TestReadItemBadID(t *testing.T) {
	srv, _ := testServer(t)
	for _, id := range []string{"abc", "0", "-3"} {
		r := callTool(t, srv, "read_item", map[string]interface{}{"id": id})
		if !r.IsError {
			t.Errorf("expected error for id %q", id)
		}
	}
}

func TestSearchItems(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_item", map[string]interface{}{
		"title": "Groceries",
		"note":  "remember the milk",
	})

	r := callTool(t, srv, "search_items", map[string]interface{}{"query": "milk"})
	text := resultText(r)
	if !strings.Contains(text, "Groceries") {
		t.Errorf("search result = %q, want Groceries hit", text)
	}
}

func TestSaveAndRename(t *testing.T) {
	srv, engine := testServer(t)
	callTool(t, srv, "create_item", map[string]interface{}{"title": "Draft", "note": "v1"})

	callTool(t, srv, "save_item", map[string]interface{}{"id": "1", "note": "v2"})
	callTool(t, srv, "rename_item", map[string]interface{}{"id": "1", "title": "Final"})

	item, err := engine.Service().Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if item.Title != "Final" || item.Note != "v2" {
		t.Errorf("item = %+v", item)
	}
}

func TestDeleteAndListTrash(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_item", map[string]interface{}{"title": "Doomed", "note": "x"})

	r := callTool(t, srv, "list_trash", map[string]interface{}{})
	if resultText(r) != "trash is empty" {
		t.Errorf("trash = %q, want empty", resultText(r))
	}

	callTool(t, srv, "delete_item", map[string]interface{}{"id": "1"})

	r = callTool(t, srv, "list_trash", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Doomed") {
		t.Errorf("trash = %q, want Doomed entry", resultText(r))
	}
}

func TestAttachImageDataURI(t *testing.T) {
	srv, engine := testServer(t)
	callTool(t, srv, "create_item", map[string]interface{}{"title": "Pic", "note": "shot:"})

	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	r := callTool(t, srv, "attach_image", map[string]interface{}{
		"url":     uri,
		"item_id": "1",
	})
	if r.IsError {
		t.Fatalf("attach error: %s", resultText(r))
	}
	var res attachResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.ImageKey == "" || !strings.Contains(res.NoteRef, res.ImageKey) {
		t.Errorf("result = %+v", res)
	}

	item, err := engine.Service().Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(item.Images) != 1 || item.Images[0].Key != res.ImageKey {
		t.Fatalf("images = %+v", item.Images)
	}
	if !strings.Contains(item.Note, res.NoteRef) {
		t.Errorf("note = %q, missing ref", item.Note)
	}
}

func TestAttachImageRejectsNonImage(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_item", map[string]interface{}{"title": "Pic", "note": ""})

	uri := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("plain text payload"))
	r := callTool(t, srv, "attach_image", map[string]interface{}{
		"url":     uri,
		"item_id": "1",
	})
	if !r.IsError {
		t.Error("expected error for non-image payload")
	}
}
