package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/example/go-genstudio/internal/history"
)

func seedHistory(t *testing.T, path string, items ...history.Item) {
	t.Helper()

	h, err := history.Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	for _, it := range items {
		if _, err := h.Add(context.Background(), it); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHistoryCmd_ListShowDeleteClear(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	seedHistory(t, db,
		history.Item{Timestamp: time.Unix(100, 0), Kind: "speech", Preview: history.Preview{Type: history.PreviewText, Data: "hello\nworld"}},
		history.Item{Timestamp: time.Unix(200, 0), Kind: "createImage", Preview: history.Preview{Type: history.PreviewImage, Data: "aGVsbG8="}},
	)

	out, _, err := execute(t, "", "history", "list", "--paths-history-db", db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("list output = %q", out)
	}
	if !strings.Contains(lines[1], "createImage") || !strings.Contains(lines[1], "[image, 8 bytes base64]") {
		t.Errorf("newest row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "hello world") {
		t.Errorf("text preview not flattened: %q", lines[2])
	}

	out, _, err = execute(t, "", "history", "list", "--kind", "speech", "--json", "--paths-history-db", db)
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}
	var items []history.Item
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].Kind != "speech" {
		t.Fatalf("items = %+v", items)
	}

	id := items[0].ID
	out, _, err = execute(t, "", "history", "show", strconv.FormatInt(id, 10), "--paths-history-db", db)
	if err != nil || !strings.Contains(out, `"kind": "speech"`) {
		t.Errorf("show = %q, %v", out, err)
	}

	if _, _, err := execute(t, "", "history", "delete", strconv.FormatInt(id, 10), "--paths-history-db", db); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := execute(t, "", "history", "delete", strconv.FormatInt(id, 10), "--paths-history-db", db); err == nil {
		t.Error("deleting twice should fail")
	}

	out, _, err = execute(t, "", "history", "clear", "--paths-history-db", db)
	if err != nil || !strings.Contains(out, "removed 1 items") {
		t.Errorf("clear = %q, %v", out, err)
	}
}

func TestHistoryCmd_InvalidID(t *testing.T) {
	if _, _, err := execute(t, "", "history", "show", "abc"); err == nil {
		t.Fatal("expected an error for a non-numeric id")
	}
}

func TestPreviewText_Truncates(t *testing.T) {
	long := strings.Repeat("é", 100)
	got := previewText(history.Preview{Type: history.PreviewText, Data: long})

	if n := len([]rune(got)); n != previewWidth {
		t.Errorf("preview has %d runes; want %d", n, previewWidth)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("preview = %q", got)
	}
}
