package main

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/decred/slog"

	"github.com/youruser/huddle/internal/session"
)

func newTestServer(t *testing.T) (*server, *bytes.Buffer) {
	t.Helper()
	sess, err := session.Bootstrap(nil, "", nil)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	out := &bytes.Buffer{}
	return &server{sess: sess, log: slog.Disabled, out: out}, out
}

// lastResponse decodes the most recent response line written by the server.
func lastResponse(t *testing.T, out *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	last := lines[len(lines)-1]
	if last == "" {
		t.Fatal("Expected a response line")
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(last), &resp); err != nil {
		t.Fatalf("Response does not parse: %v (%s)", err, last)
	}
	return resp
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name string
		req  map[string]any
		want string
	}{
		{name: "string", req: map[string]any{"request_id": "abc"}, want: "abc"},
		{name: "int", req: map[string]any{"request_id": 42}, want: "42"},
		{name: "float", req: map[string]any{"request_id": 42.0}, want: "42"},
		{name: "none", req: map[string]any{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := requestID(tt.req); got != tt.want {
				t.Fatalf("requestID(%v) = %q, want %q", tt.req, got, tt.want)
			}
		})
	}
}

func TestAddResponseID(t *testing.T) {
	data := map[string]any{"type": "ok"}
	out := addResponseID("req-1", data)
	if got := out["request_id"]; got != "req-1" {
		t.Fatalf("request_id = %v, want %q", got, "req-1")
	}

	// Ensure empty id leaves map unchanged
	orig := map[string]any{"type": "ok"}
	out2 := addResponseID("", orig)
	if !reflect.DeepEqual(out2, orig) {
		t.Fatalf("expected map unchanged when id is empty")
	}
}

func TestHandleLinePing(t *testing.T) {
	srv, out := newTestServer(t)

	if quit := srv.handleLine(`{"action":"ping","request_id":"r1"}`); quit {
		t.Fatal("ping must not stop the loop")
	}

	resp := lastResponse(t, out)
	if resp["type"] != "ok" {
		t.Errorf("type = %v, want ok", resp["type"])
	}
	if resp["request_id"] != "r1" {
		t.Errorf("request_id = %v, want r1", resp["request_id"])
	}
}

func TestHandleLineVersion(t *testing.T) {
	srv, out := newTestServer(t)

	srv.handleLine(`{"action":"version"}`)

	resp := lastResponse(t, out)
	if resp["type"] != "version" {
		t.Errorf("type = %v, want version", resp["type"])
	}
	if v, _ := resp["version"].(string); v == "" {
		t.Error("Expected a version string")
	}
}

func TestHandleLineDispatch(t *testing.T) {
	srv, out := newTestServer(t)

	srv.handleLine(`{"action":"append_channels","request_id":7,"items":[{"id":"a","name":"alpha"}],"nextToken":"t1"}`)

	resp := lastResponse(t, out)
	if resp["type"] != "state" {
		t.Fatalf("type = %v, want state (%v)", resp["type"], resp["message"])
	}
	if resp["request_id"] != "7" {
		t.Errorf("request_id = %v, want 7", resp["request_id"])
	}

	st, ok := resp["state"].(map[string]any)
	if !ok {
		t.Fatalf("Expected state object, got %T", resp["state"])
	}
	channels := st["channels"].(map[string]any)
	items := channels["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("Expected 1 channel in response, got %d", len(items))
	}
	if channels["nextToken"] != "t1" {
		t.Errorf("nextToken = %v, want t1", channels["nextToken"])
	}

	// The session committed the same state the response carries.
	if got := srv.sess.State(); len(got.Channels.Items) != 1 || got.Channels.Items[0].ID != "a" {
		t.Errorf("Session state = %+v", got.Channels.Items)
	}
}

func TestHandleLineGetState(t *testing.T) {
	srv, out := newTestServer(t)
	srv.handleLine(`{"action":"set_my_info","profile":{"id":"user-1"}}`)

	srv.handleLine(`{"action":"get_state"}`)

	resp := lastResponse(t, out)
	if resp["type"] != "state" {
		t.Fatalf("type = %v, want state", resp["type"])
	}
	st := resp["state"].(map[string]any)
	me := st["me"].(map[string]any)
	if me["id"] != "user-1" {
		t.Errorf("me.id = %v, want user-1", me["id"])
	}
}

func TestHandleLineUnknownAction(t *testing.T) {
	srv, out := newTestServer(t)

	if quit := srv.handleLine(`{"action":"set_theme","request_id":"r9"}`); quit {
		t.Fatal("Unknown action must not stop the loop")
	}

	resp := lastResponse(t, out)
	if resp["type"] != "error" {
		t.Fatalf("type = %v, want error", resp["type"])
	}
	msg, _ := resp["message"].(string)
	if !strings.Contains(msg, "set_theme") {
		t.Errorf("Expected message to name the offending kind, got %q", msg)
	}
	if resp["request_id"] != "r9" {
		t.Errorf("request_id = %v, want r9", resp["request_id"])
	}
}

func TestHandleLineMissingLocator(t *testing.T) {
	srv, out := newTestServer(t)

	srv.handleLine(`{"action":"set_messages","messages":{"items":[]}}`)

	resp := lastResponse(t, out)
	if resp["type"] != "error" {
		t.Fatalf("type = %v, want error", resp["type"])
	}
	if msg, _ := resp["message"].(string); !strings.Contains(msg, "channelId") {
		t.Errorf("Expected message to name the missing field, got %q", msg)
	}
}

func TestHandleLineInvalidJSON(t *testing.T) {
	srv, out := newTestServer(t)

	srv.handleLine(`{"action":`)

	resp := lastResponse(t, out)
	if resp["type"] != "error" {
		t.Fatalf("type = %v, want error", resp["type"])
	}
	if resp["message"] != "Invalid JSON" {
		t.Errorf("message = %v", resp["message"])
	}
}

func TestHandleLineMissingAction(t *testing.T) {
	srv, out := newTestServer(t)

	srv.handleLine(`{"request_id":"r1"}`)

	resp := lastResponse(t, out)
	if resp["type"] != "error" {
		t.Fatalf("type = %v, want error", resp["type"])
	}
	if msg, _ := resp["message"].(string); !strings.Contains(msg, "action") {
		t.Errorf("Expected message to name the missing field, got %q", msg)
	}
}

func TestHandleLineShutdown(t *testing.T) {
	srv, out := newTestServer(t)

	if quit := srv.handleLine(`{"action":"shutdown","request_id":"r1"}`); !quit {
		t.Fatal("Expected shutdown to stop the loop")
	}

	resp := lastResponse(t, out)
	if resp["type"] != "ok" {
		t.Errorf("type = %v, want ok", resp["type"])
	}
}

func TestHandleLineBlankLine(t *testing.T) {
	srv, out := newTestServer(t)

	if quit := srv.handleLine("   "); quit {
		t.Fatal("Blank line must not stop the loop")
	}
	if out.Len() != 0 {
		t.Errorf("Expected no response for a blank line, got %q", out.String())
	}
}

func TestHandleLineSequence(t *testing.T) {
	srv, _ := newTestServer(t)

	lines := []string{
		`{"action":"set_channels","channels":{"items":[{"id":"a"},{"id":"b"}],"nextToken":"t1"}}`,
		`{"action":"prepend_message","message":{"id":"m1","messageChannelId":"b","body":"hi"}}`,
		`{"action":"move_to_front","channelId":"b"}`,
	}
	for _, line := range lines {
		if quit := srv.handleLine(line); quit {
			t.Fatalf("Unexpected quit on %s", line)
		}
	}

	got := srv.sess.State()
	if len(got.Channels.Items) != 2 || got.Channels.Items[0].ID != "b" {
		t.Fatalf("Expected channel b moved to front, got %+v", got.Channels.Items)
	}
	msgs := got.Channels.Items[0].Messages.Items
	if len(msgs) != 1 || msgs[0].Body != "hi" {
		t.Errorf("Expected message delivered to channel b, got %+v", msgs)
	}
}
