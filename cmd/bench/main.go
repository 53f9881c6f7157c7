package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/youruser/huddle/internal/localstore"
	"github.com/youruser/huddle/internal/session"
	"github.com/youruser/huddle/internal/state"
)

type scenario struct {
	name  string   // display name
	lines []string // action envelopes dispatched in order
	check func(st state.State) error
}

var scenarios = []scenario{
	{
		name: "Paged channel fetch",
		lines: []string{
			`{"action":"append_channels","items":[{"id":"c1","name":"general"},{"id":"c2","name":"random"}],"nextToken":"p2"}`,
			`{"action":"append_channels","items":[{"id":"c3","name":"dev"},{"id":"c4","name":"ops"}],"nextToken":"p3"}`,
			`{"action":"append_channels","items":[{"id":"c5","name":"design"}],"nextToken":""}`,
		},
		check: func(st state.State) error {
			if err := wantChannelOrder(st, "c1", "c2", "c3", "c4", "c5"); err != nil {
				return err
			}
			if st.Channels.NextToken != "" {
				return fmt.Errorf("nextToken = %q after final page", st.Channels.NextToken)
			}
			return nil
		},
	},
	{
		name: "Append replaces duplicates",
		lines: []string{
			`{"action":"append_channels","items":[{"id":"c1","name":"general"},{"id":"c2","name":"random"}],"nextToken":"p2"}`,
			`{"action":"append_channels","items":[{"id":"c2","name":"random-renamed"},{"id":"c3","name":"dev"}],"nextToken":""}`,
		},
		check: func(st state.State) error {
			if err := wantChannelOrder(st, "c1", "c2", "c3"); err != nil {
				return err
			}
			c2 := channelByID(st, "c2")
			if c2.Name != "random-renamed" {
				return fmt.Errorf("c2 name = %q, want replacement applied", c2.Name)
			}
			return nil
		},
	},
	{
		name: "Realtime channel prepend",
		lines: []string{
			`{"action":"append_channels","items":[{"id":"old1"},{"id":"old2"}],"nextToken":""}`,
			`{"action":"prepend_channel","channel":{"id":"fresh","name":"incoming"}}`,
			`{"action":"prepend_channel","channel":{"id":"old2","name":"renamed"}}`,
		},
		check: func(st state.State) error {
			// old2 already existed, so its prepend replaces in place.
			if err := wantChannelOrder(st, "fresh", "old1", "old2"); err != nil {
				return err
			}
			if channelByID(st, "old2").Name != "renamed" {
				return fmt.Errorf("old2 kept stale name")
			}
			return nil
		},
	},
	{
		name: "Channel list refresh",
		lines: []string{
			`{"action":"set_channels","channels":{"items":[{"id":"a","name":"alpha"}],"nextToken":"t1"}}`,
			`{"action":"set_channels","channels":{"items":[{"id":"b","name":"beta"},{"id":"a","name":"alpha-2"}],"nextToken":"t2"}}`,
		},
		check: func(st state.State) error {
			if err := wantChannelOrder(st, "a", "b"); err != nil {
				return err
			}
			if channelByID(st, "a").Name != "alpha-2" {
				return fmt.Errorf("refresh did not replace channel a")
			}
			if st.Channels.NextToken != "t2" {
				return fmt.Errorf("nextToken = %q, want t2", st.Channels.NextToken)
			}
			return nil
		},
	},
	{
		name: "Message history and live feed",
		lines: []string{
			`{"action":"set_channels","channels":{"items":[{"id":"room"}],"nextToken":""}}`,
			`{"action":"set_messages","channelId":"room","messages":{"items":[{"id":"m3","messageChannelId":"room","body":"third"}],"nextToken":"older"}}`,
			`{"action":"append_messages","channelId":"room","messages":{"items":[{"id":"m2","messageChannelId":"room","body":"second"},{"id":"m1","messageChannelId":"room","body":"first"}],"nextToken":""}}`,
			`{"action":"prepend_message","message":{"id":"m4","messageChannelId":"room","body":"fourth"}}`,
			`{"action":"prepend_message","message":{"id":"m5","messageChannelId":"ghost","body":"dropped"}}`,
			`{"action":"append_messages","channelId":"archive","messages":{"items":[{"id":"a1","messageChannelId":"archive"}],"nextToken":"more"}}`,
		},
		check: func(st state.State) error {
			room := channelByID(st, "room")
			if room == nil {
				return fmt.Errorf("channel room missing")
			}
			got := make([]string, len(room.Messages.Items))
			for i, m := range room.Messages.Items {
				got[i] = m.ID
			}
			want := []string{"m4", "m3", "m2", "m1"}
			if strings.Join(got, " ") != strings.Join(want, " ") {
				return fmt.Errorf("room messages = %v, want %v", got, want)
			}
			// Messages for unknown channels are dropped, not adopted.
			if channelByID(st, "ghost") != nil {
				return fmt.Errorf("prepend to unknown channel created a channel")
			}
			// Paged history for an unknown channel stubs it in.
			archive := channelByID(st, "archive")
			if archive == nil {
				return fmt.Errorf("append_messages did not stub unknown channel")
			}
			if archive.Messages.NextToken != "more" {
				return fmt.Errorf("archive nextToken = %q, want more", archive.Messages.NextToken)
			}
			return nil
		},
	},
	{
		name: "Activity reordering",
		lines: []string{
			`{"action":"set_channels","channels":{"items":[{"id":"a"},{"id":"b"},{"id":"c"}],"nextToken":""}}`,
			`{"action":"move_to_front","channelId":"c"}`,
			`{"action":"move_to_front","channelId":"c"}`,
			`{"action":"move_to_front","channelId":"missing"}`,
			`{"action":"move_to_front","channelId":"b"}`,
		},
		check: func(st state.State) error {
			return wantChannelOrder(st, "b", "c", "a")
		},
	},
	{
		name: "Profile and metadata updates",
		lines: []string{
			`{"action":"set_my_info","profile":{"id":"me-1"}}`,
			`{"action":"set_channels","channels":{"items":[{"id":"a","name":"alpha","creatorId":"me-1"}],"nextToken":""}}`,
			`{"action":"update_channel","id":"a","name":"alpha-renamed","updatedAt":"2026-01-02T03:04:05Z"}`,
			`{"action":"update_channel","id":"missing","name":"nope"}`,
			`{"action":"set_my_info","profile":{"id":"me-2"}}`,
		},
		check: func(st state.State) error {
			if st.Me.ID != "me-2" {
				return fmt.Errorf("me.id = %q, want me-2", st.Me.ID)
			}
			a := channelByID(st, "a")
			if a.Name != "alpha-renamed" || a.UpdatedAt != "2026-01-02T03:04:05Z" {
				return fmt.Errorf("update_channel not applied: %+v", a)
			}
			if channelByID(st, "missing") != nil {
				return fmt.Errorf("update_channel created a channel")
			}
			return nil
		},
	},
	{
		name:  "Mixed burst",
		lines: burstLines(60),
		check: func(st state.State) error {
			if len(st.Channels.Items) == 0 {
				return fmt.Errorf("burst left no channels")
			}
			return nil
		},
	},
}

// burstLines builds an interleaved workload across n channels: a paged
// fetch, live prepends, history loads, and reordering.
func burstLines(n int) []string {
	var lines []string
	for i := 0; i < n; i += 10 {
		var items []string
		for j := i; j < i+10 && j < n; j++ {
			items = append(items, fmt.Sprintf(`{"id":"ch%03d","name":"channel %d"}`, j, j))
		}
		next := fmt.Sprintf("page%d", i/10+1)
		if i+10 >= n {
			next = ""
		}
		lines = append(lines, fmt.Sprintf(`{"action":"append_channels","items":[%s],"nextToken":%q}`, strings.Join(items, ","), next))
	}
	for i := 0; i < n; i++ {
		ch := fmt.Sprintf("ch%03d", i%n)
		lines = append(lines,
			fmt.Sprintf(`{"action":"prepend_message","message":{"id":"live%03d","messageChannelId":%q,"body":"hello"}}`, i, ch),
			fmt.Sprintf(`{"action":"move_to_front","channelId":%q}`, ch),
		)
		if i%7 == 0 {
			lines = append(lines, fmt.Sprintf(`{"action":"set_messages","channelId":%q,"messages":{"items":[{"id":"hist%03d","messageChannelId":%q}],"nextToken":"older"}}`, ch, i, ch))
		}
	}
	return lines
}

type testResult struct {
	name    string
	passed  bool
	elapsed time.Duration
	actions int
	kinds   map[string]kindTiming
	state   json.RawMessage // final state for passed runs
	err     string          // error details for failures
}

// kindTiming aggregates dispatch time per action kind.
type kindTiming struct {
	Count  int     `json:"count"`
	Millis float64 `json:"ms"`
}

// logEntry is the JSON structure written to log files.
type logEntry struct {
	Mode    string                `json:"mode"`
	Test    string                `json:"test"`
	Passed  bool                  `json:"passed"`
	Error   string                `json:"error,omitempty"`
	Elapsed float64               `json:"elapsed_seconds"`
	Actions int                   `json:"actions"`
	Kinds   map[string]kindTiming `json:"kind_timings,omitempty"`
	State   json.RawMessage       `json:"final_state,omitempty"`
}

func main() {
	mode := "store"
	testFilter := 0 // 0 = run all
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "--mode=") {
			mode = strings.TrimPrefix(arg, "--mode=")
		}
		if strings.HasPrefix(arg, "--test=") {
			fmt.Sscanf(strings.TrimPrefix(arg, "--test="), "%d", &testFilter)
		}
	}
	if mode != "store" && mode != "ephemeral" {
		fmt.Fprintf(os.Stderr, "invalid mode: %s (use 'store' or 'ephemeral')\n", mode)
		fmt.Fprintf(os.Stderr, "usage: go run ./cmd/bench [--mode=store|ephemeral] [--test=N]\n")
		os.Exit(1)
	}

	// Create log directory
	ts := time.Now().Format("20060102_150405")
	logDir := filepath.Join("cmd", "bench", "logs", fmt.Sprintf("%s_%s", ts, mode))
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log dir: %v\n", err)
		os.Exit(1)
	}

	// Header
	fmt.Printf("dispatch benchmark — mode: %s\n", mode)
	if testFilter > 0 {
		fmt.Printf("  (running test %d only)\n", testFilter)
	}
	fmt.Printf("  logs: %s/\n", logDir)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	passed := 0
	total := 0
	totalActions := 0
	var totalElapsed time.Duration

	for i, sc := range scenarios {
		if testFilter > 0 && i+1 != testFilter {
			continue
		}
		total++
		result := runScenario(mode, sc, i, len(scenarios))
		if result.passed {
			passed++
		}
		totalActions += result.actions
		totalElapsed += result.elapsed

		// Write log file
		writeLog(logDir, mode, i+1, sc, result)
	}

	// Summary
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Result: %d/%d passed | %d actions in %.1fms\n", passed, total, totalActions, totalElapsed.Seconds()*1000)
}

func writeLog(logDir, mode string, testNum int, sc scenario, result testResult) {
	entry := logEntry{
		Mode:    mode,
		Test:    fmt.Sprintf("%02d_%s", testNum, sc.name),
		Passed:  result.passed,
		Error:   result.err,
		Elapsed: result.elapsed.Seconds(),
		Actions: result.actions,
		Kinds:   result.kinds,
		State:   result.state,
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
		return
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("%02d.json", testNum))
	if err := os.WriteFile(logPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log: %v\n", err)
	}
}

func runScenario(mode string, sc scenario, index, total int) testResult {
	result := testResult{name: sc.name, actions: len(sc.lines)}

	var db *localstore.DB
	if mode == "store" {
		dir, err := os.MkdirTemp("", "huddle-bench-")
		if err != nil {
			result.err = fmt.Sprintf("temp dir: %v", err)
			printResult(index, total, result)
			return result
		}
		defer os.RemoveAll(dir)

		db, err = localstore.Open(filepath.Join(dir, "store"), nil)
		if err != nil {
			result.err = fmt.Sprintf("open store: %v", err)
			printResult(index, total, result)
			return result
		}
		defer db.Close()
	}

	sess, err := session.Bootstrap(db, "", nil)
	if err != nil {
		result.err = fmt.Sprintf("bootstrap: %v", err)
		printResult(index, total, result)
		return result
	}

	result.kinds = make(map[string]kindTiming)
	start := time.Now()
	for i, line := range sc.lines {
		act, err := decodeEnvelope(line)
		if err != nil {
			result.err = fmt.Sprintf("action %d: %v", i+1, err)
			printResult(index, total, result)
			return result
		}
		t0 := time.Now()
		next, err := sess.Dispatch(act)
		kt := result.kinds[act.Kind()]
		kt.Count++
		kt.Millis += time.Since(t0).Seconds() * 1000
		result.kinds[act.Kind()] = kt
		if err != nil {
			result.err = fmt.Sprintf("action %d (%s): %v", i+1, act.Kind(), err)
			printResult(index, total, result)
			return result
		}
		if err := verifyState(next); err != nil {
			result.err = fmt.Sprintf("action %d (%s): %v", i+1, act.Kind(), err)
			printResult(index, total, result)
			return result
		}
	}
	result.elapsed = time.Since(start)

	if db != nil {
		if err := verifySnapshot(sess, db); err != nil {
			result.err = err.Error()
			printResult(index, total, result)
			return result
		}
	}

	if err := sc.check(sess.State()); err != nil {
		result.err = err.Error()
		printResult(index, total, result)
		return result
	}

	result.passed = true
	result.state, _ = json.Marshal(sess.State())
	printResult(index, total, result)
	return result
}

// decodeEnvelope parses one request line the way the huddle binary does.
func decodeEnvelope(line string) (state.Action, error) {
	var env struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Action == "" {
		return nil, fmt.Errorf("missing action kind")
	}
	return state.DecodeAction(env.Action, []byte(line))
}

// verifyState checks the structural invariants every transition must
// preserve: unique channel ids, unique message ids per channel, and
// messages filed under the channel they are addressed to.
func verifyState(st state.State) error {
	seen := make(map[string]bool, len(st.Channels.Items))
	for _, ch := range st.Channels.Items {
		if seen[ch.ID] {
			return fmt.Errorf("duplicate channel %q", ch.ID)
		}
		seen[ch.ID] = true

		msgSeen := make(map[string]bool, len(ch.Messages.Items))
		for _, m := range ch.Messages.Items {
			if msgSeen[m.ID] {
				return fmt.Errorf("channel %q: duplicate message %q", ch.ID, m.ID)
			}
			msgSeen[m.ID] = true
			if m.MessageChannelID != "" && m.MessageChannelID != ch.ID {
				return fmt.Errorf("channel %q holds message %q addressed to %q", ch.ID, m.ID, m.MessageChannelID)
			}
		}
	}
	return nil
}

// verifySnapshot checks that the persisted snapshot matches the state the
// session reports, byte for byte.
func verifySnapshot(sess *session.Session, db *localstore.DB) error {
	want, err := json.Marshal(sess.State())
	if err != nil {
		return fmt.Errorf("marshal state: %v", err)
	}
	got, ok, err := db.Get(sess.Key())
	if err != nil {
		return fmt.Errorf("read snapshot: %v", err)
	}
	if !ok {
		return fmt.Errorf("no snapshot at %q", sess.Key())
	}
	if got != string(want) {
		return fmt.Errorf("snapshot at %q does not match session state", sess.Key())
	}
	return nil
}

func wantChannelOrder(st state.State, ids ...string) error {
	got := make([]string, len(st.Channels.Items))
	for i, ch := range st.Channels.Items {
		got[i] = ch.ID
	}
	if strings.Join(got, " ") != strings.Join(ids, " ") {
		return fmt.Errorf("channel order = %v, want %v", got, ids)
	}
	return nil
}

func channelByID(st state.State, id string) *state.Channel {
	for i := range st.Channels.Items {
		if st.Channels.Items[i].ID == id {
			return &st.Channels.Items[i]
		}
	}
	return nil
}

func printResult(index, total int, r testResult) {
	label := fmt.Sprintf("[%d/%d] %s", index+1, total, r.name)

	// Pad with dots to align result
	dots := 50 - len(label)
	if dots < 3 {
		dots = 3
	}

	if r.passed {
		fmt.Printf("%s %s PASS  (%.1fms, %d actions)\n", label, strings.Repeat(".", dots), r.elapsed.Seconds()*1000, r.actions)
	} else {
		fmt.Printf("%s %s FAIL  (%.1fms, %d actions)\n", label, strings.Repeat(".", dots), r.elapsed.Seconds()*1000, r.actions)
		fmt.Printf("      %s\n", r.err)
	}
}
