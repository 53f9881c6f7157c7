package main

import (
	"bufio"
	_ "embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/decred/slog"

	"github.com/youruser/huddle/internal/config"
	"github.com/youruser/huddle/internal/localstore"
	"github.com/youruser/huddle/internal/logging"
	"github.com/youruser/huddle/internal/session"
	"github.com/youruser/huddle/internal/state"
)

//go:embed version.txt
var version string

// buildCommit is set via -ldflags or falls back to VCS info from debug.ReadBuildInfo.
var buildCommit string

// getBuildCommit returns the short commit hash, resolving from VCS build info if needed.
func getBuildCommit() string {
	if buildCommit != "" {
		return buildCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}

func versionString() string {
	v := strings.TrimSpace(version)
	if commit := getBuildCommit(); commit != "" {
		return v + " (" + commit + ")"
	}
	return v
}

// server routes protocol requests from the UI into the session.
type server struct {
	sess *session.Session
	log  slog.Logger

	respondMu sync.Mutex
	out       io.Writer
}

func main() {
	flagConfig := flag.String("config", "", "path to the config file")
	flagDataDir := flag.String("datadir", "", "override the data directory")
	flagDebugLevel := flag.String("debuglevel", "", "override the debug level")
	flagEphemeral := flag.Bool("ephemeral", false, "run without a store")
	flagVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *flagVersion {
		fmt.Printf("huddle %s\n", versionString())
		return
	}

	var cfg *config.Config
	var err error
	if *flagConfig != "" {
		cfg, err = config.LoadFrom(*flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "huddle: config: %v\n", err)
		os.Exit(1)
	}
	if *flagDataDir != "" {
		cfg.DataDir = *flagDataDir
	}
	if *flagDebugLevel != "" {
		cfg.DebugLevel = *flagDebugLevel
	}
	if *flagEphemeral {
		cfg.Ephemeral = true
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "huddle: log path: %v\n", err)
		os.Exit(1)
	}
	backend, err := logging.NewBackend(logPath, cfg.DebugLevel, cfg.MaxLogFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "huddle: logging: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	log := backend.Logger("MAIN")
	logBuildInfo(log)

	var db *localstore.DB
	if !cfg.Ephemeral {
		storeDir, err := cfg.StoreDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "huddle: store dir: %v\n", err)
			os.Exit(1)
		}
		db, err = localstore.Open(storeDir, backend.Logger("STOR"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "huddle: open store: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		log.Infof("Ephemeral mode, no store")
	}

	sess, err := session.Bootstrap(db, cfg.SnapshotKey, backend.Logger("SESS"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "huddle: bootstrap: %v\n", err)
		os.Exit(1)
	}

	srv := &server{sess: sess, log: log, out: os.Stdout}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if quit := srv.handleLine(scanner.Text()); quit {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			srv.respond("", map[string]any{
				"type":    "error",
				"message": "Request too large (max 1MB). Split the action payload.",
			})
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "stdin error: %v\n", err)
		os.Exit(1)
	}
}

func logBuildInfo(log slog.Logger) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		log.Infof("Build info: unavailable")
		return
	}

	var revision string
	var buildTime string
	var modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			buildTime = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}

	v := info.Main.Version
	if revision != "" {
		v = revision
	}
	if modified == "true" {
		v += " (modified)"
	}

	if buildTime != "" {
		log.Infof("Build: %s; go=%s; time=%s", v, runtime.Version(), buildTime)
		return
	}
	log.Infof("Build: %s; go=%s", v, runtime.Version())
}

// handleLine processes one request line. The returned flag is true when the
// caller should stop reading (shutdown).
func (s *server) handleLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}

	var req map[string]any
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.log.Errorf("Invalid JSON request: %s", line)
		s.respond("", map[string]any{"type": "error", "message": "Invalid JSON"})
		return false
	}

	action, _ := req["action"].(string)
	reqID := requestID(req)
	s.log.Debugf("Request [%s] (%d bytes)", action, len(line))

	switch action {
	case "":
		s.respond(reqID, map[string]any{"type": "error", "message": "Missing required field: action"})

	case "ping":
		s.respond(reqID, map[string]any{"type": "ok"})

	case "version":
		s.respond(reqID, map[string]any{"type": "version", "version": versionString()})

	case "get_state":
		s.respond(reqID, map[string]any{"type": "state", "state": s.sess.State()})

	case "shutdown":
		s.log.Infof("Shutdown requested")
		s.respond(reqID, map[string]any{"type": "ok"})
		return true

	default:
		s.dispatch(reqID, action, line)
	}

	return false
}

// dispatch decodes an action envelope and runs it through the session. A
// failed dispatch answers an error response; the loop keeps running.
func (s *server) dispatch(reqID, action, line string) {
	a, err := state.DecodeAction(action, []byte(line))
	if err != nil {
		s.log.Errorf("Rejected request: %v", err)
		s.respond(reqID, errorResponse(err))
		return
	}

	next, err := s.sess.Dispatch(a)
	if err != nil {
		s.respond(reqID, errorResponse(err))
		return
	}
	s.respond(reqID, map[string]any{"type": "state", "state": next})
}

func errorResponse(err error) map[string]any {
	var msg string
	switch {
	case errors.Is(err, localstore.ErrNotOpen):
		msg = "Local store is not open"
	default:
		msg = err.Error()
	}
	return map[string]any{"type": "error", "message": msg}
}

func (s *server) respond(reqID string, data map[string]any) {
	out, _ := json.Marshal(addResponseID(reqID, data))
	msgType, _ := data["type"].(string)
	s.respondMu.Lock()
	defer s.respondMu.Unlock()
	s.log.Tracef("Response [%s] %s", msgType, out)
	fmt.Fprintln(s.out, string(out))
}

func addResponseID(reqID string, data map[string]any) map[string]any {
	if reqID == "" {
		return data
	}
	data["request_id"] = reqID
	return data
}

func requestID(req map[string]any) string {
	switch v := req["request_id"].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}
