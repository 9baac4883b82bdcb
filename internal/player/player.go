package player

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"
)

// audioPlayer defines a single way to launch an audio player
type audioPlayer struct {
	command string   // Binary to look up in PATH
	args    []string // Flags producing silent, exit-on-end playback
}

// players registry - candidates tried in order per platform
var players = map[string][]audioPlayer{
	"darwin": {
		{command: "afplay"},
		{command: "mpv", args: []string{"--no-terminal", "--no-video"}},
		{command: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	},
	"linux": {
		{command: "mpv", args: []string{"--no-terminal", "--no-video"}},
		{command: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
		{command: "mpg123", args: []string{"-q"}},
	},
	"windows": {
		{command: "mpv", args: []string{"--no-terminal", "--no-video"}},
		{command: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	},
}

// Player plays narration audio through an external player process.
type Player struct {
	command string   // configured player command, empty for auto-detect
	args    []string // additional arguments for the player
	logger  *slog.Logger
}

// NewPlayer creates a Player. An empty command auto-detects a player from
// the platform candidates at play time.
func NewPlayer(command string, args []string, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{command: command, args: args, logger: logger}
}

// Play writes audio to a temp file and starts the player on it. onDone runs
// once when playback ends naturally; the returned stop kills the player
// immediately. The temp file is removed either way.
func (p *Player) Play(audio []byte, onDone func()) (stop func(), err error) {
	tmp, err := os.CreateTemp("", "narration-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to stage audio: %w", err)
	}
	path := tmp.Name()
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to stage audio: %w", err)
	}
	tmp.Close()

	cmd, err := p.resolveCommand(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to start player: %w", err)
	}

	p.logger.Debug("audio player started", "command", cmd.Path, "pid", cmd.Process.Pid)

	var once sync.Once
	stopped := false
	var mu sync.Mutex

	go func() {
		cmd.Wait()
		once.Do(func() { os.Remove(path) })

		mu.Lock()
		wasStopped := stopped
		mu.Unlock()
		if !wasStopped {
			onDone()
		}
	}()

	stop = func() {
		mu.Lock()
		stopped = true
		mu.Unlock()
		cmd.Process.Kill()
		once.Do(func() { os.Remove(path) })
	}
	return stop, nil
}

// resolveCommand builds the player command: the configured one if set,
// otherwise the first platform candidate found in PATH.
func (p *Player) resolveCommand(path string) (*exec.Cmd, error) {
	if p.command != "" {
		if _, err := exec.LookPath(p.command); err != nil {
			return nil, fmt.Errorf("configured player %q not found: %w", p.command, err)
		}
		args := append(append([]string{}, p.args...), path)
		return exec.Command(p.command, args...), nil
	}

	candidates, ok := players[runtime.GOOS]
	if !ok {
		candidates = players["linux"]
	}
	for _, candidate := range candidates {
		if _, err := exec.LookPath(candidate.command); err != nil {
			p.logger.Debug("player not available", "command", candidate.command)
			continue
		}
		args := append(append([]string{}, candidate.args...), path)
		return exec.Command(candidate.command, args...), nil
	}
	return nil, fmt.Errorf("no audio player found for %s", runtime.GOOS)
}
