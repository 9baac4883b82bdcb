package narrate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/reelay/reelay/internal/domain"
)

// maxAttempts bounds key rotation within a single Speak call.
const maxAttempts = 3

// synthesizer abstracts the narration provider (consumer-defined interface)
type synthesizer interface {
	Synthesize(ctx context.Context, key, text string) ([]byte, error)
}

// audioSink abstracts audio playback (consumer-defined interface).
// Play starts playback, invokes onDone when it ends naturally, and returns
// a stop function that halts playback immediately.
type audioSink interface {
	Play(audio []byte, onDone func()) (stop func(), err error)
}

// session is one active playback
type session struct {
	id       string
	stop     func() // nil while the sink is still starting
	finished bool   // onDone fired before Play returned
}

// Service drives single-flight narration playback through the rotating key
// pool. At most one session is ever requesting or playing; starting a new
// Speak cancels the prior session first. Subscribers observe playback state
// as a boolean: true on start, false on end, cancel, or any failure.
//
// Narration is strictly best-effort: Speak never returns an error to the
// caller. A failure is observable only through the subscribed state.
type Service struct {
	provider synthesizer
	pool     domain.PoolStore
	sink     audioSink
	logger   *slog.Logger

	speakMu sync.Mutex // Serializes Speak attempts against the rotation index

	mu      sync.Mutex // Protects session and subscribers
	session *session
	subs    map[int]func(bool)
	nextSub int
}

// NewService creates a narration service.
func NewService(provider synthesizer, pool domain.PoolStore, sink audioSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		pool:     pool,
		sink:     sink,
		logger:   logger,
		subs:     make(map[int]func(bool)),
	}
}

// Subscribe registers a playback-state listener and returns its
// unsubscribe function.
func (s *Service) Subscribe(fn func(playing bool)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Speak narrates text. Any in-flight narration is cancelled first. On an
// auth or quota rejection the persisted index advances by one and the call
// retries with the next key, up to maxAttempts total; exhausting the bound,
// or any transient failure, aborts silently with a false notification.
func (s *Service) Speak(ctx context.Context, text string) {
	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	s.Cancel()

	clean := stripNonSpeakable(text)
	if clean == "" {
		return
	}

	id := uuid.NewString()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cfg, err := s.pool.LoadPool()
		if err != nil {
			s.logger.Error("failed to load key pool", "error", err)
			s.notify(false)
			return
		}
		key, index, ok := cfg.Current()
		if !ok {
			s.logger.Warn("narration key pool is empty")
			s.notify(false)
			return
		}

		audio, err := s.provider.Synthesize(ctx, key, clean)
		if err == nil {
			s.startPlayback(id, audio)
			return
		}

		if errors.Is(err, domain.ErrAuthFailed) || errors.Is(err, domain.ErrQuotaExhausted) {
			s.logger.Info("rotating narration key", "session", id, "attempt", attempt, "error", err)
			if _, aerr := s.pool.AdvanceIndex(index); aerr != nil {
				s.logger.Error("failed to advance key index", "error", aerr)
			}
			continue
		}

		// Transient provider failure: no rotation, silent degradation.
		s.logger.Debug("narration unavailable", "session", id, "error", err)
		s.notify(false)
		return
	}

	s.logger.Warn("narration retries exhausted", "session", id, "attempts", maxAttempts)
	s.notify(false)
}

// startPlayback hands audio to the sink and records the active session.
// The session is registered before Play so that an onDone firing inside
// Play (a zero-length clip can end the player immediately) still finds
// its session and the terminal false is not lost.
func (s *Service) startPlayback(id string, audio []byte) {
	sess := &session{id: id}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	stop, err := s.sink.Play(audio, func() { s.finishSession(id) })
	if err != nil {
		s.logger.Error("playback failed to start", "session", id, "error", err)
		s.mu.Lock()
		if s.session == sess {
			s.session = nil
		}
		s.mu.Unlock()
		s.notify(false)
		return
	}

	s.mu.Lock()
	current := s.session == sess
	finished := sess.finished
	if current {
		if finished {
			s.session = nil
		} else {
			sess.stop = stop
		}
	}
	s.mu.Unlock()

	if !current {
		// Cancelled or replaced while the sink was starting.
		stop()
		return
	}

	s.logger.Debug("narration playing", "session", id, "bytes", len(audio))
	s.notify(true)
	if finished {
		s.notify(false)
	}
}

// finishSession clears the session when playback ends naturally. A stale id
// means the session was already cancelled or replaced. When playback ends
// before Play has returned, the session is only marked finished and
// startPlayback delivers the false after its true, keeping subscribers'
// state transitions ordered.
func (s *Service) finishSession(id string) {
	s.mu.Lock()
	sess := s.session
	current := sess != nil && sess.id == id
	pending := current && sess.stop == nil
	if pending {
		sess.finished = true
	} else if current {
		s.session = nil
	}
	s.mu.Unlock()

	if current && !pending {
		s.notify(false)
	}
}

// Cancel synchronously stops any active playback, releases its resources,
// and notifies subscribers false. No-op when idle.
func (s *Service) Cancel() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		return
	}
	if sess.stop != nil {
		sess.stop()
	}
	s.logger.Debug("narration cancelled", "session", sess.id)
	s.notify(false)
}

// notify fans a state change out to subscribers. Listeners run outside the
// lock so they may subscribe or unsubscribe reentrantly.
func (s *Service) notify(playing bool) {
	s.mu.Lock()
	listeners := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(playing)
	}
}

// stripNonSpeakable drops decorative glyphs, emoji, and other symbol runes
// that a narrator cannot speak, keeping letters, digits, punctuation, and
// whitespace.
func stripNonSpeakable(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsPunct(r) ||
			unicode.IsSpace(r) || unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
