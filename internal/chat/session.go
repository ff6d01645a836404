package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Wire-level markers of the line protocol.
const (
	CommandPrefix = "/"
	ReplyPrefix   = "-- "
	EndOfList     = "End of list"
	Greeting      = "Welcome to linechat, set a nick with /nick <name>"
)

// State is the position of a Session in its lifecycle.
type State int

const (
	Unregistered State = iota
	RegisteredIdle
	RegisteredActive
	Terminated
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case RegisteredIdle:
		return "idle"
	case RegisteredActive:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FormatMessage renders a chat line as delivered to channel members.
func FormatMessage(name ChannelName, from Nickname, text string) string {
	return fmt.Sprintf("%s <%s> %s", name, from, text)
}

// Session is the per-connection protocol state. The transport feeds it lines
// from a single goroutine and calls Disconnect when the connection ends.
type Session struct {
	registry *Registry
	out      Outbox
	log      *slog.Logger

	mu         sync.Mutex
	nick       Nickname
	active     ChannelName
	registered bool
	terminated bool

	disconnect sync.Once
}

// NewSession binds a new, unregistered session to its outbox.
func NewSession(registry *Registry, out Outbox, log *slog.Logger) *Session {
	return &Session{
		registry: registry,
		out:      out,
		log:      log,
	}
}

// Greet sends the connection banner.
func (s *Session) Greet() {
	s.reply(Greeting)
}

// Nick returns the session's nickname, empty until NICK succeeds.
func (s *Session) Nick() Nickname {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nick
}

// ActiveChannel returns the channel plain lines are sent to, if any.
func (s *Session) ActiveChannel() (ChannelName, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != ""
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.terminated:
		return Terminated
	case !s.registered:
		return Unregistered
	case s.active == "":
		return RegisteredIdle
	default:
		return RegisteredActive
	}
}

// HandleLine processes one received line: a command when it starts with the
// command prefix, a chat message for the active channel otherwise.
func (s *Session) HandleLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return
	}
	if strings.HasPrefix(line, CommandPrefix) {
		s.dispatch(line)
		return
	}
	s.say(line)
}

// Disconnect releases everything the session holds in the Registry. It is
// safe to call more than once; only the first call has an effect.
func (s *Session) Disconnect() {
	s.disconnect.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.terminated = true
		s.active = ""
		if !s.registered {
			s.log.Debug("unregistered session disconnected")
			return
		}
		s.registry.Quit(s.nick)
		s.log.Info("nick quit", "nick", s.nick)
	})
}

// say broadcasts a chat line. Without a nick or an active channel the line is
// dropped silently.
func (s *Session) say(text string) {
	if !s.registered || s.active == "" {
		s.log.Debug("dropping message without active channel", "nick", s.nick)
		return
	}

	delivered, err := s.registry.Broadcast(s.nick, s.active, text)
	if err != nil {
		s.fail(err)
		return
	}
	s.log.Debug("message relayed", "nick", s.nick, "channel", s.active, "recipients", delivered)
}

func (s *Session) reply(text string) {
	if !s.out.SendLine(ReplyPrefix + text) {
		s.log.Warn("reply dropped", "nick", s.nick)
	}
}

func (s *Session) replyf(format string, args ...any) {
	s.reply(fmt.Sprintf(format, args...))
}

func (s *Session) replyList(items []string) {
	for _, item := range items {
		s.reply(item)
	}
	s.reply(EndOfList)
}

// fail handles an error no protocol reply covers.
func (s *Session) fail(err error) {
	if errors.Is(err, ErrCorrupted) {
		s.log.Error("registry invariant violated", "nick", s.nick, "error", err)
	} else {
		s.log.Error("unexpected registry error", "nick", s.nick, "error", err)
	}
	s.reply("Internal error")
}
