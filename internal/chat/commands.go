package chat

import (
	"errors"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// command describes one slash command. Handlers run with the session mutex
// held and receive the first argument token, if any.
type command struct {
	usage     string
	needsArg  bool
	needsNick bool
	run       func(s *Session, arg string)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"NICK":  {usage: "/nick <name>", needsArg: true, run: (*Session).cmdNick},
		"JOIN":  {usage: "/join <channel>", needsArg: true, needsNick: true, run: (*Session).cmdJoin},
		"CHAN":  {usage: "/chan <channel>", needsArg: true, needsNick: true, run: (*Session).cmdChan},
		"PART":  {usage: "/part <channel>", needsArg: true, needsNick: true, run: (*Session).cmdPart},
		"NAMES": {usage: "/names <channel>", needsArg: true, run: (*Session).cmdNames},
		"USERS": {usage: "/users", run: (*Session).cmdUsers},
		"LIST":  {usage: "/list", run: (*Session).cmdList},
		"HELP":  {usage: "/help", run: (*Session).cmdHelp},
		"QUIT":  {usage: "/quit", run: (*Session).cmdQuit},
	}
}

// dispatch parses "<prefix><name>[ <arg>]" and runs the matching command.
// Tokens after the first argument are ignored.
func (s *Session) dispatch(line string) {
	fields := strings.Fields(strings.TrimPrefix(line, CommandPrefix))
	if len(fields) == 0 {
		s.reply("Bad command: ")
		return
	}

	name := fields[0]
	cmd, ok := commands[strings.ToUpper(name)]
	if !ok {
		s.replyf("Bad command: %s", name)
		return
	}

	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}
	if cmd.needsArg && arg == "" {
		s.replyf("Command needs argument: %s", strings.ToLower(name))
		return
	}
	if cmd.needsNick && !s.registered {
		s.reply("Set a nick first: /nick <name>")
		return
	}

	cmd.run(s, arg)
}

func (s *Session) cmdNick(arg string) {
	if s.registered {
		s.replyf("Nick already set: %s", s.nick)
		return
	}

	nick := Nickname(arg)
	err := s.registry.Register(nick, s.out)
	switch {
	case errors.Is(err, ErrNickInUse):
		s.replyf("Nick in use: %s", nick)
		return
	case errors.Is(err, ErrInvalidName):
		s.replyf("Invalid name: %s", arg)
		return
	case err != nil:
		s.fail(err)
		return
	}

	s.nick = nick
	s.registered = true
	s.log.Info("nick registered", "nick", nick)
	s.replyf("Nick set: %s", nick)
}

func (s *Session) cmdJoin(arg string) {
	name := ChannelName(arg)
	err := s.registry.Join(s.nick, name)
	switch {
	case errors.Is(err, ErrInvalidName):
		s.replyf("Invalid name: %s", arg)
		return
	case err != nil:
		s.fail(err)
		return
	}

	s.active = name
	s.log.Info("channel joined", "nick", s.nick, "channel", name)
	s.replyf("Joined channel: %s", name)
}

func (s *Session) cmdChan(arg string) {
	name := ChannelName(arg)
	err := s.registry.CheckMember(s.nick, name)
	switch {
	case errors.Is(err, ErrNotMember):
		s.replyf("Not a member of channel: %s", name)
		return
	case err != nil:
		s.fail(err)
		return
	}

	s.active = name
	s.replyf("Active channel: %s", name)
}

func (s *Session) cmdPart(arg string) {
	name := ChannelName(arg)
	err := s.registry.Part(s.nick, name)
	switch {
	case errors.Is(err, ErrNotMember):
		s.replyf("Not a member of channel: %s", name)
		return
	case err != nil:
		s.fail(err)
		return
	}

	if s.active == name {
		s.active = ""
	}
	s.log.Info("channel left", "nick", s.nick, "channel", name)
	s.replyf("Left channel: %s", name)
}

func (s *Session) cmdNames(arg string) {
	nicks, err := s.registry.Members(ChannelName(arg))
	if errors.Is(err, ErrNoSuchChannel) {
		s.replyf("No such channel: %s", arg)
		return
	}
	if err != nil {
		s.fail(err)
		return
	}
	s.replyList(toStrings(nicks))
}

func (s *Session) cmdUsers(string) {
	s.replyList(toStrings(s.registry.ListNicks()))
}

func (s *Session) cmdList(string) {
	s.replyList(toStrings(s.registry.ListChannels()))
}

func (s *Session) cmdHelp(string) {
	usages := lo.MapToSlice(commands, func(_ string, cmd command) string {
		return cmd.usage
	})
	slices.Sort(usages)
	s.replyList(usages)
}

func (s *Session) cmdQuit(string) {
	s.reply("Goodbye")
	if err := s.out.Close(); err != nil {
		s.log.Warn("closing connection on quit", "nick", s.nick, "error", err)
	}
}

func toStrings[T ~string](items []T) []string {
	return lo.Map(items, func(item T, _ int) string {
		return string(item)
	})
}
