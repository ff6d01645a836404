package chat

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type set[K comparable] map[K]struct{}

// user is one entry of the routing table: the outbox owning the nickname and
// the channels it has joined.
type user struct {
	outbox   Outbox
	channels set[ChannelName]
}

type channel struct {
	members set[Nickname]
}

// Registry is the process-wide chat state: registered nicknames with their
// routes, channels with their members, and the membership relation kept in
// both directions. A single mutex serializes every operation; it is held for
// map work only, never while a line is handed to an Outbox.
type Registry struct {
	mu       sync.Mutex
	log      *slog.Logger
	users    map[Nickname]*user
	channels map[ChannelName]*channel
	stats    Stats
}

// Stats is a point-in-time view of the Registry. The first two fields are
// current sizes, the rest are totals since start.
type Stats struct {
	Nicks           int    `json:"nicks"`
	Channels        int    `json:"channels"`
	Registrations   uint64 `json:"registrations"`
	ChannelsCreated uint64 `json:"channels_created"`
	ChannelsDeleted uint64 `json:"channels_deleted"`
	MessagesRelayed uint64 `json:"messages_relayed"`
}

// NewRegistry returns an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log,
		users:    make(map[Nickname]*user),
		channels: make(map[ChannelName]*channel),
	}
}

// Register claims nick for the session behind out.
func (r *Registry) Register(nick Nickname, out Outbox) error {
	if err := validateName(string(nick)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.users[nick]; taken {
		return fmt.Errorf("%w: %s", ErrNickInUse, nick)
	}
	r.users[nick] = &user{outbox: out, channels: make(set[ChannelName])}
	r.stats.Registrations++
	r.log.Debug("nick registered", "nick", nick, "nicks", len(r.users))
	return nil
}

// Join adds nick to the channel, creating the channel on first use. Joining a
// channel twice is a no-op.
func (r *Registry) Join(nick Nickname, name ChannelName) error {
	if err := validateName(string(name)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[nick]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, nick)
	}
	r.link(nick, u, name)
	return nil
}

// CheckMember reports whether nick has joined the channel. Sessions use it to
// validate a change of active channel.
func (r *Registry) CheckMember(nick Nickname, name ChannelName) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.membership(nick, name)
	return err
}

// Part removes nick from the channel. The channel is deleted when its last
// member leaves.
func (r *Registry) Part(nick Nickname, name ChannelName) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.membership(nick, name)
	if err != nil {
		return err
	}
	r.unlink(nick, u, name)
	return nil
}

// Quit releases nick and all of its memberships. It reports whether nick was
// registered; quitting an unknown nick changes nothing.
func (r *Registry) Quit(nick Nickname) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[nick]
	if !ok {
		return false
	}
	for name := range u.channels {
		r.unlink(nick, u, name)
	}
	delete(r.users, nick)
	r.log.Debug("nick released", "nick", nick, "nicks", len(r.users))
	return true
}

// Broadcast hands a formatted message from one member to every other member
// of the channel and returns how many outboxes accepted it. Recipients are
// collected under the lock and written to after it is released.
func (r *Registry) Broadcast(from Nickname, name ChannelName, text string) (int, error) {
	recipients, err := r.recipients(from, name)
	if err != nil {
		return 0, err
	}

	line := FormatMessage(name, from, text)
	delivered := 0
	for _, out := range recipients {
		if out.SendLine(line) {
			delivered++
		}
	}
	return delivered, nil
}

func (r *Registry) recipients(from Nickname, name ChannelName) ([]Outbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchChannel, name)
	}

	outboxes := make([]Outbox, 0, len(ch.members))
	for nick := range ch.members {
		if nick == from {
			continue
		}
		u, ok := r.users[nick]
		if !ok {
			return nil, fmt.Errorf("%w: member %s of %s has no route", ErrCorrupted, nick, name)
		}
		outboxes = append(outboxes, u.outbox)
	}
	r.stats.MessagesRelayed++
	return outboxes, nil
}

// ListChannels returns the names of all live channels in lexicographic order.
func (r *Registry) ListChannels() []ChannelName {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := lo.Keys(r.channels)
	slices.Sort(names)
	return names
}

// ListNicks returns all registered nicknames in lexicographic order.
func (r *Registry) ListNicks() []Nickname {
	r.mu.Lock()
	defer r.mu.Unlock()

	nicks := lo.Keys(r.users)
	slices.Sort(nicks)
	return nicks
}

// Members returns the members of a channel in lexicographic order.
func (r *Registry) Members(name ChannelName) ([]Nickname, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchChannel, name)
	}
	nicks := lo.Keys(ch.members)
	slices.Sort(nicks)
	return nicks, nil
}

// Stats returns the current sizes and lifetime counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.stats
	stats.Nicks = len(r.users)
	stats.Channels = len(r.channels)
	return stats
}

// Verify audits the bookkeeping: membership must be symmetric, every member
// must have a route and no channel may be empty.
func (r *Registry) Verify() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, ch := range r.channels {
		if len(ch.members) == 0 {
			return fmt.Errorf("%w: channel %s is empty", ErrCorrupted, name)
		}
		for nick := range ch.members {
			u, ok := r.users[nick]
			if !ok {
				return fmt.Errorf("%w: member %s of %s has no route", ErrCorrupted, nick, name)
			}
			if _, ok := u.channels[name]; !ok {
				return fmt.Errorf("%w: %s lists %s but not the reverse", ErrCorrupted, name, nick)
			}
		}
	}
	for nick, u := range r.users {
		for name := range u.channels {
			ch, ok := r.channels[name]
			if !ok {
				return fmt.Errorf("%w: %s joined missing channel %s", ErrCorrupted, nick, name)
			}
			if _, ok := ch.members[nick]; !ok {
				return fmt.Errorf("%w: %s lists %s but not the reverse", ErrCorrupted, nick, name)
			}
		}
	}
	return nil
}

// membership must be called with r.mu held.
func (r *Registry) membership(nick Nickname, name ChannelName) (*user, error) {
	u, ok := r.users[nick]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, nick)
	}
	if _, ok := u.channels[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotMember, name)
	}
	return u, nil
}

// link and unlink are the only places membership changes. Both update the
// channel side and the user side together. Must be called with r.mu held.
func (r *Registry) link(nick Nickname, u *user, name ChannelName) {
	ch, ok := r.channels[name]
	if !ok {
		ch = &channel{members: make(set[Nickname])}
		r.channels[name] = ch
		r.stats.ChannelsCreated++
		r.log.Debug("channel created", "channel", name)
	}
	ch.members[nick] = struct{}{}
	u.channels[name] = struct{}{}
}

func (r *Registry) unlink(nick Nickname, u *user, name ChannelName) {
	delete(u.channels, name)

	ch, ok := r.channels[name]
	if !ok {
		return
	}
	delete(ch.members, nick)
	if len(ch.members) == 0 {
		delete(r.channels, name)
		r.stats.ChannelsDeleted++
		r.log.Debug("channel deleted", "channel", name)
	}
}
