package ams

import (
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RemoteCommand is an AMS remote command id. It is written to the remote
// command characteristic as a single byte.
type RemoteCommand uint8

const (
	CommandPlay RemoteCommand = iota
	CommandPause
	CommandTogglePlayPause
	CommandNextTrack
	CommandPreviousTrack
	CommandVolumeUp
	CommandVolumeDown
	CommandAdvanceRepeatMode
	CommandAdvanceShuffleMode
	CommandSkipForward
	CommandSkipBackward
	CommandLikeTrack
	CommandDislikeTrack
	CommandBookmarkTrack
)

// commandNames keeps protocol order for listing.
var commandNames = func() *orderedmap.OrderedMap[RemoteCommand, string] {
	m := orderedmap.New[RemoteCommand, string]()
	m.Set(CommandPlay, "play")
	m.Set(CommandPause, "pause")
	m.Set(CommandTogglePlayPause, "toggle-play-pause")
	m.Set(CommandNextTrack, "next-track")
	m.Set(CommandPreviousTrack, "previous-track")
	m.Set(CommandVolumeUp, "volume-up")
	m.Set(CommandVolumeDown, "volume-down")
	m.Set(CommandAdvanceRepeatMode, "advance-repeat-mode")
	m.Set(CommandAdvanceShuffleMode, "advance-shuffle-mode")
	m.Set(CommandSkipForward, "skip-forward")
	m.Set(CommandSkipBackward, "skip-backward")
	m.Set(CommandLikeTrack, "like-track")
	m.Set(CommandDislikeTrack, "dislike-track")
	m.Set(CommandBookmarkTrack, "bookmark-track")
	return m
}()

func (c RemoteCommand) String() string {
	if name, ok := commandNames.Get(c); ok {
		return name
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// Valid reports whether c is a known AMS command id.
func (c RemoteCommand) Valid() bool {
	_, ok := commandNames.Get(c)
	return ok
}

// Encode returns the remote command write payload.
func (c RemoteCommand) Encode() []byte {
	return []byte{byte(c)}
}

// RemoteCommands returns every command in protocol order.
func RemoteCommands() []RemoteCommand {
	out := make([]RemoteCommand, 0, commandNames.Len())
	for pair := commandNames.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// ParseRemoteCommand accepts a command name ("next-track", "NextTrack",
// "next_track") or its numeric id.
func ParseRemoteCommand(s string) (RemoteCommand, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 0, 8); err == nil {
		c := RemoteCommand(n)
		if !c.Valid() {
			return 0, fmt.Errorf("unknown remote command id: %d", n)
		}
		return c, nil
	}

	key := normalizeCommandName(s)
	for pair := commandNames.Oldest(); pair != nil; pair = pair.Next() {
		if normalizeCommandName(pair.Value) == key {
			return pair.Key, nil
		}
	}
	return 0, fmt.Errorf("unknown remote command: %q", s)
}

func normalizeCommandName(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}
