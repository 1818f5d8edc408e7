package ams

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/srg/blams/internal/ringchan"
)

// MediaState is the media information decoded from notifications.
type MediaState struct {
	Artist string
	Album  string
	Title  string

	DurationSeconds float64
	ElapsedSeconds  float64
	PlaybackRate    float64
	IsPlaying       bool

	// SupportedCommands lists the commands the media player currently accepts.
	SupportedCommands []RemoteCommand
}

func (s MediaState) clone() MediaState {
	s.SupportedCommands = slices.Clone(s.SupportedCommands)
	return s
}

// Field names the part of MediaState changed by a notification.
type Field int

const (
	FieldArtist Field = iota
	FieldAlbum
	FieldTitle
	FieldDuration
	FieldPlaybackInfo
	FieldSupportedCommands
)

func (f Field) String() string {
	switch f {
	case FieldArtist:
		return "artist"
	case FieldAlbum:
		return "album"
	case FieldTitle:
		return "title"
	case FieldDuration:
		return "duration"
	case FieldPlaybackInfo:
		return "playback"
	case FieldSupportedCommands:
		return "commands"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// MediaUpdate is published after every applied change. State is a snapshot
// taken right after the change.
type MediaUpdate struct {
	Field Field
	State MediaState
}

// Decoder turns AMS notifications into MediaState. Decode is expected to be
// called from a single goroutine; Snapshot may be called from any.
type Decoder struct {
	mu      sync.RWMutex
	state   MediaState
	updates *ringchan.Ring[MediaUpdate]
}

// NewDecoder creates a decoder. updates may be nil.
func NewDecoder(updates *ringchan.Ring[MediaUpdate]) *Decoder {
	return &Decoder{updates: updates}
}

// Snapshot returns a copy of the current media state.
func (d *Decoder) Snapshot() MediaState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.clone()
}

// Reset clears the media state.
func (d *Decoder) Reset() {
	d.mu.Lock()
	d.state = MediaState{}
	d.mu.Unlock()
}

// Decode applies a notification received on handle. It reports whether the
// payload changed the media state. Malformed payloads are ignored field by
// field and never reported.
func (d *Decoder) Decode(h HandleTable, handle uint16, payload []byte) bool {
	if !h.Tracks(handle) {
		return false
	}
	// a descriptor handle stands for its characteristic
	switch handle {
	case h.EntityUpdate.ValueHandle, h.EntityUpdateCCCD.Handle:
		return d.decodeEntityUpdate(payload)
	case h.RemoteCommand.ValueHandle, h.RemoteCommandCCCD.Handle:
		return d.decodeSupportedCommands(payload)
	}
	return false
}

func (d *Decoder) decodeEntityUpdate(payload []byte) bool {
	if len(payload) < 2 {
		return false
	}
	entity, attr, value := EntityID(payload[0]), payload[1], payload[2:]

	switch entity {
	case EntityPlayer:
		if PlayerAttribute(attr) != PlayerPlaybackInfo {
			return false
		}
		return d.apply(FieldPlaybackInfo, func(s *MediaState) bool {
			return parsePlaybackInfo(s, string(value))
		})

	case EntityTrack:
		text := strings.ToValidUTF8(string(value), "\uFFFD")
		switch TrackAttribute(attr) {
		case TrackArtist:
			return d.apply(FieldArtist, func(s *MediaState) bool { s.Artist = text; return true })
		case TrackAlbum:
			return d.apply(FieldAlbum, func(s *MediaState) bool { s.Album = text; return true })
		case TrackTitle:
			return d.apply(FieldTitle, func(s *MediaState) bool { s.Title = text; return true })
		case TrackDuration:
			return d.apply(FieldDuration, func(s *MediaState) bool {
				if text == "" {
					s.DurationSeconds = 0
					return true
				}
				v, ok := parseDecimal(strings.TrimSpace(text))
				if !ok {
					return false
				}
				s.DurationSeconds = v
				return true
			})
		}
	}
	return false
}

// parsePlaybackInfo applies "state,rate,elapsed". Missing or unparsable
// fields leave the previous value in place; fields past the third are ignored.
func parsePlaybackInfo(s *MediaState, text string) bool {
	fields := strings.Split(text, ",")
	changed := false

	if v, ok := field(fields, 0); ok && isDigits(v) {
		s.IsPlaying = v == "1"
		changed = true
	}
	if v, ok := field(fields, 1); ok {
		if rate, ok := parseDecimal(v); ok {
			s.PlaybackRate = rate
			changed = true
		}
	}
	if v, ok := field(fields, 2); ok {
		if elapsed, ok := parseDecimal(v); ok {
			s.ElapsedSeconds = elapsed
			changed = true
		}
	}
	return changed
}

// parseDecimal accepts plain decimal text: an optional sign, digits and at
// most one dot. Exponents, hex floats, NaN and Inf are rejected, as is any
// value that does not fit a finite float64.
func parseDecimal(v string) (float64, bool) {
	digits := strings.TrimLeft(v, "+-")
	if len(v)-len(digits) > 1 || strings.Count(digits, ".") > 1 {
		return 0, false
	}
	if !isDigits(strings.Replace(digits, ".", "", 1)) {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isDigits(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func field(fields []string, i int) (string, bool) {
	if i >= len(fields) {
		return "", false
	}
	v := strings.TrimSpace(fields[i])
	return v, v != ""
}

func (d *Decoder) decodeSupportedCommands(payload []byte) bool {
	cmds := make([]RemoteCommand, 0, len(payload))
	for _, b := range payload {
		if c := RemoteCommand(b); c.Valid() {
			cmds = append(cmds, c)
		}
	}
	return d.apply(FieldSupportedCommands, func(s *MediaState) bool {
		s.SupportedCommands = cmds
		return true
	})
}

func (d *Decoder) apply(f Field, mutate func(*MediaState) bool) bool {
	d.mu.Lock()
	if !mutate(&d.state) {
		d.mu.Unlock()
		return false
	}
	snapshot := d.state.clone()
	d.mu.Unlock()

	if d.updates != nil {
		d.updates.Send(MediaUpdate{Field: f, State: snapshot})
	}
	return true
}
