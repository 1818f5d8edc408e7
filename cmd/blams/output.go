package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/srg/blams/internal/ams"
)

var (
	labelColor = color.New(color.FgCyan).SprintFunc()
	playColor  = color.New(color.FgGreen).SprintFunc()
	pauseColor = color.New(color.FgYellow).SprintFunc()
)

// mediaJSON is the JSON form of ams.MediaState.
type mediaJSON struct {
	Artist            string   `json:"artist"`
	Album             string   `json:"album"`
	Title             string   `json:"title"`
	Duration          float64  `json:"duration"`
	Elapsed           float64  `json:"elapsed"`
	PlaybackRate      float64  `json:"playback_rate"`
	Playing           bool     `json:"playing"`
	SupportedCommands []string `json:"supported_commands"`
}

type updateJSON struct {
	Field string    `json:"field"`
	State mediaJSON `json:"state"`
}

func toMediaJSON(s ams.MediaState) mediaJSON {
	return mediaJSON{
		Artist:            s.Artist,
		Album:             s.Album,
		Title:             s.Title,
		Duration:          s.DurationSeconds,
		Elapsed:           s.ElapsedSeconds,
		PlaybackRate:      s.PlaybackRate,
		Playing:           s.IsPlaying,
		SupportedCommands: commandNames(s.SupportedCommands),
	}
}

func commandNames(cmds []ams.RemoteCommand) []string {
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.String())
	}
	return names
}

// formatClock renders seconds as m:ss, or h:mm:ss from one hour up.
func formatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatPlayback(s ams.MediaState) string {
	state := pauseColor("paused")
	if s.IsPlaying {
		state = playColor("playing")
	}
	return fmt.Sprintf("%s (rate %.2f, elapsed %s)", state, s.PlaybackRate, formatClock(s.ElapsedSeconds))
}

func formatCommands(cmds []ams.RemoteCommand) string {
	if len(cmds) == 0 {
		return "none"
	}
	return strings.Join(commandNames(cmds), ", ")
}

// mediaPrinter writes media updates as text lines or JSON lines.
type mediaPrinter struct {
	w    io.Writer
	json bool
}

func newMediaPrinter(w io.Writer, asJSON bool) *mediaPrinter {
	return &mediaPrinter{w: w, json: asJSON}
}

// Update prints the field changed by u.
func (p *mediaPrinter) Update(u ams.MediaUpdate) error {
	if p.json {
		return json.NewEncoder(p.w).Encode(updateJSON{Field: u.Field.String(), State: toMediaJSON(u.State)})
	}

	s := u.State
	var line string
	switch u.Field {
	case ams.FieldArtist:
		line = fmt.Sprintf("%s %s", labelColor("Artist:"), s.Artist)
	case ams.FieldAlbum:
		line = fmt.Sprintf("%s %s", labelColor("Album:"), s.Album)
	case ams.FieldTitle:
		line = fmt.Sprintf("%s %s", labelColor("Title:"), s.Title)
	case ams.FieldDuration:
		line = fmt.Sprintf("%s %s", labelColor("Duration:"), formatClock(s.DurationSeconds))
	case ams.FieldPlaybackInfo:
		line = fmt.Sprintf("%s %s", labelColor("Playback:"), formatPlayback(s))
	case ams.FieldSupportedCommands:
		line = fmt.Sprintf("%s %s", labelColor("Commands:"), formatCommands(s.SupportedCommands))
	default:
		return nil
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}

// State prints the complete media state.
func (p *mediaPrinter) State(s ams.MediaState) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(toMediaJSON(s))
	}

	_, err := fmt.Fprintf(p.w, "%s %s\n%s %s\n%s %s\n%s %s\n%s %s\n%s %s\n",
		labelColor("Artist:"), s.Artist,
		labelColor("Album:"), s.Album,
		labelColor("Title:"), s.Title,
		labelColor("Duration:"), formatClock(s.DurationSeconds),
		labelColor("Playback:"), formatPlayback(s),
		labelColor("Commands:"), formatCommands(s.SupportedCommands),
	)
	return err
}
