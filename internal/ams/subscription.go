package ams

// Entity and attribute identifiers used in entity update selectors and
// notifications.
type EntityID uint8

const (
	EntityPlayer EntityID = 0
	EntityQueue  EntityID = 1
	EntityTrack  EntityID = 2
)

type PlayerAttribute uint8

const (
	PlayerName         PlayerAttribute = 0
	PlayerPlaybackInfo PlayerAttribute = 1
	PlayerVolume       PlayerAttribute = 2
)

type TrackAttribute uint8

const (
	TrackArtist   TrackAttribute = 0
	TrackAlbum    TrackAttribute = 1
	TrackTitle    TrackAttribute = 2
	TrackDuration TrackAttribute = 3
)

// CCCDEnable returns the descriptor value that enables notifications.
func CCCDEnable() []byte {
	return []byte{0x01, 0x00}
}

// PlaybackInfoSelector returns the entity update write that registers for
// player playback info.
func PlaybackInfoSelector() []byte {
	return []byte{byte(EntityPlayer), byte(PlayerPlaybackInfo)}
}

// TrackAttributeSelector returns the entity update write that registers for
// artist, album, title and duration.
func TrackAttributeSelector() []byte {
	return []byte{byte(EntityTrack), byte(TrackArtist), byte(TrackAlbum), byte(TrackTitle), byte(TrackDuration)}
}

// subscribeCommands builds the writes issued once the CCCD of a
// characteristic is found. Only the CCCD write asks for confirmation.
func subscribeCommands(conn ConnID, cccd uint16, valueHandle uint16, entityUpdate bool) []Command {
	cmds := []Command{{
		Kind:    CmdWrite,
		Conn:    conn,
		Handle:  cccd,
		Value:   CCCDEnable(),
		Confirm: true,
	}}
	if !entityUpdate {
		return cmds
	}
	return append(cmds,
		Command{Kind: CmdWrite, Conn: conn, Handle: valueHandle, Value: PlaybackInfoSelector()},
		Command{Kind: CmdWrite, Conn: conn, Handle: valueHandle, Value: TrackAttributeSelector()},
	)
}
