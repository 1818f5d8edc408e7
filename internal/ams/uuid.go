package ams

import "github.com/go-ble/ble"

// Apple Media Service identifiers. The remote peer matches on these bit for bit.
var (
	ServiceUUID         = ble.MustParse("89D3502B-0F36-433A-8EF4-C502AD55F8DC")
	RemoteCommandUUID   = ble.MustParse("9B3C81D8-57B1-4A8A-B8DF-0E56F7CA51C2")
	EntityUpdateUUID    = ble.MustParse("2F7CABCE-808D-411F-9A0C-BB92BA96C102")
	EntityAttributeUUID = ble.MustParse("C6B2F38C-23AB-46D8-A6AB-A3A870BBD5D7")

	// CCCDUUID is the Client Characteristic Configuration descriptor (0x2902).
	CCCDUUID = ble.ClientCharacteristicConfigUUID
)

// CharacteristicName returns a human readable name for one of the AMS
// characteristic UUIDs, or "" when u is not one of them.
func CharacteristicName(u ble.UUID) string {
	switch {
	case u.Equal(RemoteCommandUUID):
		return "Remote Command"
	case u.Equal(EntityUpdateUUID):
		return "Entity Update"
	case u.Equal(EntityAttributeUUID):
		return "Entity Attribute"
	default:
		return ""
	}
}
