package mfs

import (
	"time"

	"golang.org/x/text/encoding/charmap"
)

// MacEpochOffset is the number of seconds between the Macintosh epoch
// (1904-01-01) and the Unix epoch (1970-01-01).
const MacEpochOffset = 2082844800

// MacEpoch is the instant a Macintosh timestamp of 0 denotes.
var MacEpoch = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)

// MacTimeToTime converts a Macintosh timestamp to a [time.Time] in UTC.
func MacTimeToTime(timestamp uint32) time.Time {
	return time.Unix(int64(timestamp)-MacEpochOffset, 0).UTC()
}

// TimeToMacTime converts a [time.Time] to a Macintosh timestamp. Times outside
// the representable range are clamped.
func TimeToMacTime(t time.Time) uint32 {
	seconds := t.Unix() + MacEpochOffset
	if seconds < 0 {
		return 0
	}
	if seconds > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(seconds)
}

// DecodeName converts a Mac OS Roman name to UTF-8.
func DecodeName(raw []byte) string {
	decoded, err := charmap.Macintosh.NewDecoder().Bytes(raw)
	if err != nil {
		// Every byte value is defined in Mac OS Roman, so this only happens if
		// the decoder itself is broken.
		return string(raw)
	}
	return string(decoded)
}

// EncodeName converts a UTF-8 name to Mac OS Roman. It fails if the name
// contains characters with no Mac OS Roman equivalent.
func EncodeName(name string) ([]byte, error) {
	return charmap.Macintosh.NewEncoder().Bytes([]byte(name))
}
