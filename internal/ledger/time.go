package ledger

import "time"

// RippleEpochOffset is the number of seconds between the Unix epoch and the
// ripple epoch (2000-01-01T00:00:00Z).
const RippleEpochOffset int64 = 946684800

// RippleTimeToUTC converts ripple-epoch seconds to a UTC timestamp.
func RippleTimeToUTC(rippleSeconds uint32) time.Time {
	return time.Unix(int64(rippleSeconds)+RippleEpochOffset, 0).UTC()
}

// UTCToRippleTime converts a timestamp to ripple-epoch seconds.
func UTCToRippleTime(t time.Time) uint32 {
	return uint32(t.Unix() - RippleEpochOffset)
}
