package settings

import (
	"fmt"
	"strconv"
	"strings"

	"firestige.xyz/otus-inject/internal/core"
)

// TCP flag bits as they appear in byte 13 of the TCP header.
const (
	FlagFIN uint8 = 0x01
	FlagSYN uint8 = 0x02
	FlagRST uint8 = 0x04
	FlagPSH uint8 = 0x08
	FlagACK uint8 = 0x10
	FlagURG uint8 = 0x20
	FlagECE uint8 = 0x40
	FlagCWR uint8 = 0x80
)

var flagNames = []struct {
	bit  uint8
	name string
}{
	{FlagFIN, "FIN"},
	{FlagSYN, "SYN"},
	{FlagRST, "RST"},
	{FlagPSH, "PSH"},
	{FlagACK, "ACK"},
	{FlagURG, "URG"},
	{FlagECE, "ECE"},
	{FlagCWR, "CWR"},
}

// ParseTCPFlags accepts flag names joined by '|', ',' or '+' ("SYN|ACK"),
// or a number ("0x12", "18").
func ParseTCPFlags(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty TCP flags", core.ErrConfigInvalid)
	}
	if v, err := strconv.ParseUint(s, 0, 8); err == nil {
		return uint8(v), nil
	}

	var flags uint8
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' || r == '+' })
	for _, part := range parts {
		part = strings.ToUpper(strings.TrimSpace(part))
		found := false
		for _, f := range flagNames {
			if f.name == part {
				flags |= f.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown TCP flag %q", core.ErrConfigInvalid, part)
		}
	}
	return flags, nil
}

// FormatTCPFlags renders flags as "SYN|ACK", or "none".
func FormatTCPFlags(flags uint8) string {
	var names []string
	for _, f := range flagNames {
		if flags&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
