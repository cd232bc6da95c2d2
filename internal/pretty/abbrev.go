// Package pretty formats frames for terminal and log output.
package pretty

import "unicode/utf8"

// Abbrev shortens s for display. With no ranges it cuts anything longer
// than 12 bytes to 12; one range sets both limits; two set the maximum
// length and the length to cut to.
func Abbrev(s string, ranges ...int) Abbreviated {
	maxLen := 12
	cutTo := 12
	if len(ranges) >= 2 {
		maxLen, cutTo = ranges[0], ranges[1]
	} else if len(ranges) == 1 {
		maxLen, cutTo = ranges[0], ranges[0]
	}
	return Abbreviated{
		Original: s,
		MaxLen:   maxLen,
		CutTo:    cutTo,
	}
}

type Abbreviated struct {
	Original string
	MaxLen   int
	CutTo    int
}

func (s Abbreviated) String() string {
	if len(s.Original) <= s.MaxLen {
		return s.Original
	}
	cut := s.CutTo
	if cut >= len(s.Original) {
		return s.Original
	}
	// Don't split a multibyte character.
	for cut > 0 && !utf8.RuneStart(s.Original[cut]) {
		cut--
	}
	return s.Original[:cut] + "…"
}
