package s7

import (
	"regexp"
	"strconv"
	"strings"
)

// Regular expressions for the address mini-language described in spec §4.C.
// Longer type-letter alternatives are listed first so the regexp engine
// cannot stop at a shorter prefix (e.g. "WS" must be tried before "W").
const reTypeLetters = `(DI|DW|LR|WS|X|B|C|I|W|R|S)`

var (
	reDBAddr   = regexp.MustCompile(`^DB(\d+),` + reTypeLetters + `(\d+)(?:\.(\d+))?$`)
	reAreaAddr = regexp.MustCompile(`^([IEQAM])` + reTypeLetters + `(\d+)(?:\.(\d+))?$`)
	reShortBit = regexp.MustCompile(`^([IEQAM])(\d+)\.(\d+)$`)
	reTimerCtr = regexp.MustCompile(`^([TC])(\d+)$`)
)

var letterToType = map[string]DataType{
	"X":  Bit,
	"B":  Byte,
	"C":  Char,
	"I":  Int,
	"W":  Word,
	"DI": DInt,
	"DW": DWord,
	"R":  Real,
	"LR": LReal,
	"S":  String,
	"WS": WString,
}

var letterToArea = map[byte]Area{
	'I': AreaInput,
	'E': AreaInput,
	'Q': AreaOutput,
	'A': AreaOutput,
	'M': AreaMerker,
}

// ParseAddress parses a textual S7 address into a Tag. Supported forms:
//
//	DB<n>,<type><offset>[.<len_or_bit>]   e.g. "DB1,I30", "DB1,X0.6", "DB10,S20.254"
//	<area><type><offset>[.<bit>]          e.g. "MW2", "MX0.6", "IR4"
//	<area><offset>.<bit>                  e.g. "M0.6" (short bit form)
//	T<n> | C<n>                           timer / counter, word-sized
//
// area is one of I, E, Q, A, M (E and A are the German Eingang/Ausgang
// aliases for I and Q). Returns an AddressFormatError on any deviation from
// the grammar.
func ParseAddress(text string) (Tag, error) {
	addr := strings.ToUpper(strings.TrimSpace(text))
	if addr == "" {
		return Tag{}, &AddressFormatError{Text: text, Reason: "empty address"}
	}

	if m := reDBAddr.FindStringSubmatch(addr); m != nil {
		db, _ := strconv.Atoi(m[1])
		return buildTag(text, AreaDB, db, m[2], m[3], m[4])
	}
	if m := reAreaAddr.FindStringSubmatch(addr); m != nil {
		return buildTag(text, letterToArea[m[1][0]], 0, m[2], m[3], m[4])
	}
	if m := reShortBit.FindStringSubmatch(addr); m != nil {
		start, _ := strconv.Atoi(m[2])
		bit, err := strconv.Atoi(m[3])
		if err != nil || bit < 0 || bit > 7 {
			return Tag{}, &AddressFormatError{Text: text, Reason: "bit offset must be 0-7"}
		}
		t, err := NewTag(letterToArea[m[1][0]], 0, Bit, start, bit, 1)
		return finish(text, t, err)
	}
	if m := reTimerCtr.FindStringSubmatch(addr); m != nil {
		area := AreaTimer
		if m[1] == "C" {
			area = AreaCounter
		}
		n, _ := strconv.Atoi(m[2])
		t, err := NewTag(area, 0, Word, n, 0, 1)
		return finish(text, t, err)
	}

	return Tag{}, &AddressFormatError{Text: text, Reason: "does not match any recognized address form"}
}

// buildTag interprets the common <type><offset>[.<suffix>] shape shared by
// the DB and area-letter forms: the suffix is a bit offset for BIT types and
// an element/character length for everything else.
func buildTag(orig string, area Area, db int, typeLetter, offsetStr, suffix string) (Tag, error) {
	dt, ok := letterToType[typeLetter]
	if !ok {
		return Tag{}, &AddressFormatError{Text: orig, Reason: "unknown type letter"}
	}
	start, err := strconv.Atoi(offsetStr)
	if err != nil {
		return Tag{}, &AddressFormatError{Text: orig, Reason: "invalid offset"}
	}

	bit, length := 0, 1
	if dt == Bit {
		if suffix != "" {
			bit, err = strconv.Atoi(suffix)
			if err != nil || bit < 0 || bit > 7 {
				return Tag{}, &AddressFormatError{Text: orig, Reason: "bit offset must be 0-7"}
			}
		}
	} else if suffix != "" {
		length, err = strconv.Atoi(suffix)
		if err != nil || length < 1 {
			return Tag{}, &AddressFormatError{Text: orig, Reason: "length must be a positive integer"}
		}
	}

	t, err := NewTag(area, db, dt, start, bit, length)
	return finish(orig, t, err)
}

func finish(orig string, t Tag, err error) (Tag, error) {
	if err != nil {
		return Tag{}, &AddressFormatError{Text: orig, Reason: err.Error()}
	}
	return t, nil
}
