package command

import (
	"bytes"
	"fmt"
	"strconv"
)

// extractKeys applies desc's key-extraction rule to argv (whose raw byte
// spans within the original buffer are given by spans, index-aligned with
// argv), producing the ordered key position list.
func extractKeys(desc *Descriptor, argv [][]byte, spans []KeyPos) ([]KeyPos, error) {
	switch {
	case desc.has(FlagScriptNumkeys):
		return extractScriptKeys(argv, spans)
	case desc.has(FlagMovableKeys):
		return extractMovableKeys(desc, argv, spans)
	default:
		return extractNormalKeys(desc, argv, spans), nil
	}
}

// extractNormalKeys implements spec §4.1 step 6's "normal" rule:
// argv[FirstKey], argv[FirstKey+KeyStep], ... up to argv[LastKey].
func extractNormalKeys(desc *Descriptor, argv [][]byte, spans []KeyPos) []KeyPos {
	if desc.FirstKey == 0 {
		return nil
	}
	last := desc.LastKey
	switch {
	case last == LastKeyToEnd:
		last = len(argv) - 1
	case last < 0:
		last = len(argv) + last
	}
	if last >= len(argv) {
		last = len(argv) - 1
	}
	step := desc.KeyStep
	if step <= 0 {
		step = 1
	}
	var keys []KeyPos
	for i := desc.FirstKey; i <= last && i < len(argv); i += step {
		keys = append(keys, spans[i])
	}
	return keys
}

// extractScriptKeys implements the EVAL/EVALSHA/FCALL/FCALL_RO convention:
// argv[2] is a decimal non-negative numkeys, followed by that many keys.
func extractScriptKeys(argv [][]byte, spans []KeyPos) ([]KeyPos, error) {
	if len(argv) < 3 {
		return nil, fmt.Errorf("Failed to find keys of command %s", string(bytes.ToUpper(argv[0])))
	}
	numkeys, err := strconv.Atoi(string(argv[2]))
	if err != nil || numkeys < 0 {
		return nil, fmt.Errorf("Number of keys can't be negative")
	}
	if numkeys == 0 {
		return nil, nil
	}
	if 3+numkeys > len(argv) {
		return nil, fmt.Errorf("Number of keys can't be greater than number of args")
	}
	return append([]KeyPos(nil), spans[3:3+numkeys]...), nil
}

func extractMovableKeys(desc *Descriptor, argv [][]byte, spans []KeyPos) ([]KeyPos, error) {
	switch desc.Name {
	case "SORT", "SORT_RO":
		return extractSortKeys(argv, spans), nil
	case "GEORADIUS", "GEORADIUSBYMEMBER":
		return extractGeoRadiusKeys(argv, spans), nil
	case "XREAD", "XREADGROUP":
		return extractStreamKeys(argv, spans), nil
	default:
		// Fall back to the plain first-key rule for any other command
		// that carries FlagMovableKeys without a dedicated extractor.
		return extractNormalKeys(desc, argv, spans), nil
	}
}

// extractSortKeys handles SORT[_RO] key ... [STORE destkey]: the sorted
// key plus, if present, the STORE destination.
func extractSortKeys(argv [][]byte, spans []KeyPos) []KeyPos {
	if len(argv) < 2 {
		return nil
	}
	keys := []KeyPos{spans[1]}
	for i := 2; i < len(argv)-1; i++ {
		if equalsFold(argv[i], "STORE") {
			keys = append(keys, spans[i+1])
			break
		}
	}
	return keys
}

// extractGeoRadiusKeys handles GEORADIUS[BYMEMBER] key ... [STORE key]
// [STOREDIST key]: the searched key plus any STORE/STOREDIST destinations.
func extractGeoRadiusKeys(argv [][]byte, spans []KeyPos) []KeyPos {
	if len(argv) < 2 {
		return nil
	}
	keys := []KeyPos{spans[1]}
	for i := 2; i < len(argv)-1; i++ {
		if equalsFold(argv[i], "STORE") || equalsFold(argv[i], "STOREDIST") {
			keys = append(keys, spans[i+1])
		}
	}
	return keys
}

// streamOptionWidth is how many argv slots (including the option token
// itself) each XREAD/XREADGROUP option consumes before the next token is
// examined. This lets the STREAMS-keyword scan skip over option *values*
// such as a group or consumer name that happens to spell "streams",
// without mistaking them for the keyword itself (spec §4.1 step 6,
// scenario 4).
var streamOptionWidth = map[string]int{
	"GROUP": 3, // GROUP <group> <consumer>
	"COUNT": 2,
	"BLOCK": 2,
	"NOACK": 1,
}

// extractStreamKeys implements the XREAD/XREADGROUP rule: scan for the
// standalone STREAMS token, then take the first half of the remaining
// arguments as keys (the second half are stream IDs).
func extractStreamKeys(argv [][]byte, spans []KeyPos) []KeyPos {
	i := 1
	streamsAt := -1
	for i < len(argv) {
		tok := argv[i]
		if equalsFold(tok, "STREAMS") {
			streamsAt = i
			break
		}
		if w, ok := streamOptionWidth[upper(tok)]; ok {
			i += w
			continue
		}
		i++
	}
	if streamsAt == -1 {
		return nil
	}
	rest := argv[streamsAt+1:]
	restSpans := spans[streamsAt+1:]
	half := len(rest) / 2
	if half == 0 {
		return nil
	}
	return append([]KeyPos(nil), restSpans[:half]...)
}

func equalsFold(b []byte, s string) bool {
	return bytes.EqualFold(b, []byte(s))
}

func upper(b []byte) string {
	return string(bytes.ToUpper(b))
}
