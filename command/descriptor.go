// Package command implements the wire-level request parser and per-command
// key extractor: given one serialized RESP request, it identifies the
// command (including multi-token subcommands) and the byte spans of every
// key argument, without ever copying a key.
package command

// Flag bits on a Descriptor, mirroring the command table's per-command
// metadata (the "flags" field of the spec's command descriptor).
type Flag uint8

const (
	// FlagMovableKeys marks a command whose key positions cannot be
	// derived from first/last/step and need a dedicated extractor.
	FlagMovableKeys Flag = 1 << iota
	// FlagSubcommandDispatch marks a command that must be re-looked-up
	// together with argv[1] (e.g. "XGROUP DESTROY").
	FlagSubcommandDispatch
	// FlagScriptNumkeys marks the EVAL-family numkeys-prefixed key list.
	FlagScriptNumkeys
	// FlagNeedsKeys marks a command that must resolve at least one key;
	// an empty key list is a parse error for it.
	FlagNeedsKeys
)

// LastKeyToEnd is the sentinel for "last key runs to the end of argv".
const LastKeyToEnd = 1<<31 - 1

// Descriptor is the static, read-only metadata for one command (or one
// command+subcommand pair). The whole table is built once at package init
// and never mutated afterward, so it is safe for unsynchronized concurrent
// lookup.
type Descriptor struct {
	Name string
	// Arity: n >= 0 means argc must equal exactly n (including argv[0]);
	// negative means argc must be at least |n|.
	Arity int
	// FirstKey, LastKey, KeyStep describe the "normal" key-extraction
	// rule (spec §4.1 step 6). LastKey may be negative, counted from the
	// end of argv (-1 is the last argument). Ignored when FlagMovableKeys
	// or FlagScriptNumkeys is set.
	FirstKey int
	LastKey  int
	KeyStep  int
	Flags    Flag
}

func (d *Descriptor) has(f Flag) bool { return d.Flags&f != 0 }
