// Package wire is the external collaborator the core spec treats as
// out of scope: a minimal text grammar and command dispatch layer just
// complete enough to drive internal/conn end to end. It is
// deliberately not a full memcached/RESP-compatible grammar — the
// real parser and command-execute dispatch are named in spec.md §6 as
// collaborators the core reads from and writes to, not something the
// core itself implements.
//
// Grammar, one command per line:
//
//	get <key>\r\n
//	delete <key>\r\n
//	putifabsent <key> <len>\r\n<bytes>\r\n
//	set <key> <len>\r\n<bytes>\r\n
//	put <key> <len>\r\n<bytes>\r\n
package wire

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// ErrProtocol reports malformed input (spec.md §7 ClientProtocolError).
var ErrProtocol = errors.New("protocol error")

// ErrIncomplete reports that buf does not yet contain a full command
// line; the caller should wait for more bytes.
var ErrIncomplete = errors.New("incomplete command")

// Command is a parsed, not-yet-executed request.
type Command struct {
	Name       string
	Key        string
	ArgRemains int // bytes of value plus its "\r\n" terminator still needed, 0 if none
}

// Parse scans buf for one complete command line terminated by "\r\n".
// On success it returns the command, the number of bytes consumed from
// the front of buf (the caller compacts the buffer by that amount),
// and a nil error. If ArgRemains is positive, the caller must still
// read exactly ArgRemains-2 bytes of value followed by "\r\n" (Parse
// already added the 2 terminator bytes to ArgRemains, matching
// spec.md §4.2 step 1).
//
// ErrIncomplete means buf has no full line yet (keep reading). Any
// other error is ErrProtocol-class and terminal for this line.
func Parse(buf []byte) (cmd Command, consumed int, err error) {
	idx := bytes.Index(buf, []byte("\r\n"))
	if idx < 0 {
		if len(buf) > maxLineLen {
			return Command{}, 0, errors.Wrap(ErrProtocol, "command line too long")
		}
		return Command{}, 0, ErrIncomplete
	}

	line := buf[:idx]
	consumed = idx + 2
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return Command{}, consumed, errors.Wrap(ErrProtocol, "empty command")
	}

	name := string(fields[0])
	switch name {
	case "get", "delete":
		if len(fields) != 2 {
			return Command{}, consumed, errors.Wrapf(ErrProtocol, "%s requires exactly one key", name)
		}
		return Command{Name: name, Key: string(fields[1])}, consumed, nil

	case "put", "putifabsent", "set":
		if len(fields) != 3 {
			return Command{}, consumed, errors.Wrapf(ErrProtocol, "%s requires key and length", name)
		}
		n, convErr := strconv.Atoi(string(fields[2]))
		if convErr != nil || n < 0 {
			return Command{}, consumed, errors.Wrapf(ErrProtocol, "%s has invalid length %q", name, fields[2])
		}
		argRemains := 0
		if n > 0 {
			argRemains = n + 2 // trailing \r\n, per spec.md §4.2 step 1
		}
		return Command{Name: name, Key: string(fields[1]), ArgRemains: argRemains}, consumed, nil

	default:
		return Command{}, consumed, errors.Wrapf(ErrProtocol, "unknown command %q", name)
	}
}

// maxLineLen bounds an unterminated command line so a malicious or
// broken peer cannot grow the read buffer's pending-line unboundedly
// before a parse error is raised.
const maxLineLen = 1024

// ErrorResponse is the sentinel text appended to a connection's output
// queue for any ClientProtocolError, per spec.md §4.2/§7.
const ErrorResponse = "ERROR"
