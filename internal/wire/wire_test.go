package wire

import (
	"errors"
	"testing"

	"github.com/ravelin-io/kvreactor/internal/store"
)

func TestParseGetCommand(t *testing.T) {
	cmd, consumed, err := Parse([]byte("get foo\r\nrest"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Name != "get" || cmd.Key != "foo" || cmd.ArgRemains != 0 {
		t.Fatalf("Parse = %+v", cmd)
	}
	if consumed != len("get foo\r\n") {
		t.Fatalf("consumed = %d; want %d", consumed, len("get foo\r\n"))
	}
}

func TestParseSetCommandArgRemainsIncludesTerminator(t *testing.T) {
	cmd, _, err := Parse([]byte("set foo 3\r\nbar\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Name != "set" || cmd.Key != "foo" || cmd.ArgRemains != 5 {
		t.Fatalf("Parse = %+v; want ArgRemains=5 (3 value bytes + 2 terminator)", cmd)
	}
}

func TestParseZeroLengthValueNeedsNoArgument(t *testing.T) {
	cmd, _, err := Parse([]byte("put x 0\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.ArgRemains != 0 {
		t.Fatalf("ArgRemains = %d; want 0 for zero-length value", cmd.ArgRemains)
	}
}

func TestParseIncompleteLine(t *testing.T) {
	_, _, err := Parse([]byte("get fo"))
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("err = %v; want ErrIncomplete", err)
	}
}

func TestParseMalformedCommand(t *testing.T) {
	cases := []string{"bogus\r\n", "get\r\n", "get a b\r\n", "put k notanumber\r\n"}
	for _, line := range cases {
		_, _, err := Parse([]byte(line))
		if !errors.Is(err, ErrProtocol) {
			t.Errorf("Parse(%q) err = %v; want ErrProtocol", line, err)
		}
	}
}

func TestExecuteRoundTrip(t *testing.T) {
	s := store.New(1024)

	cmd, _, _ := Parse([]byte("put foo 3\r\n"))
	got := Execute(cmd, "bar\r\n", s)
	if got != "STORED" {
		t.Fatalf("put result = %q; want STORED", got)
	}

	cmd, _, _ = Parse([]byte("get foo\r\n"))
	got = Execute(cmd, "", s)
	if got != "VALUE bar" {
		t.Fatalf("get result = %q; want VALUE bar", got)
	}

	cmd, _, _ = Parse([]byte("delete foo\r\n"))
	got = Execute(cmd, "", s)
	if got != "DELETED" {
		t.Fatalf("delete result = %q; want DELETED", got)
	}

	cmd, _, _ = Parse([]byte("get foo\r\n"))
	got = Execute(cmd, "", s)
	if got != "NOT_FOUND" {
		t.Fatalf("get-after-delete result = %q; want NOT_FOUND", got)
	}
}

func TestExecuteSetOnAbsentKeyNotStored(t *testing.T) {
	s := store.New(1024)
	cmd, _, _ := Parse([]byte("set missing 1\r\n"))
	got := Execute(cmd, "x\r\n", s)
	if got != "NOT_STORED" {
		t.Fatalf("set on absent key = %q; want NOT_STORED", got)
	}
}
