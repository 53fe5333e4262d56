package wire

// Store is the subset of internal/store.LRU the command layer needs.
// Declared here so wire does not import store directly — the spec
// treats command execution as a collaborator that merely "accepts
// (store, argument, out_result)".
type Store interface {
	Put(key, value string) bool
	PutIfAbsent(key, value string) bool
	Set(key, value string) bool
	Get(key string) (value string, ok bool)
	Delete(key string) bool
}

// Execute runs cmd against s and returns the textual response, with no
// trailing newline — internal/conn appends "\r\n" itself, per
// spec.md §6. arg is the raw accumulated argument bytes including the
// trailing "\r\n" terminator when cmd.ArgRemains > 0; it is trimmed
// here before reaching the store.
func Execute(cmd Command, arg string, s Store) string {
	value := arg
	if cmd.ArgRemains > 0 && len(value) >= 2 {
		value = value[:len(value)-2]
	}

	switch cmd.Name {
	case "get":
		v, ok := s.Get(cmd.Key)
		if !ok {
			return "NOT_FOUND"
		}
		return "VALUE " + v

	case "delete":
		if s.Delete(cmd.Key) {
			return "DELETED"
		}
		return "NOT_FOUND"

	case "put":
		if s.Put(cmd.Key, value) {
			return "STORED"
		}
		return "TOO_LARGE"

	case "putifabsent":
		if s.PutIfAbsent(cmd.Key, value) {
			return "STORED"
		}
		return "NOT_STORED"

	case "set":
		if s.Set(cmd.Key, value) {
			return "STORED"
		}
		return "NOT_STORED"

	default:
		return ErrorResponse
	}
}
