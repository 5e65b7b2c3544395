package parse

import "fmt"

// EmitFunc receives canonical messages as a parser produces them.
// Returning an error aborts the parse.
type EmitFunc func(Message) error

// ParseSession stream-parses one session file, dispatching on the
// provider tag. sessionKey seeds synthesized uuids for records that
// lack one. Messages are emitted in file order with strictly
// increasing sequence numbers starting at 0.
func ParseSession(provider, path, sessionKey string, emit EmitFunc) error {
	switch provider {
	case ProviderClaude:
		return parseClaude(path, sessionKey, emit)
	case ProviderCodex:
		return parseCodex(path, sessionKey, emit)
	case ProviderGemini:
		return parseGemini(path, sessionKey, emit)
	default:
		return fmt.Errorf("unknown provider: %s", provider)
	}
}

// Collect runs ParseSession and gathers all messages into a slice.
// Convenient for callers and tests that do not need streaming.
func Collect(provider, path, sessionKey string) ([]Message, error) {
	var msgs []Message
	err := ParseSession(provider, path, sessionKey, func(m Message) error {
		msgs = append(msgs, m)
		return nil
	})
	return msgs, err
}
