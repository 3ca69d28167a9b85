package masking

import (
	"io"
	"sync"

	aho "github.com/petar-dambovaliev/aho-corasick"
)

const redactedPlaceholder = "[REDACTED_BY_RELAY]"

// Writer wraps an io.Writer and replaces any occurrence of secret values
// (signing secret, OAuth client secrets, stored access tokens) with
// [REDACTED_BY_RELAY]. Uses Aho-Corasick for efficient multi-pattern matching.
// Handles matches that span across Write() call boundaries by buffering.
type Writer struct {
	mu           sync.Mutex
	out          io.Writer
	matcher      aho.AhoCorasick
	secrets      []string
	maxSecretLen int
	buf          []byte
}

// NewWriter creates a Writer that will redact all given secret values.
// If secrets is empty, writes pass through unmodified.
func NewWriter(out io.Writer, secrets []string) *Writer {
	// Filter out empty strings — they cause maxSecretLen==0 which breaks
	// the buffer arithmetic (safeEnd underflow) and are meaningless to match.
	var filtered []string
	for _, s := range secrets {
		if len(s) > 0 {
			filtered = append(filtered, s)
		}
	}

	w := &Writer{
		out:     out,
		secrets: filtered,
	}

	if len(filtered) == 0 {
		return w
	}

	for _, s := range filtered {
		if len(s) > w.maxSecretLen {
			w.maxSecretLen = len(s)
		}
	}

	builder := aho.NewAhoCorasickBuilder(aho.Opts{})
	w.matcher = builder.Build(filtered)

	return w
}

// Write implements io.Writer. Data may be buffered to handle cross-boundary matches.
func (w *Writer) Write(p []byte) (int, error) {
	if len(w.secrets) == 0 {
		return w.out.Write(p)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)

	if err := w.processBuffer(false); err != nil {
		return 0, err
	}

	return len(p), nil
}

// Flush writes any remaining buffered data, performing final masking.
func (w *Writer) Flush() error {
	if len(w.secrets) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.processBuffer(true)
}

func (w *Writer) processBuffer(flushAll bool) error {
	if len(w.buf) == 0 {
		return nil
	}

	// Determine how far we can safely emit.
	// We retain maxSecretLen-1 bytes to handle cross-boundary matches,
	// unless we're flushing everything.
	safeEnd := len(w.buf)
	if !flushAll {
		safeEnd = len(w.buf) - (w.maxSecretLen - 1)
		if safeEnd <= 0 {
			return nil
		}
	}

	// Search the ENTIRE buffer for matches (not just safe zone)
	// so we can detect matches that straddle the safe boundary.
	matches := w.matcher.FindAll(string(w.buf))

	var result []byte
	pos := 0
	consumedEnd := safeEnd

	for _, m := range matches {
		start := m.Start()
		end := m.End()

		if start < pos {
			continue // overlapping match
		}

		// Skip matches entirely beyond the safe boundary (they stay in buffer)
		if start >= safeEnd && !flushAll {
			break
		}

		// This match starts before safeEnd (or we're flushing all)
		result = append(result, w.buf[pos:start]...)
		result = append(result, []byte(redactedPlaceholder)...)
		pos = end

		// If match crosses safeEnd boundary, advance consumedEnd past it
		if end > consumedEnd {
			consumedEnd = end
		}
	}

	// Emit any remaining non-matched bytes up to safeEnd
	if pos < safeEnd {
		result = append(result, w.buf[pos:safeEnd]...)
	}

	if len(result) > 0 {
		if _, err := w.out.Write(result); err != nil {
			return err
		}
	}

	// Retain unconsumed bytes
	remaining := make([]byte, len(w.buf)-consumedEnd)
	copy(remaining, w.buf[consumedEnd:])
	w.buf = remaining

	return nil
}
