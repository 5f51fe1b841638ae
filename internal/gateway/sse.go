package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DoneSentinel terminates an upstream completions stream.
const DoneSentinel = "[DONE]"

// LineDecoder reassembles complete lines from arbitrarily-chunked stream
// data. Chunk boundaries never align with line boundaries in practice, so
// the tail of each chunk is buffered until its newline arrives.
type LineDecoder struct {
	buf bytes.Buffer
}

// Feed appends a chunk and returns every line completed by it, without
// trailing newlines. Partial trailing data stays buffered for the next call.
func (d *LineDecoder) Feed(chunk []byte) []string {
	d.buf.Write(chunk)

	data := d.buf.Bytes()
	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		return nil
	}

	complete := data[:last]
	rest := append([]byte(nil), data[last+1:]...)
	d.buf.Reset()
	d.buf.Write(rest)

	var lines []string
	for _, raw := range bytes.Split(complete, []byte{'\n'}) {
		lines = append(lines, strings.TrimSuffix(string(raw), "\r"))
	}
	return lines
}

// Rest returns any buffered partial line, consuming it. Called once the
// stream has ended.
func (d *LineDecoder) Rest() string {
	rest := d.buf.String()
	d.buf.Reset()
	return strings.TrimSuffix(rest, "\r")
}

// DataPayload extracts the payload of a `data: ...` SSE line. Returns
// ok=false for blank lines, comments, and non-data fields.
func DataPayload(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")), true
}

// streamChunk mirrors the OpenAI-compatible streaming frame shape.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ParseDelta decodes one streaming frame payload and returns its
// incremental content, empty when the frame carries none.
func ParseDelta(payload string) (string, error) {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", err
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}
