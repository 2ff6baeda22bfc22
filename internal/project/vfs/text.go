package vfs

import (
	"bytes"
	"strings"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// IsBinary attempts to detect if content is binary (not text).
// Null bytes or more than 10% control characters in the first 8KB count as binary.
func IsBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	sample := content
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}

	nonText := 0
	for _, b := range sample {
		if b < 32 && b != '\t' && b != '\n' && b != '\r' && b != '\f' {
			nonText++
		}
	}
	return float64(nonText)/float64(len(sample)) > 0.1
}

// StripBOM removes a UTF-8 byte order mark.
func StripBOM(content []byte) []byte {
	return bytes.TrimPrefix(content, bomUTF8)
}

// SplitLines splits text content into lines, accepting LF, CRLF and lone CR
// terminators. A trailing terminator does not produce an empty last line.
func SplitLines(content []byte) []string {
	content = StripBOM(content)
	if len(content) == 0 {
		return nil
	}

	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\n':
			lines = append(lines, string(content[start:i]))
			start = i + 1
		case '\r':
			lines = append(lines, string(content[start:i]))
			if i+1 < len(content) && content[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, string(content[start:]))
	}
	return lines
}

// JoinLines is the inverse of SplitLines using LF terminators.
func JoinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}
