package parsers

import (
	"bytes"
	"errors"
	"strings"
)

// delimiterCandidates are tried in order; ties keep the earlier one.
var delimiterCandidates = []rune{',', '\t', ';'}

// preprocessCSVData strips a UTF-8 BOM, normalizes line endings and detects the delimiter
// from the first five lines.
func preprocessCSVData(data []byte) (string, rune, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ',', errors.New("empty CSV data")
	}

	// Strip UTF-8 BOM if present (0xEF, 0xBB, 0xBF)
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	cleaned := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	cleanedStr := string(cleaned)

	lines := strings.SplitN(cleanedStr, "\n", 6)
	if len(lines) > 5 {
		lines = lines[:5]
	}

	delimiter := delimiterCandidates[0]
	best := 0
	for _, candidate := range delimiterCandidates {
		count := 0
		for _, line := range lines {
			count += strings.Count(line, string(candidate))
		}
		if count > best {
			best = count
			delimiter = candidate
		}
	}

	return cleanedStr, delimiter, nil
}
