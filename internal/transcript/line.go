package transcript

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// linePattern matches a timestamped transcript line: "[MM:SS] text".
// Minutes may exceed two digits for sessions over 100 minutes.
var linePattern = regexp.MustCompile(`^\[(\d{2,}):(\d{2})\]\s*(.*)$`)

// Line is one parsed transcript entry.
type Line struct {
	Offset time.Duration
	Text   string
}

// FormatLine renders a transcript line with a zero-padded [MM:SS]
// prefix from the elapsed session time.
func FormatLine(elapsed time.Duration, text string) string {
	if elapsed < 0 {
		elapsed = 0
	}
	total := int(elapsed.Seconds())
	return fmt.Sprintf("[%02d:%02d] %s", total/60, total%60, text)
}

// ParseLine parses a timestamped transcript line. Lines without a
// timestamp prefix return an error.
func ParseLine(line string) (Line, error) {
	m := linePattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Line{}, fmt.Errorf("not a timestamped transcript line: %q", line)
	}

	minutes, err := strconv.Atoi(m[1])
	if err != nil {
		return Line{}, fmt.Errorf("invalid minutes in %q: %w", line, err)
	}
	seconds, err := strconv.Atoi(m[2])
	if err != nil {
		return Line{}, fmt.Errorf("invalid seconds in %q: %w", line, err)
	}
	if seconds > 59 {
		return Line{}, fmt.Errorf("seconds out of range in %q", line)
	}

	return Line{
		Offset: time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second,
		Text:   m[3],
	}, nil
}

// HasTimestamps reports whether the text contains at least one
// timestamped line.
func HasTimestamps(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if linePattern.MatchString(line) {
			return true
		}
	}
	return false
}

// MergeFile reads a timestamped transcript, sorts its lines
// chronologically, and writes the bare texts as one paragraph-per-line
// file next to the input with a _merged suffix. Lines without
// timestamps pass through in place. It returns the merged file path.
func MergeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open transcript %s: %w", path, err)
	}
	defer f.Close()

	var timestamped []Line
	var plain []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		if line, err := ParseLine(raw); err == nil {
			timestamped = append(timestamped, line)
		} else {
			plain = append(plain, raw)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read transcript %s: %w", path, err)
	}

	sort.SliceStable(timestamped, func(i, j int) bool {
		return timestamped[i].Offset < timestamped[j].Offset
	})

	var out strings.Builder
	for _, line := range timestamped {
		if line.Text == "" {
			continue
		}
		out.WriteString(line.Text)
		out.WriteByte('\n')
	}
	for _, text := range plain {
		out.WriteString(text)
		out.WriteByte('\n')
	}

	merged := mergedPath(path)
	if err := os.WriteFile(merged, []byte(out.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write merged transcript %s: %w", merged, err)
	}

	return merged, nil
}

func mergedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_merged" + ext
}
