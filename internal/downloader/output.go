package downloader

import (
	"bufio"
	"bytes"
	"strings"
)

// Result is what one downloader invocation reported
type Result struct {
	// Path is the last artifact path printed, empty when none was
	Path string
	// RateLimited is set when any line carried the rate limit marker
	RateLimited bool
}

// ParseOutput scans downloader output line by line. A line naming an
// artifact must contain one of exts and targetDir; the path starts at
// targetDir and runs to the end of the line.
func ParseOutput(output []byte, targetDir string, exts []string, marker string) Result {
	var res Result

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if marker != "" && strings.Contains(line, marker) {
			res.RateLimited = true
		}

		if targetDir == "" || !hasExtension(line, exts) {
			continue
		}
		if idx := strings.Index(line, targetDir); idx >= 0 {
			res.Path = strings.TrimRight(line[idx:], " \t\r")
		}
	}

	return res
}

func hasExtension(line string, exts []string) bool {
	for _, ext := range exts {
		if ext != "" && strings.Contains(line, ext) {
			return true
		}
	}
	return false
}
