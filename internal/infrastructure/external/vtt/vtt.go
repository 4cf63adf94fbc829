// Package vtt flattens WebVTT meeting transcripts into "Speaker : text" lines.
package vtt

import (
	"bufio"
	"regexp"
	"strings"
)

var (
	cueTiming = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[.,]\d{3}\s+-->`)
	voiceTag  = regexp.MustCompile(`<v\s+([^>]+)>(.*?)(?:</v>|$)`)
)

// ToText keeps the cue timings and the spoken lines of a WebVTT document.
// Zoom transcripts put the speaker before a colon instead of in a voice tag;
// those lines are kept as they are.
func ToText(content string) string {
	var out []string
	inCue := false

	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			inCue = false
		case cueTiming.MatchString(line):
			inCue = true
			out = append(out, line)
		case !inCue:
			// header, NOTE blocks and cue identifiers
		default:
			if m := voiceTag.FindStringSubmatch(line); m != nil {
				text := strings.TrimSpace(m[2])
				if text != "" {
					out = append(out, strings.TrimSpace(m[1])+" : "+text)
				}
				continue
			}
			out = append(out, line)
		}
	}

	if !hasSpeech(out) {
		return ""
	}
	return strings.Join(out, "\n")
}

func hasSpeech(lines []string) bool {
	for _, l := range lines {
		if !cueTiming.MatchString(l) {
			return true
		}
	}
	return false
}
