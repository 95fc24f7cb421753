package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Transcript lines look like:
//
//	[09:15 AM]
//	Teacher: Let's open our books.
//	Student_Sarah Smith: I think the hero will prevail.
//	Maybe she won't, though.
//
// A speaker label starts a turn; unlabeled lines continue the current
// turn. Teacher turns are dropped; only student speech feeds the
// vocabulary pipeline.
var (
	timestampRe = regexp.MustCompile(`^\s*\[\d{1,2}:\d{2}\s*(?:AM|PM)\]\s*$`)
	speakerRe   = regexp.MustCompile(`^\s*(?:\[\d{1,2}:\d{2}\s*(?:AM|PM)\]\s*)?(Teacher|Student_[^:]+|[A-Z][A-Za-z'.-]*(?: [A-Z][A-Za-z'.-]*)+):\s*(.*)$`)
)

// ParseTranscript reads a classroom transcript and returns one TextUnit
// per student turn, in source order starting at seq.
func ParseTranscript(r io.Reader, seq int) ([]TextUnit, int, error) {
	var (
		units   []TextUnit
		speaker string
		buf     strings.Builder
	)
	flush := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if speaker == "" || speaker == "Teacher" || text == "" {
			return
		}
		units = append(units, TextUnit{
			Student: speaker,
			Text:    text,
			Seq:     seq,
			Source:  SourceTranscript,
		})
		seq++
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || timestampRe.MatchString(line) {
			continue
		}
		if m := speakerRe.FindStringSubmatch(line); m != nil {
			flush()
			speaker = strings.TrimSpace(strings.TrimPrefix(m[1], "Student_"))
			if m[1] == "Teacher" {
				speaker = "Teacher"
			}
			buf.WriteString(m[2])
			continue
		}
		if speaker != "" {
			if buf.Len() > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(strings.TrimSpace(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, seq, fmt.Errorf("scan transcript: %w", err)
	}
	flush()
	return units, seq, nil
}

// LoadTranscript parses the transcript file at path.
func LoadTranscript(path string, seq int) ([]TextUnit, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, seq, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return ParseTranscript(f, seq)
}
