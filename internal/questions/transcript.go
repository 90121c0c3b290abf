package questions

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/livechat-analyzer/internal/config"
)

// Segment is one spoken passage from a stream transcript.
type Segment struct {
	Speaker string
	Start   string // HH:MM:SS as written, empty when absent
	Text    string
}

// segmentLine matches "[00:12:34] 話者: テキスト" with the timestamp and
// speaker both optional.
var segmentLine = regexp.MustCompile(`^\[?(\d{1,2}:\d{2}(?::\d{2})?)?\]?\s*(?:([^:：]{1,20})[:：])?\s*(.+)$`)

// ParseTranscript reads a plain-text transcript, one spoken passage per
// line. Blank lines are skipped; a line without timestamp or speaker is
// kept as bare text.
func ParseTranscript(r io.Reader) ([]Segment, error) {
	var segs []Segment
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		m := segmentLine.FindStringSubmatch(line)
		if m == nil {
			segs = append(segs, Segment{Text: line})
			continue
		}
		segs = append(segs, Segment{
			Start:   m[1],
			Speaker: strings.TrimSpace(m[2]),
			Text:    strings.TrimSpace(m[3]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	log.Debug().Int("segments", len(segs)).Msg("Transcript parsed")
	return segs, nil
}

// MatchTranscript marks questions whose content shows up in a transcript
// passage as answered by the presenter. Already-answered questions are
// left alone.
func MatchTranscript(qs []Question, segs []Segment) {
	for i := range qs {
		if qs[i].Answered() {
			continue
		}
		for _, seg := range segs {
			if overlap(qs[i].Comment.Comment.Text, seg.Text) < answerOverlapThreshold {
				continue
			}
			qs[i].Status = config.AnswerByPresenter
			if seg.Speaker != "" {
				qs[i].Method = fmt.Sprintf("文字起こし（%s）", seg.Speaker)
			} else {
				qs[i].Method = "文字起こし"
			}
			break
		}
	}
}
