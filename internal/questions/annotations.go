package questions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/livechat-analyzer/internal/config"
)

// Annotation is one row of a human-judged answer sheet.
type Annotation struct {
	Question string
	Answered bool
	Method   string
}

// Column aliases accepted in annotation sheets. The answered column has
// historically appeared with and without the trailing み.
var (
	annQuestionCols = []string{"質問", "original_text", "コメント", "text"}
	annAnsweredCols = []string{"回答済", "回答済み", "回答"}
	annMethodCols   = []string{"回答方法"}
)

// truthy values accepted in the answered column.
var annTruthy = map[string]bool{"TRUE": true, "1": true, "T": true, "YES": true, "Y": true}

// LoadAnnotations reads a human-judged answer sheet. Sheets come from
// spreadsheet exports with leading junk rows and either comma or tab
// separators, so the header row and delimiter are both auto-detected.
// Rows that fail to parse are skipped.
func LoadAnnotations(r io.Reader) ([]Annotation, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read annotation sheet: %w", err)
	}
	text := strings.TrimPrefix(string(raw), "\ufeff")
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	headerIdx, sep := detectHeader(lines)
	if headerIdx < 0 {
		return nil, errors.New("annotation sheet has no recognizable header row (expected a 質問 column)")
	}

	cr := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read annotation header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	qCol := firstCol(cols, annQuestionCols)
	aCol := firstCol(cols, annAnsweredCols)
	mCol := firstCol(cols, annMethodCols)
	if qCol < 0 {
		return nil, errors.New("annotation sheet is missing the question column")
	}

	var anns []Annotation
	skipped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		get := func(i int) string {
			if i < 0 || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		q := get(qCol)
		if q == "" {
			continue
		}
		anns = append(anns, Annotation{
			Question: q,
			Answered: annTruthy[strings.ToUpper(get(aCol))],
			Method:   cleanMethod(get(mCol)),
		})
	}

	log.Debug().
		Int("rows", len(anns)).
		Int("skipped", skipped).
		Int("header_row", headerIdx).
		Msg("Annotation sheet loaded")
	return anns, nil
}

// detectHeader scans the first ten lines for one containing a question
// column, trying tab before comma on each. Returns the line index and the
// winning separator, or -1 when nothing matches.
func detectHeader(lines []string) (int, rune) {
	limit := min(10, len(lines))
	for i := 0; i < limit; i++ {
		for _, sep := range []rune{'\t', ','} {
			fields := strings.Split(lines[i], string(sep))
			for j := range fields {
				fields[j] = strings.TrimSpace(fields[j])
			}
			for _, want := range annQuestionCols {
				for _, f := range fields {
					if f == want {
						return i, sep
					}
				}
			}
		}
	}
	return -1, ','
}

func firstCol(cols map[string]int, names []string) int {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i
		}
	}
	return -1
}

// cleanMethod drops spreadsheet artifacts that mean "no value".
func cleanMethod(s string) string {
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return ""
	}
	return s
}

// MatchAnnotations applies human judgments on top of any automatic
// matching. An answered annotation overrides the automatic status; a
// not-answered row leaves it in place. The method text decides whether
// staff or the presenter gave the answer.
func MatchAnnotations(qs []Question, anns []Annotation) {
	for i := range qs {
		for _, a := range anns {
			if overlap(qs[i].Comment.Comment.Text, a.Question) < annotationMatchThreshold {
				continue
			}
			if !a.Answered {
				break
			}
			qs[i].Status = statusForMethod(a.Method)
			if a.Method != "" {
				qs[i].Method = a.Method
			} else {
				qs[i].Method = "人間判定"
			}
			break
		}
	}
}

// annotationMatchThreshold is stricter than the answer threshold: the
// annotation row should be the question itself, not a paraphrase.
const annotationMatchThreshold = 0.8

var staffMarkers = []string{"運営", "スタッフ", "staff", "コメント"}

func statusForMethod(method string) string {
	m := strings.ToLower(method)
	for _, marker := range staffMarkers {
		if strings.Contains(m, marker) {
			return config.AnswerByStaff
		}
	}
	return config.AnswerByPresenter
}
