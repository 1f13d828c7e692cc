package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
	"time"
)

// ExportDateLayout formats completion times in exports, matching what the device displays.
const ExportDateLayout = "2006-01-02 15:04:05"

var wideHeader = []string{"ID", "Nome", "Idade", "Data Resposta"}

// WideRow is one response in the wide export; Cells holds one answer text per question column.
type WideRow struct {
	ResponseID  int64
	Name        string
	Age         *int
	CompletedAt time.Time
	Cells       []string
}

// ExportWideCSV renders one row per response and one column per question. The fixed columns
// ID and Idade are bare numbers; every text field is quoted, with embedded quotes doubled.
func ExportWideCSV(questions []string, rows []WideRow) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString(strings.Join(wideHeader, ","))
	for _, q := range questions {
		buf.WriteByte(',')
		buf.WriteString(quoteField(q))
	}
	buf.WriteByte('\n')
	for _, r := range rows {
		buf.WriteString(strconv.FormatInt(r.ResponseID, 10))
		buf.WriteByte(',')
		buf.WriteString(quoteField(r.Name))
		buf.WriteByte(',')
		if r.Age != nil {
			buf.WriteString(strconv.Itoa(*r.Age))
		}
		buf.WriteByte(',')
		buf.WriteString(quoteField(r.CompletedAt.UTC().Format(ExportDateLayout)))
		for i := range questions {
			cell := ""
			if i < len(r.Cells) {
				cell = r.Cells[i]
			}
			buf.WriteByte(',')
			buf.WriteString(quoteField(cell))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// encoding/csv only quotes when needed; the wide export always quotes text.
func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

type LongRow struct {
	ResponseID  int64
	QuestionID  int64
	AnswerText  *string
	AnswerValue *int
	CompletedAt time.Time
}

// ExportLongCSV renders one row per stored answer.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"response_id", "question_id", "answer_text", "answer_value", "completed_at"})
	for _, r := range rows {
		text, value := "", ""
		if r.AnswerText != nil {
			text = *r.AnswerText
		}
		if r.AnswerValue != nil {
			value = strconv.Itoa(*r.AnswerValue)
		}
		rec := []string{
			strconv.FormatInt(r.ResponseID, 10),
			strconv.FormatInt(r.QuestionID, 10),
			text,
			value,
			r.CompletedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
