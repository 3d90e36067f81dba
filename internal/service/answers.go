package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"lms-assessment/internal/config"
	"lms-assessment/internal/domain"
)

// FileUpload is an uploaded answer file.
type FileUpload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// TableResponse is one entry of the flat per-row response of a table question.
type TableResponse struct {
	Row      string `json:"row"`
	Column   string `json:"column,omitempty"`
	Response string `json:"response,omitempty"`
}

// TableCell is the stored answer of one table row. Selected holds a column
// label, or a list of labels for checkbox tables.
type TableCell struct {
	Question string      `json:"question"`
	Selected interface{} `json:"selected,omitempty"`
	Response string      `json:"response,omitempty"`
}

// AnswerNormalizer validates submitted answers and converts them into their
// stored form.
type AnswerNormalizer struct {
	allowedExt map[string]struct{}
	maxSize    int64
}

// NewAnswerNormalizer creates a new AnswerNormalizer
func NewAnswerNormalizer(cfg config.StorageConfig) *AnswerNormalizer {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &AnswerNormalizer{allowedExt: allowed, maxSize: cfg.MaxFileSize}
}

// Normalize validates raw against the question and returns the stored form.
// File questions go through ValidateUpload instead.
func (n *AnswerNormalizer) Normalize(q *domain.Question, raw json.RawMessage) (json.RawMessage, error) {
	switch q.AnswerType {
	case domain.AnswerSingleChoice:
		return n.normalizeSingle(q, raw)
	case domain.AnswerMultiChoice:
		return n.normalizeMulti(q, raw)
	case domain.AnswerText, domain.AnswerTextarea:
		return n.normalizeText(q, raw)
	case domain.AnswerTable:
		return n.normalizeTable(q, raw)
	case domain.AnswerFile:
		return nil, domain.NewInvalidAnswerError("file answers must be uploaded")
	}
	return nil, domain.NewIntegrityError(fmt.Sprintf("question %d has unknown answer type %q", q.ID, q.AnswerType))
}

func isEmpty(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null")) ||
		bytes.Equal(raw, []byte(`""`)) || bytes.Equal(raw, []byte("[]")) || bytes.Equal(raw, []byte("{}"))
}

func missingAnswer(q *domain.Question) error {
	return domain.NewError(domain.CodeMissingRequiredAnswer,
		fmt.Sprintf("An answer is required for question %q", q.Title), nil).
		WithContext("question_id", q.ID)
}

func (n *AnswerNormalizer) normalizeSingle(q *domain.Question, raw json.RawMessage) (json.RawMessage, error) {
	if isEmpty(raw) {
		if q.Required {
			return nil, missingAnswer(q)
		}
		return json.RawMessage(`""`), nil
	}
	v, err := decodeScalar(raw)
	if err != nil {
		return nil, domain.NewInvalidAnswerError("single choice answer must be one option")
	}
	if v == "" && q.Required {
		return nil, missingAnswer(q)
	}
	if err := checkOptions(q, v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (n *AnswerNormalizer) normalizeMulti(q *domain.Question, raw json.RawMessage) (json.RawMessage, error) {
	if isEmpty(raw) {
		if q.Required {
			return nil, missingAnswer(q)
		}
		return json.RawMessage("[]"), nil
	}
	values, err := decodeValueList(raw)
	if err != nil {
		return nil, domain.NewInvalidAnswerError("multi choice answer must be a list of options")
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		if err := checkOptions(q, v); err != nil {
			return nil, err
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 && q.Required {
		return nil, missingAnswer(q)
	}
	return json.Marshal(out)
}

func checkOptions(q *domain.Question, v string) error {
	if len(q.Options) == 0 {
		return nil
	}
	for _, opt := range q.Options {
		if opt == v {
			return nil
		}
	}
	return domain.NewInvalidAnswerError(fmt.Sprintf("%q is not an option of question %d", v, q.ID))
}

func (n *AnswerNormalizer) normalizeText(q *domain.Question, raw json.RawMessage) (json.RawMessage, error) {
	var text string
	if !isEmpty(raw) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, domain.NewInvalidAnswerError("text answer must be a string")
		}
	}
	if strings.TrimSpace(text) == "" && q.Required {
		return nil, missingAnswer(q)
	}
	return json.Marshal(text)
}

func (n *AnswerNormalizer) normalizeTable(q *domain.Question, raw json.RawMessage) (json.RawMessage, error) {
	layout := q.Table
	if layout == nil || len(layout.Rows) == 0 {
		return nil, domain.NewIntegrityError(fmt.Sprintf("table question %d has no layout", q.ID))
	}

	var entries []TableResponse
	if !isEmpty(raw) {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, domain.NewInvalidAnswerError("table answer must be a list of row responses")
		}
	}

	cells := make(map[string]*TableCell, len(layout.Rows))
	for _, e := range entries {
		row, ok := layout.Row(e.Row)
		if !ok {
			return nil, domain.NewInvalidAnswerError(fmt.Sprintf("row %q is not part of question %d", e.Row, q.ID))
		}
		if layout.Input != domain.TableInputText && e.Column != "" && !hasColumn(layout, e.Column) {
			return nil, domain.NewInvalidAnswerError(fmt.Sprintf("column %q is not part of question %d", e.Column, q.ID))
		}
		cell, ok := cells[row.Key]
		if !ok {
			cell = &TableCell{Question: row.Question}
			cells[row.Key] = cell
		}
		switch layout.Input {
		case domain.TableInputCheckbox:
			if e.Column == "" {
				continue
			}
			selected, _ := cell.Selected.([]string)
			cell.Selected = append(selected, e.Column)
		case domain.TableInputRadio:
			if e.Column != "" {
				cell.Selected = e.Column
			}
		default:
			if e.Column != "" {
				cell.Selected = e.Column
			}
		}
		if e.Response != "" {
			cell.Response = e.Response
		}
	}

	answered := 0
	for _, cell := range cells {
		if cell.Selected != nil || strings.TrimSpace(cell.Response) != "" {
			answered++
		}
	}
	if answered == 0 && !q.Required {
		return json.RawMessage("{}"), nil
	}
	// Every row needs a response, checkbox tables included.
	if q.Required && answered != len(layout.Rows) {
		return nil, domain.NewError(domain.CodeTableRowMismatch,
			fmt.Sprintf("Every row of %q needs a response", q.Title), nil).
			WithContext("question_id", q.ID).
			WithContext("expected_rows", len(layout.Rows)).
			WithContext("answered_rows", answered)
	}
	return json.Marshal(cells)
}

func hasColumn(layout *domain.TableLayout, column string) bool {
	for _, c := range layout.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// skippedFileAnswer is stored for an optional file question left without an
// upload, so the question still counts as answered.
var skippedFileAnswer = json.RawMessage(`""`)

func missingUpload(upload *FileUpload) bool {
	return upload == nil || upload.Content == nil || upload.Name == ""
}

// ValidateUpload checks an uploaded file against the allowed extensions and
// size limit. An optional question may be left without a file.
func (n *AnswerNormalizer) ValidateUpload(q *domain.Question, upload *FileUpload) error {
	if missingUpload(upload) {
		if q.Required {
			return missingAnswer(q)
		}
		return nil
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(upload.Name), "."))
	if _, ok := n.allowedExt[ext]; !ok {
		return domain.NewError(domain.CodeUnsupportedFileType,
			fmt.Sprintf("Files of type %q are not accepted", ext), nil).
			WithContext("question_id", q.ID)
	}
	if n.maxSize > 0 && upload.Size > n.maxSize {
		return domain.NewInvalidAnswerError(fmt.Sprintf("file exceeds the maximum size of %d bytes", n.maxSize))
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// answerFilePath places an upload in the learner+quiz+course sandbox under a
// unique name.
func answerFilePath(key domain.AttemptKey, courseID int64, id, name string) string {
	base := unsafeFileChars.ReplaceAllString(filepath.Base(name), "_")
	return fmt.Sprintf("%d/%d/%d/%s-%s", key.LearnerID, key.QuizID, courseID, id, base)
}

// storedFilePath extracts the path of a stored file answer.
func storedFilePath(raw json.RawMessage) string {
	var path string
	if err := json.Unmarshal(raw, &path); err != nil {
		return ""
	}
	return path
}
