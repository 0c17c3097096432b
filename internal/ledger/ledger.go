// Package ledger records per-question answers and time spent for one session.
package ledger

import (
	"fmt"

	"quiz-session-engine/internal/domain"
)

// Ledger is a fixed-size record of answers. It is not safe for concurrent use;
// the owning session serializes access.
type Ledger struct {
	records    []domain.AnswerRecord
	maxSeconds int
}

// New returns a ledger of n empty records. A maxPerQuestion of 0 leaves time spent uncapped.
func New(n, maxPerQuestion int) *Ledger {
	if maxPerQuestion < 0 {
		maxPerQuestion = 0
	}
	return &Ledger{
		records:    make([]domain.AnswerRecord, n),
		maxSeconds: maxPerQuestion,
	}
}

func (l *Ledger) Len() int {
	return len(l.records)
}

// RecordAnswer overwrites the selection at index. Time spent is untouched.
func (l *Ledger) RecordAnswer(index, selected int) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	if selected < 0 {
		return fmt.Errorf("record answer %d: %w", selected, domain.ErrChoiceOutOfRange)
	}
	l.records[index].SelectedIndex = &selected
	return nil
}

// RecordTimeSpent stores seconds for index, clamped to [0, maxPerQuestion] when capped.
func (l *Ledger) RecordTimeSpent(index, seconds int) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	if seconds < 0 {
		seconds = 0
	}
	if l.maxSeconds > 0 && seconds > l.maxSeconds {
		seconds = l.maxSeconds
	}
	l.records[index].TimeSpentSeconds = seconds
	return nil
}

// Selected returns the choice recorded at index, if any.
func (l *Ledger) Selected(index int) (int, bool) {
	if l.checkIndex(index) != nil || l.records[index].SelectedIndex == nil {
		return 0, false
	}
	return *l.records[index].SelectedIndex, true
}

// IsComplete reports whether every question has a selection.
func (l *Ledger) IsComplete() bool {
	return l.CountAnswered() == len(l.records)
}

// CountAnswered returns the number of questions with a selection.
func (l *Ledger) CountAnswered() int {
	n := 0
	for _, r := range l.records {
		if r.Answered() {
			n++
		}
	}
	return n
}

// TotalTimeSpent sums recorded seconds across all questions.
func (l *Ledger) TotalTimeSpent() int {
	total := 0
	for _, r := range l.records {
		total += r.TimeSpentSeconds
	}
	return total
}

// Records returns a deep copy of the ledger contents.
func (l *Ledger) Records() []domain.AnswerRecord {
	out := make([]domain.AnswerRecord, len(l.records))
	for i, r := range l.records {
		out[i].TimeSpentSeconds = r.TimeSpentSeconds
		if r.SelectedIndex != nil {
			out[i].SelectedIndex = domain.Intp(*r.SelectedIndex)
		}
	}
	return out
}

func (l *Ledger) checkIndex(index int) error {
	if index < 0 || index >= len(l.records) {
		return fmt.Errorf("index %d of %d: %w", index, len(l.records), domain.ErrIndexOutOfRange)
	}
	return nil
}
