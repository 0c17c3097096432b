package ledger

import (
	"errors"
	"reflect"
	"testing"

	"quiz-session-engine/internal/domain"
)

func TestRecordAnswerOverwritesAndIsIdempotent(t *testing.T) {
	l := New(3, 45)

	if err := l.RecordAnswer(1, 2); err != nil {
		t.Fatalf("record: %v", err)
	}
	first := l.Records()
	if err := l.RecordAnswer(1, 2); err != nil {
		t.Fatalf("record again: %v", err)
	}
	if !reflect.DeepEqual(first, l.Records()) {
		t.Fatalf("expected identical ledger after repeating the same answer")
	}

	if err := l.RecordAnswer(1, 0); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, ok := l.Selected(1); !ok || got != 0 {
		t.Fatalf("expected overwritten selection 0, got %d (%v)", got, ok)
	}
	if l.Records()[1].TimeSpentSeconds != 0 {
		t.Fatalf("recording an answer must not touch time spent")
	}
}

func TestRecordRejectsOutOfRange(t *testing.T) {
	l := New(2, 0)

	if err := l.RecordAnswer(2, 0); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected index error, got %v", err)
	}
	if err := l.RecordAnswer(-1, 0); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected index error, got %v", err)
	}
	if err := l.RecordTimeSpent(5, 1); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected index error, got %v", err)
	}
	if err := l.RecordAnswer(0, -1); !errors.Is(err, domain.ErrChoiceOutOfRange) {
		t.Fatalf("expected choice error, got %v", err)
	}
}

func TestRecordTimeSpentClamps(t *testing.T) {
	capped := New(2, 30)
	_ = capped.RecordTimeSpent(0, 90)
	_ = capped.RecordTimeSpent(1, -4)
	records := capped.Records()
	if records[0].TimeSpentSeconds != 30 || records[1].TimeSpentSeconds != 0 {
		t.Fatalf("expected clamp to [0,30], got %+v", records)
	}

	uncapped := New(1, 0)
	_ = uncapped.RecordTimeSpent(0, 90)
	if uncapped.TotalTimeSpent() != 90 {
		t.Fatalf("expected uncapped 90, got %d", uncapped.TotalTimeSpent())
	}
}

func TestCompletionAndProgress(t *testing.T) {
	l := New(3, 0)
	if l.IsComplete() || l.CountAnswered() != 0 {
		t.Fatalf("new ledger should be empty")
	}
	_ = l.RecordAnswer(0, 1)
	_ = l.RecordAnswer(2, 0)
	if l.CountAnswered() != 2 || l.IsComplete() {
		t.Fatalf("expected 2 answered and incomplete, got %d", l.CountAnswered())
	}
	_ = l.RecordAnswer(1, 3)
	if !l.IsComplete() {
		t.Fatalf("expected complete ledger")
	}
}

func TestRecordsIsACopy(t *testing.T) {
	l := New(1, 0)
	_ = l.RecordAnswer(0, 1)
	records := l.Records()
	*records[0].SelectedIndex = 3
	if got, _ := l.Selected(0); got != 1 {
		t.Fatalf("mutating a copy changed the ledger: %d", got)
	}
}
