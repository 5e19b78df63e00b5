package domain

import "testing"

func TestQuestionRecordValid(t *testing.T) {
	cases := []struct {
		name   string
		record QuestionRecord
		want   bool
	}{
		{"answered", QuestionRecord{Text: "q", Options: [5]string{"a", "b"}, Correct: 2}, true},
		{"unanswered", QuestionRecord{Text: "q", Options: [5]string{"a", "b"}}, true},
		{"no text", QuestionRecord{Options: [5]string{"a", "b"}}, false},
		{"one option", QuestionRecord{Text: "q", Options: [5]string{"a"}}, false},
		{"answer on empty slot", QuestionRecord{Text: "q", Options: [5]string{"a", "b"}, Correct: 4}, false},
	}
	for _, tc := range cases {
		if got := tc.record.Valid(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
