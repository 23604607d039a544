package quiz

import (
	"strings"
)

// grade recomputes an attempt's score from scratch out of its stored answers, in their persisted order.
// Auto-graded answers are marked by case-insensitive exact match; short answers keep the marks an
// instructor gave them and count as pending until graded. It returns the answers whose grading changed.
func grade(a Attempt, answers []Answer, questions map[int64]Question) (Attempt, []Answer) {
	var (
		obtained, total, pending int
		changed                  []Answer
	)

	for _, ans := range answers {
		q, ok := questions[ans.QuestionID]
		if !ok {
			continue
		}
		total += q.Marks

		if !q.Type.AutoGraded() {
			if ans.IsCorrect == nil {
				pending++
			}
			obtained += ans.MarksAwarded
			continue
		}

		correct := strings.EqualFold(ans.Answer, q.CorrectAnswer)
		marks := 0
		if correct {
			marks = q.Marks
		}
		if ans.IsCorrect == nil || *ans.IsCorrect != correct || ans.MarksAwarded != marks {
			ans.IsCorrect = &correct
			ans.MarksAwarded = marks
			changed = append(changed, ans)
		}
		obtained += marks
	}

	a.MarksObtained = obtained
	a.TotalMarks = total
	if total > 0 {
		a.Percentage = percentage(obtained, total)
	}
	a.PendingManualGrading = pending
	a.Status = StatusGraded
	return a, changed
}

// percentage returns part/whole*100, unrounded. Reports round it when rendering.
func percentage(part, whole int) float64 {
	return float64(part) / float64(whole) * 100
}

// pendingManualGrading counts the short answers no instructor graded yet.
func pendingManualGrading(answers []Answer, questions map[int64]Question) int {
	var n int
	for _, ans := range answers {
		if q, ok := questions[ans.QuestionID]; ok && !q.Type.AutoGraded() && ans.IsCorrect == nil {
			n++
		}
	}
	return n
}
