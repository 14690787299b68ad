package models

type QuizQuestion struct {
	ID          int      `json:"id"`
	Category    string   `json:"category"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Explanation string   `json:"explanation"`
}

func (q *QuizQuestion) IsCorrect(option int) bool {
	return option == q.Correct
}
