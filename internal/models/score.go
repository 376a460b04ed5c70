package models

// ScoreItem is a single question-level deduction for a student.
type ScoreItem struct {
	QuestionName string  `json:"question_name" msgpack:"question_name"`
	Deduction    float64 `json:"deduction" msgpack:"deduction"`
	Category     string  `json:"category" msgpack:"category"`
}

// StudentScore is one student's record within an uploaded file. Analysis and
// Suggestions are empty until the AI analyze step has run; TotalScore is
// authoritative from the backend and never recomputed here.
type StudentScore struct {
	StudentName string      `json:"student_name" msgpack:"student_name"`
	Scores      []ScoreItem `json:"scores" msgpack:"scores"`
	TotalScore  float64     `json:"total_score" msgpack:"total_score"`
	Analysis    string      `json:"analysis,omitempty" msgpack:"analysis,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty" msgpack:"suggestions,omitempty"`
}

// Analyzed reports whether the record carries AI commentary.
func (s *StudentScore) Analyzed() bool {
	return s.Analysis != ""
}
