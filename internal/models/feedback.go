package models

// Form score bounds.
const (
	MaxFormScore = 10
	MinFormScore = 0
)

// FormFeedback is the form assessment for one frame.
type FormFeedback struct {
	Score      int      `json:"score"`
	Messages   []string `json:"messages"`
	IsGoodForm bool     `json:"is_good_form"`
}

// RepResult is the rep-counter output for one frame.
type RepResult struct {
	Stage        Stage `json:"stage"`
	RepCompleted bool  `json:"rep_completed"`
}
