// Package ingestion defines the question records an evaluation run consumes.
package ingestion

// Question is one entry of an evaluation question set. ID and Question are
// required; the lists default to empty.
type Question struct {
	ID               string   `json:"id" yaml:"id"`
	Question         string   `json:"question" yaml:"question"`
	ExpectedKeywords []string `json:"expected_keywords" yaml:"expected_keywords"`
	MustBeGroundedIn []string `json:"must_be_grounded_in" yaml:"must_be_grounded_in"`
}
