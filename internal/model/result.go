package model

// ResearchResult bundles the four terminal rows of a session. All four are
// written in one transaction on completion; readers get nil fields while the
// session is non-terminal.
type ResearchResult struct {
	Report    *ResearchReport
	Summary   *ResearchSummary
	Reasoning *ResearchReasoning
	Cost      *ResearchCost
}
