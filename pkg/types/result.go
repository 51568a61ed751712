package types

// TaskResult is the structured outcome of one coding task run.
type TaskResult struct {
	// Status is true when the agent reports the task as completed.
	Status bool `json:"status"`
	// Summary describes what was done.
	Summary string `json:"summary"`
	// Insights holds task-agnostic guidance for future runs. May be empty.
	Insights string `json:"insights"`
}

// FileDiff summarizes line changes observed in one workspace file.
type FileDiff struct {
	File      string `json:"file"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}
