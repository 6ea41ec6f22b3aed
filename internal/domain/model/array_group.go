package model

// ArrayTaskCounts breaks an array job's tasks down by state.
type ArrayTaskCounts struct {
	Running   int `json:"running"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Total returns the number of tasks accounted for in the counts.
func (c ArrayTaskCounts) Total() int {
	return c.Running + c.Pending + c.Completed + c.Failed + c.Cancelled
}

// ArrayJobGroup is the derived parent summary of a SLURM array job. Groups
// are recomputed from the job store on every emission and never mutated in
// place.
type ArrayJobGroup struct {
	ArrayJobID string          `json:"array_job_id"`
	Hostname   string          `json:"hostname"`
	JobName    string          `json:"job_name"`
	User       string          `json:"user"`
	Counts     ArrayTaskCounts `json:"counts"`
	TaskKeys   []JobKey        `json:"task_keys"`
}
