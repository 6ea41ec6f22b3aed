// Package arrayjobs derives parent/child groupings for SLURM array jobs from
// the flat job set. Derivation is pure: the same input always yields the same
// groups and residual list, and nothing here writes back to the store.
package arrayjobs

import (
	"sort"

	"github.com/clusterview/clusterview/internal/domain/model"
)

// groupKey identifies one array job on one host.
type groupKey struct {
	hostname   string
	arrayJobID string
}

// Derive splits records into array-job group summaries and the residual flat
// list with every grouped task filtered out. Output ordering is
// deterministic: groups by (hostname, array_job_id), tasks and residual
// records by (hostname, job_id).
func Derive(records []model.JobRecord) ([]model.ArrayJobGroup, []model.JobRecord) {
	grouped := make(map[groupKey][]model.JobRecord)
	var residual []model.JobRecord

	for _, rec := range records {
		if !rec.IsArrayTask() {
			residual = append(residual, rec)
			continue
		}
		key := groupKey{hostname: rec.Hostname, arrayJobID: *rec.ArrayJobID}
		grouped[key] = append(grouped[key], rec)
	}

	groups := make([]model.ArrayJobGroup, 0, len(grouped))
	for key, tasks := range grouped {
		sort.Slice(tasks, func(i, j int) bool {
			return tasks[i].JobID < tasks[j].JobID
		})

		group := model.ArrayJobGroup{
			ArrayJobID: key.arrayJobID,
			Hostname:   key.hostname,
			JobName:    tasks[0].Name,
			User:       tasks[0].User,
			TaskKeys:   make([]model.JobKey, 0, len(tasks)),
		}
		for _, task := range tasks {
			group.TaskKeys = append(group.TaskKeys, task.Key())
			tally(&group.Counts, task.State)
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Hostname != groups[j].Hostname {
			return groups[i].Hostname < groups[j].Hostname
		}
		return groups[i].ArrayJobID < groups[j].ArrayJobID
	})
	sort.Slice(residual, func(i, j int) bool {
		if residual[i].Hostname != residual[j].Hostname {
			return residual[i].Hostname < residual[j].Hostname
		}
		return residual[i].JobID < residual[j].JobID
	})

	return groups, residual
}

// tally buckets a task state into the five summary counts shown on group
// rows. Transitional states count toward the phase they belong to.
func tally(counts *model.ArrayTaskCounts, state model.JobState) {
	switch state {
	case model.JobStateRunning, model.JobStateCompleting:
		counts.Running++
	case model.JobStatePending, model.JobStateConfiguring,
		model.JobStateSuspended, model.JobStatePreempted:
		counts.Pending++
	case model.JobStateCompleted:
		counts.Completed++
	case model.JobStateFailed, model.JobStateNodeFail, model.JobStateTimeout:
		counts.Failed++
	case model.JobStateCancelled:
		counts.Cancelled++
	}
}
