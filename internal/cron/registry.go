package cron

import (
	"context"
	"fmt"
	"slices"
)

// Job is one unit of scheduled work. Jobs in a cycle run sequentially under
// the worker lock, so a job never overlaps another instance of itself.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in the order a cycle runs them.
type Registry struct {
	jobs []Job
}

// NewRegistry registers jobs in order, dropping nils and repeated names.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		_ = r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if slices.ContainsFunc(r.jobs, func(j Job) bool { return j.Name() == name }) {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the run order.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
