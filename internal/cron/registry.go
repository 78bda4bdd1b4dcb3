package cron

import "context"

// Job is a periodic housekeeping task run inside the API process.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order, one per name.
type Registry struct {
	jobs  []Job
	index map[string]int
}

// NewRegistry builds a registry preloaded with jobs. Nil jobs are skipped.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{index: map[string]int{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds job, replacing any earlier job with the same name in place.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if r.index == nil {
		r.index = map[string]int{}
	}
	if i, ok := r.index[job.Name()]; ok {
		r.jobs[i] = job
		return
	}
	r.index[job.Name()] = len(r.jobs)
	r.jobs = append(r.jobs, job)
}

func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
