package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store backed by a map, guarded by a single
// mutex. It exists for tests and local development — grounded on the same
// single-writer-per-key discipline as the GORM backend, just without a disk.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*Job
	now    func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[int64]*Job),
		now:  time.Now,
	}
}

func (s *MemoryStore) CreateJob(ctx context.Context, fields NewFields) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	now := s.now()

	s.jobs[id] = &Job{
		JobID:           id,
		Title:           fields.Title,
		Domain:          fields.Domain,
		Division:        fields.Division,
		ProposalContent: fields.ProposalContent,
		Segments:        append([]Segment(nil), fields.Segments...),
		HITLStages:      append([]int(nil), fields.HITLStages...),
		Status:          "pending",
		HumanDecision:   DecisionPending,
		LLMDecision:     DecisionPending,
		Metadata:        Metadata{HITLStages: append([]int(nil), fields.HITLStages...)},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return id, nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, errJobNotFound(jobID)
	}
	return job.Clone(), nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, jobID int64, patch JobPatch) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, errJobNotFound(jobID)
	}
	applyPatch(job, patch, s.now())
	return job.Clone(), nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, filter ListFilter) (ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if matchesFilter(job, filter) {
			matched = append(matched, job)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].JobID > matched[j].JobID })

	total := int64(len(matched))
	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*Job, 0, end-start)
	for _, job := range matched[start:end] {
		out = append(out, job.Clone())
	}
	return ListResult{Jobs: out, Total: total}, nil
}

func (s *MemoryStore) DeleteJob(ctx context.Context, jobID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return errJobNotFound(jobID)
	}
	delete(s.jobs, jobID)
	return nil
}

func matchesFilter(job *Job, filter ListFilter) bool {
	if filter.Status != "" && job.Status != filter.Status {
		return false
	}
	if filter.HumanDecision != "" && job.HumanDecision != filter.HumanDecision {
		return false
	}
	if filter.LLMDecision != "" && job.LLMDecision != filter.LLMDecision {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		haystack := strings.ToLower(job.Title + " " + job.ProposalContent)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
