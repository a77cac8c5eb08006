package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/agentflow/errs"
)

// jobRecord is the GORM model for the `jobs` table, AutoMigrate-compatible
// (grounded on llm/db_init.go's InitDatabase). JSON-shaped fields are stored
// as TEXT and (de)serialized at the boundary instead of relying on a
// database-specific JSON column type, so the same model works unmodified on
// both postgres and sqlite.
type jobRecord struct {
	JobID           int64  `gorm:"column:job_id;primaryKey;autoIncrement"`
	Title           string `gorm:"column:title;size:64"`
	Domain          string `gorm:"column:domain;size:128"`
	Division        string `gorm:"column:division;size:128"`
	ProposalContent string `gorm:"column:proposal_content"`
	Segments        string `gorm:"column:segments"`
	HITLStages      string `gorm:"column:hitl_stages"`
	Status          string `gorm:"column:status;size:32;index"`
	HumanDecision   string `gorm:"column:human_decision;size:16;index"`
	LLMDecision     string `gorm:"column:llm_decision;size:16;index"`
	Metadata        string `gorm:"column:metadata"`
	CreatedAt       time.Time `gorm:"column:created_at;index"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (jobRecord) TableName() string { return "jobs" }

func (r *jobRecord) toJob() (*Job, error) {
	job := &Job{
		JobID:           r.JobID,
		Title:           r.Title,
		Domain:          r.Domain,
		Division:        r.Division,
		ProposalContent: r.ProposalContent,
		Status:          r.Status,
		HumanDecision:   r.HumanDecision,
		LLMDecision:     r.LLMDecision,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.Segments != "" {
		if err := json.Unmarshal([]byte(r.Segments), &job.Segments); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
	}
	if r.HITLStages != "" {
		if err := json.Unmarshal([]byte(r.HITLStages), &job.HITLStages); err != nil {
			return nil, fmt.Errorf("decode hitl_stages: %w", err)
		}
	}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &job.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return job, nil
}

func fromJob(job *Job) (*jobRecord, error) {
	segments, err := json.Marshal(job.Segments)
	if err != nil {
		return nil, err
	}
	hitlStages, err := json.Marshal(job.HITLStages)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return nil, err
	}
	return &jobRecord{
		JobID:           job.JobID,
		Title:           job.Title,
		Domain:          job.Domain,
		Division:        job.Division,
		ProposalContent: job.ProposalContent,
		Segments:        string(segments),
		HITLStages:      string(hitlStages),
		Status:          job.Status,
		HumanDecision:   job.HumanDecision,
		LLMDecision:     job.LLMDecision,
		Metadata:        string(metadata),
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}, nil
}

// GormStore is the durable Store backend over postgres or sqlite.
// UpdateJob serializes concurrent writers for the same job with an
// in-process per-job mutex (spec §4.5's "single-writer per job" — sqlite
// has no portable row-lock primitive, so the discipline is enforced above
// the driver rather than relying on one).
type GormStore struct {
	db *gorm.DB

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewGormStore wraps an already-opened, already-migrated *gorm.DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, locks: make(map[int64]*sync.Mutex)}
}

// AutoMigrate creates/updates the jobs table. Call once at startup; in
// production prefer internal/migration's versioned runner instead.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		return fmt.Errorf("auto migrate jobs table: %w", err)
	}
	return nil
}

func (s *GormStore) lockFor(jobID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[jobID] = l
	}
	return l
}

func (s *GormStore) CreateJob(ctx context.Context, fields NewFields) (int64, error) {
	now := time.Now()
	job := &Job{
		Title:           fields.Title,
		Domain:          fields.Domain,
		Division:        fields.Division,
		ProposalContent: fields.ProposalContent,
		Segments:        fields.Segments,
		HITLStages:      fields.HITLStages,
		Status:          "pending",
		HumanDecision:   DecisionPending,
		LLMDecision:     DecisionPending,
		Metadata:        Metadata{HITLStages: fields.HITLStages},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	rec, err := fromJob(job)
	if err != nil {
		return 0, errs.New(errs.ErrStoreWrite, "encode job").WithCause(err)
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return 0, errs.New(errs.ErrStoreWrite, "create job").WithCause(err)
	}
	return rec.JobID, nil
}

func (s *GormStore) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errJobNotFound(jobID)
		}
		return nil, errs.New(errs.ErrStoreRead, "get job").WithCause(err)
	}
	job, err := rec.toJob()
	if err != nil {
		return nil, errs.New(errs.ErrStoreRead, "decode job").WithCause(err)
	}
	return job, nil
}

func (s *GormStore) UpdateJob(ctx context.Context, jobID int64, patch JobPatch) (*Job, error) {
	lock := s.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	applyPatch(job, patch, time.Now())

	rec, err := fromJob(job)
	if err != nil {
		return nil, errs.New(errs.ErrStoreWrite, "encode job patch").WithCause(err)
	}
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Save(rec).Error; err != nil {
		return nil, errs.New(errs.ErrStoreWrite, "update job").WithCause(err)
	}
	return job, nil
}

func (s *GormStore) ListJobs(ctx context.Context, filter ListFilter) (ListResult, error) {
	q := s.db.WithContext(ctx).Model(&jobRecord{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.HumanDecision != "" {
		q = q.Where("human_decision = ?", filter.HumanDecision)
	}
	if filter.LLMDecision != "" {
		q = q.Where("llm_decision = ?", filter.LLMDecision)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("title LIKE ? OR proposal_content LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return ListResult{}, errs.New(errs.ErrStoreRead, "count jobs").WithCause(err)
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var recs []jobRecord
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&recs).Error
	if err != nil {
		return ListResult{}, errs.New(errs.ErrStoreRead, "list jobs").WithCause(err)
	}

	jobs := make([]*Job, 0, len(recs))
	for i := range recs {
		job, err := recs[i].toJob()
		if err != nil {
			return ListResult{}, errs.New(errs.ErrStoreRead, "decode job").WithCause(err)
		}
		jobs = append(jobs, job)
	}
	return ListResult{Jobs: jobs, Total: total}, nil
}

func (s *GormStore) DeleteJob(ctx context.Context, jobID int64) error {
	lock := s.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	res := s.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&jobRecord{})
	if res.Error != nil {
		return errs.New(errs.ErrStoreWrite, "delete job").WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return errJobNotFound(jobID)
	}
	return nil
}
