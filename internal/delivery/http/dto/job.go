package dto

import (
	"time"

	"job-ingest/internal/domain/job"
)

type JobResponse struct {
	ID                 string   `json:"id"`
	JobURL             string   `json:"job_url"`
	CanonicalURL       string   `json:"canonical_url"`
	Title              string   `json:"job_title"`
	Company            string   `json:"company"`
	Location           string   `json:"location"`
	Salary             string   `json:"salary"`
	Description        string   `json:"description"`
	JobType            string   `json:"job_type"`
	ExperienceLevel    string   `json:"experience_level"`
	RemoteWork         bool     `json:"remote_work"`
	Benefits           []string `json:"benefits"`
	Requirements       []string `json:"requirements"`
	Skills             []string `json:"skills"`
	Stage              string   `json:"stage"`
	Excitement         int      `json:"excitement"`
	Status             string   `json:"status"`
	EnrichmentAttempts int      `json:"enrichment_attempts"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
	EnrichedAt         *string  `json:"enriched_at"`
}

// NewJobResponse fills the display placeholders for absent fields.
func NewJobResponse(rec job.Record) JobResponse {
	out := JobResponse{
		ID:                 rec.ID.String(),
		JobURL:             rec.JobURL,
		CanonicalURL:       rec.CanonicalURL,
		Title:              job.OrDefault(rec.Title, job.UnknownTitle),
		Company:            job.OrDefault(rec.Company, job.UnknownCompany),
		Location:           job.OrDefault(rec.Location, job.UnknownLocation),
		Salary:             job.Deref(rec.Salary),
		Description:        job.Deref(rec.Description),
		JobType:            job.Deref(rec.JobType),
		ExperienceLevel:    job.Deref(rec.ExperienceLevel),
		RemoteWork:         rec.RemoteWork,
		Benefits:           nonNil(rec.Benefits),
		Requirements:       nonNil(rec.Requirements),
		Skills:             nonNil(rec.Skills),
		Stage:              rec.Stage,
		Excitement:         rec.Excitement,
		Status:             string(rec.Status),
		EnrichmentAttempts: rec.EnrichmentAttempts,
		CreatedAt:          rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if rec.EnrichedAt != nil {
		s := rec.EnrichedAt.UTC().Format(time.RFC3339)
		out.EnrichedAt = &s
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
