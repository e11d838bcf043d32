package dto

import (
	"strings"

	"job-ingest/internal/domain/job"
)

type FallbackData struct {
	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Description string `json:"description"`
}

// IngestRequest accepts both the extension payload (fallback_data) and the
// older save-job form with the same fields at the top level.
type IngestRequest struct {
	URL          string        `json:"url"`
	CanonicalURL string        `json:"canonical_url"`
	HTMLContent  string        `json:"html_content"`
	FallbackData *FallbackData `json:"fallback_data"`
	Stage        string        `json:"stage"`
	Excitement   int           `json:"excitement"`

	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Description string `json:"description"`
}

func (r IngestRequest) Validate() string {
	if strings.TrimSpace(r.URL) == "" {
		return "url is required"
	}
	if r.Excitement < 0 {
		return "excitement must not be negative"
	}
	return ""
}

func (r IngestRequest) ToSubmission() job.Submission {
	fb := FallbackData{}
	if r.FallbackData != nil {
		fb = *r.FallbackData
	}
	return job.Submission{
		URL:          strings.TrimSpace(r.URL),
		CanonicalURL: strings.TrimSpace(r.CanonicalURL),
		HTMLContent:  r.HTMLContent,
		Stage:        strings.TrimSpace(r.Stage),
		Excitement:   r.Excitement,
		Fallback: job.Fields{
			Title:       pick(fb.JobTitle, r.JobTitle),
			Company:     pick(fb.Company, r.Company),
			Location:    pick(fb.Location, r.Location),
			Salary:      pick(fb.Salary, r.Salary),
			Description: pick(fb.Description, r.Description),
		},
	}
}

func pick(values ...string) *string {
	for _, v := range values {
		if p := job.Text(v); p != nil {
			return p
		}
	}
	return nil
}

type IngestResponse struct {
	JobID         *string        `json:"job_id"`
	Status        string         `json:"status"`
	Message       string         `json:"message"`
	IsDuplicate   bool           `json:"is_duplicate"`
	ExtractedData *ExtractedData `json:"extracted_data,omitempty"`
}

type IngestMetadata struct {
	Stage      string `json:"stage"`
	Excitement int    `json:"excitement"`
}

// IngestHTMLRequest is the synchronous form: the caller already holds the
// rendered page and wants the extraction back.
type IngestHTMLRequest struct {
	HTML         string          `json:"html"`
	SourceURL    string          `json:"source_url"`
	CanonicalURL string          `json:"canonical_url"`
	Metadata     *IngestMetadata `json:"metadata"`
}

func (r IngestHTMLRequest) Validate() string {
	if strings.TrimSpace(r.SourceURL) == "" {
		return "source_url is required"
	}
	if strings.TrimSpace(r.HTML) == "" {
		return "html is required"
	}
	if r.Metadata != nil && r.Metadata.Excitement < 0 {
		return "excitement must not be negative"
	}
	return ""
}

func (r IngestHTMLRequest) ToSubmission() job.Submission {
	sub := job.Submission{
		URL:          strings.TrimSpace(r.SourceURL),
		CanonicalURL: strings.TrimSpace(r.CanonicalURL),
		HTMLContent:  r.HTML,
	}
	if r.Metadata != nil {
		sub.Stage = strings.TrimSpace(r.Metadata.Stage)
		sub.Excitement = r.Metadata.Excitement
	}
	return sub
}

type ExtractedData struct {
	Title           string   `json:"job_title"`
	Company         string   `json:"company"`
	Location        string   `json:"location"`
	Salary          string   `json:"salary"`
	Description     string   `json:"description"`
	JobType         string   `json:"job_type"`
	ExperienceLevel string   `json:"experience_level"`
	RemoteWork      bool     `json:"remote_work"`
	Benefits        []string `json:"benefits"`
	Requirements    []string `json:"requirements"`
	Skills          []string `json:"skills"`
}

func NewExtractedData(e job.Extracted) *ExtractedData {
	return &ExtractedData{
		Title:           job.OrDefault(e.Title, job.UnknownTitle),
		Company:         job.OrDefault(e.Company, job.UnknownCompany),
		Location:        job.OrDefault(e.Location, job.UnknownLocation),
		Salary:          job.Deref(e.Salary),
		Description:     job.Deref(e.Description),
		JobType:         job.Deref(e.JobType),
		ExperienceLevel: job.Deref(e.ExperienceLevel),
		RemoteWork:      e.RemoteWork,
		Benefits:        nonNil(e.Benefits),
		Requirements:    nonNil(e.Requirements),
		Skills:          nonNil(e.Skills),
	}
}
