package job

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusEnriched Status = "enriched"
)

const DefaultStage = "Bookmarked"

// Fields is the subset of job fields a client-side scraper may supply up front.
type Fields struct {
	Title       *string
	Company     *string
	Location    *string
	Salary      *string
	Description *string
}

type Submission struct {
	URL          string
	CanonicalURL string
	HTMLContent  string
	Fallback     Fields
	Stage        string
	Excitement   int
}

// Extracted is the output of one extraction stage. A nil field means the
// stage found nothing for it.
type Extracted struct {
	Title           *string
	Company         *string
	Location        *string
	Salary          *string
	Description     *string
	JobType         *string
	ExperienceLevel *string
	RemoteWork      bool
	Benefits        []string
	Requirements    []string
	Skills          []string
}

func (e Extracted) Fields() Fields {
	return Fields{
		Title:       e.Title,
		Company:     e.Company,
		Location:    e.Location,
		Salary:      e.Salary,
		Description: e.Description,
	}
}

func (e Extracted) IsEmpty() bool {
	return e.Title == nil && e.Company == nil && e.Location == nil && e.Salary == nil &&
		e.Description == nil && e.JobType == nil && e.ExperienceLevel == nil && !e.RemoteWork &&
		len(e.Benefits) == 0 && len(e.Requirements) == 0 && len(e.Skills) == 0
}

type Record struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	JobURL       string
	CanonicalURL string
	Extracted
	Stage              string
	Excitement         int
	Status             Status
	EnrichmentAttempts int
	CreatedAt          time.Time
	UpdatedAt          time.Time
	EnrichedAt         *time.Time
	// SourceHTML is the client-supplied page, held only while pending. It is
	// written on insert and read back by ListPendingForRetry only.
	SourceHTML string
}

// Update carries the enrichment result for one record. Nil pointers leave the
// stored column unchanged.
type Update struct {
	Extracted
}
