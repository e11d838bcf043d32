package ws

import (
	"encoding/json"
	"time"

	"job-ingest/internal/domain/job"
)

type JobEnrichedEvent struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	JobTitle  string `json:"job_title"`
	Company   string `json:"company"`
	Location  string `json:"location"`
	Timestamp string `json:"timestamp"`
}

// Notifier pushes enrichment results to the owner's open connections.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) JobEnriched(rec job.Record) {
	if n == nil || n.hub == nil {
		return
	}
	evt := JobEnrichedEvent{
		Type:      "job_enriched",
		JobID:     rec.ID.String(),
		Status:    string(rec.Status),
		JobTitle:  job.OrDefault(rec.Title, job.UnknownTitle),
		Company:   job.OrDefault(rec.Company, job.UnknownCompany),
		Location:  job.OrDefault(rec.Location, job.UnknownLocation),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}
	n.hub.SendToUser(rec.UserID.String(), b)
}
