package models

// Mail is the provider-neutral shape of one fetched message. It only ever
// lives in memory between fetch and classification.
type Mail struct {
	ID      string
	Subject string
	Body    string
	Link    string
	Source  string
}

// SummarizeEmailJob is one queued unit of classification work. Jobs are
// transient: created by the fetch pass, consumed exactly once by a
// classification worker, never persisted.
type SummarizeEmailJob struct {
	ID                 string
	UserID             string
	ConnectedAccountID string
	EmailID            string
	Subject            string
	Body               string
	Link               string
	Source             string
}
