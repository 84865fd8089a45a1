package cron

// Schedule kinds.
const (
	KindEvery = "every"
	KindCron  = "cron"
	KindAt    = "at"
)

// Schedule is a tagged variant: exactly one of EveryMs, Expr or AtMs is
// meaningful depending on Kind.
type Schedule struct {
	Kind    string `json:"kind"`
	EveryMs int64  `json:"everyMs,omitempty"`
	Expr    string `json:"expr,omitempty"`
	AtMs    int64  `json:"atMs,omitempty"`
}

// Payload is what a job does when it fires: the message becomes a direct
// agent turn, and with Deliver set the response is also sent to
// (Channel, To).
type Payload struct {
	Message string `json:"message"`
	Deliver bool   `json:"deliver,omitempty"`
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
}

// JobState is the mutable scheduling state of a job.
type JobState struct {
	NextRunAtMs         int64  `json:"nextRunAtMs,omitempty"`
	LastRunAtMs         int64  `json:"lastRunAtMs,omitempty"`
	LastStatus          string `json:"lastStatus,omitempty"` // ok | error
	LastError           string `json:"lastError,omitempty"`
	ConsecutiveFailures int    `json:"consecutiveFailures,omitempty"`
}

// Job is one scheduled entry.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMs    int64    `json:"createdAtMs"`
	UpdatedAtMs    int64    `json:"updatedAtMs"`
	DeleteAfterRun bool     `json:"deleteAfterRun,omitempty"`
}

// Status summarizes the service for the CLI.
type Status struct {
	Running    bool  `json:"running"`
	Jobs       int   `json:"jobs"`
	Enabled    int   `json:"enabled"`
	NextWakeMs int64 `json:"nextWakeMs,omitempty"`
}

type storeDoc struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}
