package events

var (
	JobPublishedTopic     = "JobPublishedEvent"
	JobDeactivatedTopic   = "JobDeactivatedEvent"
	MatchRunFinishedTopic = "MatchRunFinishedEvent"
)

// JobPublished is raised by the job posting side when a job goes live
// or a recruiter explicitly asks for a fresh match list.
type JobPublished struct {
	JobID int
}

// JobDeactivated is raised when a job is closed, archived or deleted.
type JobDeactivated struct {
	JobID int
}

type MatchRunFinished struct {
	JobID      int
	MatchCount int
	Degraded   int
}
