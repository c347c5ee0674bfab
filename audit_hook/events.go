package audithook

// Audit event actions. Each constant corresponds to one lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobEnqueued        = "job.enqueued"
	ActionJobStarted         = "job.started"
	ActionJobCompleted       = "job.completed"
	ActionJobFailed          = "job.failed"
	ActionWorkerStarted      = "worker.started"
	ActionWorkerStopped      = "worker.stopped"
	ActionWorkerStateChanged = "worker.state_changed"
)

// Audit event categories group related actions.
const (
	CategoryJob    = "ojs.job"
	CategoryWorker = "ojs.worker"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob    = "job"
	ResourceWorker = "worker"
)

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
