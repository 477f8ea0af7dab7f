package eventbus

// Event types published by the housekeeping pass.
const (
	TopicPassStarted      = "pass.started"
	TopicPassFinished     = "pass.finished"
	TopicTaskCreated      = "task.created"
	TopicTaskCreateFailed = "task.create_failed"
)
