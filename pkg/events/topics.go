package events

const (
	TopicCheckerReport = "tpc:checker:report"
	TopicOperation     = "tpc:operation"
)
