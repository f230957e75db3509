package kafka

// Topic definitions for Kafka event streaming
const (
	// TopicReportSubmitted carries citizen crime reports for alert fan-out
	TopicReportSubmitted = "crime.reports.submitted"
)
