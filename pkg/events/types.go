package events

import "github.com/veesix-networks/tpc/pkg/models"

// CheckerReportEvent is published for every checker frame punted by a switch.
type CheckerReportEvent struct {
	Report models.CheckerReport
}

// OperationEvent is published once per engine operation, successful or not.
type OperationEvent struct {
	Result models.OperationResult
}
