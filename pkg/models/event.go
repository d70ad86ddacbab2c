package models

import "time"

// CheckerReport is a checker frame punted to the controller.
type CheckerReport struct {
	DeviceID   DeviceID   `json:"device_id"`
	Port       PortNumber `json:"port"`
	EtherType  uint16     `json:"ether_type"`
	Length     int        `json:"length"`
	ReceivedAt time.Time  `json:"received_at"`
}

type Operation string

const (
	OperationAttack      Operation = "add_attack"
	OperationSliceID     Operation = "add_slice_id"
	OperationSliceQoS    Operation = "add_slice_qos"
	OperationCheckingOn  Operation = "turn_on_checking"
	OperationCheckingOff Operation = "turn_off_checking"
	OperationFlush       Operation = "flush"
	OperationCleanup     Operation = "cleanup"
)

// OperationResult summarises one engine operation for observers.
type OperationResult struct {
	Operation    Operation `json:"operation"`
	RulesApplied int       `json:"rules_applied"`
	RulesRemoved int       `json:"rules_removed"`
	Meters       int       `json:"meters"`
	Error        string    `json:"error,omitempty"`
}
