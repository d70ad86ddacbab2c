package logger

const (
	Main       = "main"
	Engine     = "engine"
	PacketIn   = "packetin"
	Cleanup    = "cleanup"
	Southbound = "southbound"
	P4RT       = "p4rt"
	Memory     = "memory"
	Northbound = "nb"
	Exporter   = "exporter"
	Events     = "events"
	Config     = "config"
	CLI        = "cli"
)
