package protocol

// SyncStep names the phase of the node's initial sync.
type SyncStep string

const (
	SyncStepStartup SyncStep = "Startup"
	SyncStepHeader  SyncStep = "Header"
	SyncStepBlock   SyncStep = "Block"
)
