package protocol

// HealthReport is the payload of a health event
type HealthReport struct {
	Status  HealthStatus `json:"status"`
	Uptime  float64      `json:"uptime_seconds"`
	Streak  int          `json:"unhealthy_streak"`
	Recover bool         `json:"recovery_triggered"`
}

// SyncReport is the payload of a sync event
type SyncReport struct {
	Fields     map[string]string `json:"fields"`
	Percentage float64           `json:"percentage"`
}

// OrphanReport is the payload of an orphan check event
type OrphanReport struct {
	IsOrphan bool `json:"is_orphan"`
}

// CreateStatusEvent creates a new status event
func CreateStatusEvent(network Network, nodeType NodeType, status NodeStatus) (*Event, error) {
	return NewEvent(EventTypeStatus, network, nodeType, status)
}

// CreateHealthEvent creates a new health event
func CreateHealthEvent(network Network, nodeType NodeType, report HealthReport) (*Event, error) {
	return NewEvent(EventTypeHealth, network, nodeType, report)
}

// CreateSyncEvent creates a new sync progress event
func CreateSyncEvent(network Network, nodeType NodeType, report SyncReport) (*Event, error) {
	return NewEvent(EventTypeSync, network, nodeType, report)
}

// CreateOrphanEvent creates a new orphan check event
func CreateOrphanEvent(network Network, nodeType NodeType, isOrphan bool) (*Event, error) {
	return NewEvent(EventTypeOrphan, network, nodeType, OrphanReport{IsOrphan: isOrphan})
}
