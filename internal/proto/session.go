package proto

// SessionStatus is the lifecycle state of one teacher↔student pairing.
type SessionStatus string

const (
	StatusDisconnected   SessionStatus = "Disconnected"
	StatusConnecting     SessionStatus = "Connecting"
	StatusAuthenticating SessionStatus = "Authenticating" // legacy, unused by the live protocol
	StatusConnected      SessionStatus = "Connected"
	StatusViewing        SessionStatus = "Viewing"
	StatusError          SessionStatus = "Error"
)

// UpdateStatusKind is the per-session fleet-update state.
type UpdateStatusKind string

const (
	UpdateUpToDate       UpdateStatusKind = "UpToDate"
	UpdateRequiredStatus UpdateStatusKind = "UpdateRequired"
	UpdateDownloading    UpdateStatusKind = "Downloading"
	UpdateVerifying      UpdateStatusKind = "Verifying"
	UpdateInstalling     UpdateStatusKind = "Installing"
	UpdateFailed         UpdateStatusKind = "Failed"
)

// UpdateStatus pairs the state with the data it carries: Downloading's
// progress percentage, or Failed's reason.
type UpdateStatus struct {
	Kind     UpdateStatusKind
	Progress int    // meaningful only for Downloading
	Reason   string // meaningful only for Failed
}

func (s UpdateStatus) String() string {
	return string(s.Kind)
}
