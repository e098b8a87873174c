package proto

// MessageType discriminates the variants of StudentMessage, the
// student→teacher tagged union.
type MessageType string

const (
	MessageWelcome            MessageType = "Welcome"
	MessageScreenReady        MessageType = "ScreenReady"
	MessageScreenStopped      MessageType = "ScreenStopped"
	MessageScreenStatus       MessageType = "ScreenStatus"
	MessagePong               MessageType = "Pong"
	MessageDirectoryListing   MessageType = "DirectoryListing"
	MessageFileReceived       MessageType = "FileReceived"
	MessageUpdateStatus       MessageType = "UpdateStatus"
	MessageUpdateAcknowledged MessageType = "UpdateAcknowledged"
	MessageUdpReady           MessageType = "UdpReady"
	MessageUdpFallback        MessageType = "UdpFallback"
	MessageError              MessageType = "Error"
)

// DirEntry is one entry returned by a ListDirectory command.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size"`
}

// StudentMessage is the student→teacher tagged union. Binary frames
// (encoded Frame bytes) travel out-of-band on the same link and are not
// represented here.
type StudentMessage struct {
	Type MessageType `json:"type"`

	StudentName    string `json:"studentName,omitempty"`
	CurrentVersion string `json:"currentVersion,omitempty"`
	MachineName    string `json:"machineName,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	Path  string     `json:"path,omitempty"`
	Files []DirEntry `json:"files,omitempty"`

	Name    string `json:"name,omitempty"`
	Success bool   `json:"success,omitempty"`

	Progress *int   `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`

	Version string `json:"version,omitempty"`
}

func NewWelcome(studentName, currentVersion, machineName string) StudentMessage {
	return StudentMessage{
		Type:           MessageWelcome,
		StudentName:    studentName,
		CurrentVersion: currentVersion,
		MachineName:    machineName,
	}
}

func NewScreenReady(width, height int) StudentMessage {
	return StudentMessage{Type: MessageScreenReady, Width: width, Height: height}
}

func NewScreenStopped() StudentMessage { return StudentMessage{Type: MessageScreenStopped} }

func NewScreenStatus(status, message string) StudentMessage {
	return StudentMessage{Type: MessageScreenStatus, Status: status, Message: message}
}

func NewPong() StudentMessage { return StudentMessage{Type: MessagePong} }

func NewDirectoryListing(path string, files []DirEntry) StudentMessage {
	return StudentMessage{Type: MessageDirectoryListing, Path: path, Files: files}
}

func NewFileReceived(name string, success bool, message string) StudentMessage {
	return StudentMessage{Type: MessageFileReceived, Name: name, Success: success, Message: message}
}

func NewUpdateStatus(status string, progress *int, errMsg string) StudentMessage {
	return StudentMessage{Type: MessageUpdateStatus, Status: status, Progress: progress, Error: errMsg}
}

func NewUpdateAcknowledged(version string) StudentMessage {
	return StudentMessage{Type: MessageUpdateAcknowledged, Version: version}
}

func NewUdpReady() StudentMessage    { return StudentMessage{Type: MessageUdpReady} }
func NewUdpFallback() StudentMessage { return StudentMessage{Type: MessageUdpFallback} }

func NewError(message string) StudentMessage {
	return StudentMessage{Type: MessageError, Message: message}
}
