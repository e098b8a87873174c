package proto

// CommandType discriminates the variants of Command, the teacher→student
// tagged union.
type CommandType string

const (
	CommandRequestScreen            CommandType = "RequestScreen"
	CommandStopScreen               CommandType = "StopScreen"
	CommandRequestKeyframe          CommandType = "RequestKeyframe"
	CommandMouseInput               CommandType = "MouseInput"
	CommandMouseInputBatch          CommandType = "MouseInputBatch"
	CommandKeyboardInput            CommandType = "KeyboardInput"
	CommandSendFile                 CommandType = "SendFile"
	CommandListDirectory            CommandType = "ListDirectory"
	CommandShutdown                 CommandType = "Shutdown"
	CommandRestart                  CommandType = "Restart"
	CommandLockScreen               CommandType = "LockScreen"
	CommandLogout                   CommandType = "Logout"
	CommandVersionHandshakeResponse CommandType = "VersionHandshakeResponse"
	CommandUpdateRequired           CommandType = "UpdateRequired"
	CommandUdpOffer                 CommandType = "UdpOffer"
)

// MouseEventType discriminates the kinds of synthetic mouse activity
// the input injector can be asked to perform.
type MouseEventType string

const (
	MouseMove        MouseEventType = "move"
	MouseClickLeft   MouseEventType = "click_left"
	MouseClickRight  MouseEventType = "click_right"
	MouseClickMiddle MouseEventType = "click_middle"
	MouseDown        MouseEventType = "down"
	MouseUp          MouseEventType = "up"
	MouseScroll      MouseEventType = "scroll"
)

// MouseEvent carries normalized (0..1) coordinates relative to the
// student's reported screen dimensions.
type MouseEvent struct {
	Type MouseEventType `json:"type"`
	X    float64        `json:"x"`
	Y    float64        `json:"y"`
	DX   float64        `json:"dx,omitempty"`
	DY   float64        `json:"dy,omitempty"`
}

// IsMove reports whether the event is a plain pointer move, the only
// batchable variant.
func (e MouseEvent) IsMove() bool {
	return e.Type == MouseMove
}

// KeyEvent describes one keyboard action, with optional chord modifiers
// applied before the main key and released in reverse order.
type KeyEvent struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers,omitempty"`
	Text      string   `json:"text,omitempty"` // for type-text events
}

// FilePayload is the content of a SendFile command.
type FilePayload struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Base64 string `json:"base64"`
}

// Command is the teacher→student tagged union. Every variant stores its
// payload in the fields relevant to it; all other fields are zero.
type Command struct {
	Type CommandType `json:"type"`

	Mouse      *MouseEvent  `json:"mouse,omitempty"`
	MouseBatch []MouseEvent `json:"mouseBatch,omitempty"`
	Key        *KeyEvent    `json:"key,omitempty"`
	File       *FilePayload `json:"file,omitempty"`
	Path       string       `json:"path,omitempty"`

	DelaySeconds *int `json:"delaySeconds,omitempty"`

	RequiredVersion string `json:"requiredVersion,omitempty"`
	MandatoryUpdate bool   `json:"mandatoryUpdate,omitempty"`
	UpdateURL       string `json:"updateUrl,omitempty"`
	SHA256          string `json:"sha256,omitempty"`

	UDPPort int `json:"udpPort,omitempty"`
}

// NeedsBatching reports whether cmd is the single variant eligible for
// mouse-move coalescing at the writer: a MouseInput carrying a move
// event.
func (c Command) NeedsBatching() bool {
	return c.Type == CommandMouseInput && c.Mouse != nil && c.Mouse.IsMove()
}

func NewRequestScreen() Command   { return Command{Type: CommandRequestScreen} }
func NewStopScreen() Command      { return Command{Type: CommandStopScreen} }
func NewRequestKeyframe() Command { return Command{Type: CommandRequestKeyframe} }

func NewMouseInput(event MouseEvent) Command {
	e := event
	return Command{Type: CommandMouseInput, Mouse: &e}
}

func NewMouseInputBatch(events []MouseEvent) Command {
	return Command{Type: CommandMouseInputBatch, MouseBatch: events}
}

func NewKeyboardInput(event KeyEvent) Command {
	e := event
	return Command{Type: CommandKeyboardInput, Key: &e}
}

func NewSendFile(name string, size int64, base64Body string) Command {
	return Command{Type: CommandSendFile, File: &FilePayload{Name: name, Size: size, Base64: base64Body}}
}

func NewListDirectory(path string) Command {
	return Command{Type: CommandListDirectory, Path: path}
}

func NewShutdown(delaySeconds *int) Command {
	return Command{Type: CommandShutdown, DelaySeconds: delaySeconds}
}

func NewRestart(delaySeconds *int) Command {
	return Command{Type: CommandRestart, DelaySeconds: delaySeconds}
}

func NewLockScreen() Command { return Command{Type: CommandLockScreen} }
func NewLogout() Command     { return Command{Type: CommandLogout} }

func NewVersionHandshakeResponse(requiredVersion string, mandatoryUpdate bool, updateURL, sha256 string) Command {
	return Command{
		Type:            CommandVersionHandshakeResponse,
		RequiredVersion: requiredVersion,
		MandatoryUpdate: mandatoryUpdate,
		UpdateURL:       updateURL,
		SHA256:          sha256,
	}
}

func NewUpdateRequired(requiredVersion, updateURL, sha256 string) Command {
	return Command{
		Type:            CommandUpdateRequired,
		RequiredVersion: requiredVersion,
		UpdateURL:       updateURL,
		SHA256:          sha256,
	}
}

func NewUdpOffer(port int) Command {
	return Command{Type: CommandUdpOffer, UDPPort: port}
}
