// Package fleetupdate implements the teacher-side coordinator that
// compares student/teacher versions during the handshake, broadcasts a
// mandatory update requirement across every connected session, and
// tracks per-student acknowledgment until the whole fleet is current.
package fleetupdate

import (
	"sync"

	"github.com/classroomlink/link/internal/logging"
	"github.com/classroomlink/link/internal/proto"
	"github.com/classroomlink/link/internal/sessionregistry"
)

var log = logging.L("fleetupdate")

// BroadcastResult summarizes the outcome of a fleet-wide update push.
type BroadcastResult struct {
	TotalSessions int
	SentCount     int
	FailedIDs     []string
}

// Coordinator owns the teacher's current version and the most recent
// LAN update package location, and tracks which connected sessions
// have acknowledged the current requirement.
type Coordinator struct {
	registry *sessionregistry.Registry

	mu              sync.RWMutex
	currentVersion  string
	updateURL       string
	updateSHA256    string
	required        bool
	acknowledgments map[string]struct{}
}

// New creates a coordinator for currentVersion, watching registry for
// connected sessions.
func New(registry *sessionregistry.Registry, currentVersion string) *Coordinator {
	return &Coordinator{
		registry:        registry,
		currentVersion:  currentVersion,
		acknowledgments: make(map[string]struct{}),
	}
}

// CompareVersions parses both as dotted-decimal and returns the
// student vs. teacher ordering; it is a thin wrapper over
// proto.CompareVersions kept here so callers reason about versions in
// fleetupdate's vocabulary.
func CompareVersions(student, teacher string) int {
	return proto.CompareVersions(student, teacher)
}

// SetUpdatePackage records where a mandatory update can be fetched
// without broadcasting to already-connected sessions or clearing
// acknowledgments, for startup configuration before any session exists.
func (c *Coordinator) SetUpdatePackage(url, sha256 string) {
	c.mu.Lock()
	c.updateURL = url
	c.updateSHA256 = sha256
	c.mu.Unlock()
}

// HandshakeRequirement decides whether a student reporting
// studentVersion must update, and if so, what to send. Any non-equal
// comparison is mandatory regardless of direction — the teacher's
// version is authoritative, so a student ahead of the teacher still
// gets flagged (operators run a fleet pinned to one version).
func (c *Coordinator) HandshakeRequirement(studentVersion string) (mandatory bool, requiredVersion, updateURL, sha256 string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if proto.CompareVersions(studentVersion, c.currentVersion) == 0 {
		return false, c.currentVersion, "", ""
	}
	return true, c.currentVersion, c.updateURL, c.updateSHA256
}

// BroadcastUpdateRequired clears prior acknowledgments, persists the
// LAN package location, and enqueues UpdateRequired to every currently
// connected session, marking each session's update-status accordingly.
// Sessions that connect afterward are not covered by this call — the
// caller's handshake path must consult HandshakeRequirement on every
// new connection so late joiners still receive the requirement.
func (c *Coordinator) BroadcastUpdateRequired(requiredVersion, url, sha256 string) BroadcastResult {
	c.mu.Lock()
	c.currentVersion = requiredVersion
	c.updateURL = url
	c.updateSHA256 = sha256
	c.required = true
	c.acknowledgments = make(map[string]struct{})
	c.mu.Unlock()

	cmd := proto.NewUpdateRequired(requiredVersion, url, sha256)

	var result BroadcastResult
	c.registry.Each(func(s *sessionregistry.Session) {
		result.TotalSessions++
		if err := s.SendCommand(cmd); err != nil {
			log.Warn("failed to send UpdateRequired", "session", s.ID, "error", err)
			result.FailedIDs = append(result.FailedIDs, s.ID)
			return
		}
		s.SetUpdateStatus(proto.UpdateStatus{Kind: proto.UpdateRequiredStatus})
		result.SentCount++
	})

	log.Info("broadcast update required",
		"requiredVersion", requiredVersion,
		"totalSessions", result.TotalSessions,
		"sentCount", result.SentCount,
		"failedCount", len(result.FailedIDs))
	return result
}

// RecordAcknowledgment marks sessionID as having accepted version.
func (c *Coordinator) RecordAcknowledgment(sessionID, version string) {
	c.mu.Lock()
	c.acknowledgments[sessionID] = struct{}{}
	c.mu.Unlock()
	log.Info("update acknowledged", "session", sessionID, "version", version)
}

// AllAcknowledged reports whether every currently-connected session ID
// has acknowledged the current update requirement.
func (c *Coordinator) AllAcknowledged() bool {
	ids := c.registry.IDs()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range ids {
		if _, ok := c.acknowledgments[id]; !ok {
			return false
		}
	}
	return true
}

// AllUpToDate reports whether every currently-connected session's
// update-status is UpToDate (the zero value counts as up to date,
// matching a session that never received an update requirement).
func (c *Coordinator) AllUpToDate() bool {
	upToDate := true
	c.registry.Each(func(s *sessionregistry.Session) {
		kind := s.UpdateStatus().Kind
		if kind != "" && kind != proto.UpdateUpToDate {
			upToDate = false
		}
	})
	return upToDate
}

// CurrentVersion returns the teacher's authoritative version string.
func (c *Coordinator) CurrentVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentVersion
}
