package teacherconnector

import (
	"context"
	"fmt"
	"time"

	"github.com/classroomlink/link/internal/proto"
	"github.com/classroomlink/link/internal/sessionregistry"
)

// directoryListingTimeout bounds how long a teacher-side browse waits
// for the student's DirectoryListing reply before the pending slot is
// evicted.
const directoryListingTimeout = 10 * time.Second

type listingResult struct {
	path  string
	files []proto.DirEntry
}

// RequestDirectoryListing sends ListDirectory to the session and blocks
// for the matching DirectoryListing reply. One browse may be pending
// per session at a time; a new request takes over the slot, and an
// earlier request still waiting gets no reply and ends at its own
// timeout or context cancellation. On timeout the slot is evicted and a late
// reply only reaches the OnDirectoryListing hook.
func (c *Connector) RequestDirectoryListing(ctx context.Context, session *sessionregistry.Session, path string) ([]proto.DirEntry, error) {
	ch := make(chan listingResult, 1)

	c.listingMu.Lock()
	if c.listings == nil {
		c.listings = make(map[string]chan listingResult)
	}
	c.listings[session.ConnectionID] = ch
	c.listingMu.Unlock()

	defer c.evictListing(session.ConnectionID, ch)

	if err := session.SendCommand(proto.NewListDirectory(path)); err != nil {
		return nil, fmt.Errorf("teacherconnector: dispatch ListDirectory: %w", err)
	}

	select {
	case r := <-ch:
		return r.files, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(directoryListingTimeout):
		return nil, fmt.Errorf("teacherconnector: no directory listing from %s within %s", session.ID, directoryListingTimeout)
	}
}

// fulfillListing hands a DirectoryListing reply to the pending browse,
// if one is waiting. Replies with no pending slot (timed out, or pushed
// unrequested) are dropped here; the hook still fires from the read
// loop either way.
func (c *Connector) fulfillListing(session *sessionregistry.Session, path string, files []proto.DirEntry) {
	c.listingMu.Lock()
	ch, ok := c.listings[session.ConnectionID]
	if ok {
		delete(c.listings, session.ConnectionID)
	}
	c.listingMu.Unlock()
	if ok {
		ch <- listingResult{path: path, files: files}
	}
}

// evictListing removes the pending slot only if it still holds ch, so a
// replacement request registered meanwhile is left untouched.
func (c *Connector) evictListing(connectionID string, ch chan listingResult) {
	c.listingMu.Lock()
	if cur, ok := c.listings[connectionID]; ok && cur == ch {
		delete(c.listings, connectionID)
	}
	c.listingMu.Unlock()
}
