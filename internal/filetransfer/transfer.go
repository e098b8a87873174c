// Package filetransfer implements the student-side half of the file
// push and directory browse commands: materializing a base64-encoded
// SendFile payload under a fixed inbound directory, and walking a
// directory path for ListDirectory. Both are request/response pairs
// carried on the JSON signaling link rather than a separate transport.
package filetransfer

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/classroomlink/link/internal/logging"
	"github.com/classroomlink/link/internal/proto"
)

var log = logging.L("filetransfer")

// Manager materializes incoming files and lists directories, both
// scoped to the local filesystem of the machine it runs on.
type Manager struct {
	inboundDir string
}

// New returns a Manager that stages SendFile payloads under inboundDir,
// creating it on first use if it does not already exist.
func New(inboundDir string) *Manager {
	return &Manager{inboundDir: inboundDir}
}

// HandleSendFile decodes base64Body and writes it to name under the
// inbound directory. A name containing path separators or ".." is
// rejected rather than allowed to escape the inbound directory.
func (m *Manager) HandleSendFile(name string, size int64, base64Body string) proto.StudentMessage {
	if err := validateFileName(name); err != nil {
		log.Warn("rejected send_file", "name", name, "error", err)
		return proto.NewFileReceived(name, false, err.Error())
	}

	if err := os.MkdirAll(m.inboundDir, 0o755); err != nil {
		msg := fmt.Sprintf("create inbound directory: %v", err)
		log.Error("send_file failed", "name", name, "error", msg)
		return proto.NewFileReceived(name, false, msg)
	}

	data, err := base64.StdEncoding.DecodeString(base64Body)
	if err != nil {
		msg := fmt.Sprintf("decode file contents: %v", err)
		log.Warn("send_file failed", "name", name, "error", msg)
		return proto.NewFileReceived(name, false, msg)
	}

	if size > 0 && int64(len(data)) != size {
		log.Warn("send_file size mismatch", "name", name, "declared", size, "actual", len(data))
	}

	dest := filepath.Join(m.inboundDir, filepath.Clean(name))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		msg := fmt.Sprintf("write file: %v", err)
		log.Error("send_file failed", "name", name, "error", msg)
		return proto.NewFileReceived(name, false, msg)
	}

	log.Info("received file", "name", name, "bytes", len(data), "path", dest)
	return proto.NewFileReceived(name, true, fmt.Sprintf("saved %d bytes to %s", len(data), dest))
}

// validateFileName rejects names that would let SendFile escape the
// inbound directory: absolute paths, nested directories, and "..".
func validateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name is empty")
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("file name must not be an absolute path")
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("file name must not escape the inbound directory")
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return fmt.Errorf("file name must not contain path separators")
	}
	return nil
}

// HandleListDirectory lists the immediate contents of path, returning
// a DirectoryListing on success and an Error message if path cannot be
// read. Entries are sorted directories-first, then lexically by name.
func (m *Manager) HandleListDirectory(path string) proto.StudentMessage {
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		msg := fmt.Sprintf("list directory %q: %v", path, err)
		log.Warn("list_directory failed", "path", path, "error", err)
		return proto.NewError(msg)
	}

	files := make([]proto.DirEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		files = append(files, proto.DirEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
			Size:  size,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].IsDir != files[j].IsDir {
			return files[i].IsDir
		}
		return files[i].Name < files[j].Name
	})

	log.Info("listed directory", "path", path, "entries", len(files))
	return proto.NewDirectoryListing(path, files)
}
