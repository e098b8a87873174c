// Package updater implements the student-side update engine: staging
// (download, checksum-verify) and installing (backup, replace,
// platform-specific restart) an update package the teacher announced
// via UpdateRequired. The package comes from whatever LAN URL the
// command carried; there is no central version API to consult.
// Installer packaging itself is an independent subsystem reachable
// through this narrow stage/install interface.
package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/classroomlink/link/internal/logging"
)

// minFreeUpdateBytes is the free space StageUpdate requires on the
// staging volume before it starts downloading, leaving headroom for the
// backup copy InstallStaged makes of the running binary.
const minFreeUpdateBytes = 200 * 1024 * 1024

var log = logging.L("updater")

// Config points the installer at the running binary and where to keep
// a rollback copy of it.
type Config struct {
	BinaryPath string
	BackupPath string
}

// Stage describes progress as StageUpdate proceeds, mirroring the
// UpdateStatus kinds the session reports back to the teacher.
type Stage string

const (
	StageDownloading Stage = "Downloading"
	StageVerifying   Stage = "Verifying"
	StageStaged      Stage = "Staged"
)

// Progress is one update along the progress stream StageUpdate emits.
type Progress struct {
	Stage   Stage
	Percent int // meaningful for StageDownloading
	Err     error
}

// Installer stages and installs update packages for the running agent.
type Installer struct {
	config *Config
	client *http.Client

	stagedPath string
}

func New(cfg *Config) *Installer {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Installer{
		config: cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// StageUpdate downloads url, verifies it against sha256Hex (skipped if
// empty), and leaves the verified package staged for InstallStaged.
// Progress is delivered on the returned channel, which is closed when
// staging finishes or fails; a failing Progress carries a non-nil Err.
func (u *Installer) StageUpdate(ctx context.Context, url, sha256Hex string) <-chan Progress {
	out := make(chan Progress, 4)
	go func() {
		defer close(out)

		if err := checkFreeSpace(u.config.BinaryPath); err != nil {
			out <- Progress{Stage: StageDownloading, Err: fmt.Errorf("preflight: %w", err)}
			return
		}

		tempPath, err := u.download(ctx, url, out)
		if err != nil {
			out <- Progress{Stage: StageDownloading, Err: fmt.Errorf("download: %w", err)}
			return
		}

		out <- Progress{Stage: StageVerifying}
		if sha256Hex != "" {
			if err := verifyChecksum(tempPath, sha256Hex); err != nil {
				os.Remove(tempPath)
				out <- Progress{Stage: StageVerifying, Err: fmt.Errorf("checksum: %w", err)}
				return
			}
		}

		u.stagedPath = tempPath
		out <- Progress{Stage: StageStaged}
	}()
	return out
}

// checkFreeSpace rejects staging an update when the volume holding the
// running binary doesn't have enough room for both the downloaded
// package and the backup copy InstallStaged keeps for rollback.
func checkFreeSpace(binaryPath string) error {
	dir := filepath.Dir(binaryPath)
	usage, err := disk.Usage(dir)
	if err != nil {
		log.Warn("disk usage check failed, proceeding without preflight", "path", dir, "error", err)
		return nil
	}
	if usage.Free < minFreeUpdateBytes {
		return fmt.Errorf("only %d bytes free on %s, need at least %d", usage.Free, dir, minFreeUpdateBytes)
	}
	return nil
}

func (u *Installer) download(ctx context.Context, url string, progress chan<- Progress) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp("", "classroom-link-update-*")
	if err != nil {
		return "", err
	}
	defer tempFile.Close()

	progress <- Progress{Stage: StageDownloading, Percent: 0}
	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		os.Remove(tempFile.Name())
		return "", err
	}
	progress <- Progress{Stage: StageDownloading, Percent: 100}

	return tempFile.Name(), nil
}

func verifyChecksum(path, expectedHex string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return err
	}
	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != expectedHex {
		return fmt.Errorf("mismatch: expected %s, got %s", expectedHex, actual)
	}
	return nil
}

// InstallStaged backs up the running binary, replaces it with the
// staged package, and restarts the process. It fails if StageUpdate
// has not completed successfully since the Installer was created.
func (u *Installer) InstallStaged() error {
	if u.stagedPath == "" {
		return fmt.Errorf("updater: no staged package to install")
	}
	if runtime.GOOS != "windows" {
		// On Windows the helper script copies the staged file after this
		// process exits and deletes it itself.
		defer os.Remove(u.stagedPath)
	}

	if err := u.backupCurrentBinary(); err != nil {
		return fmt.Errorf("backup current binary: %w", err)
	}

	if runtime.GOOS == "windows" {
		if err := RestartWithHelper(u.stagedPath, u.config.BinaryPath); err != nil {
			if rbErr := u.Rollback(); rbErr != nil {
				log.Error("rollback also failed", "installError", err, "rollbackError", rbErr)
			}
			return fmt.Errorf("spawn update helper: %w", err)
		}
		return nil
	}

	if err := u.replaceBinary(u.stagedPath); err != nil {
		if rbErr := u.Rollback(); rbErr != nil {
			log.Error("rollback also failed after replace error", "replaceError", err, "rollbackError", rbErr)
			return fmt.Errorf("replace binary: %w (rollback also failed: %v)", err, rbErr)
		}
		return fmt.Errorf("replace binary (rolled back): %w", err)
	}

	if err := Restart(); err != nil {
		if rbErr := u.Rollback(); rbErr != nil {
			log.Error("rollback also failed after restart error", "restartError", err, "rollbackError", rbErr)
			return fmt.Errorf("restart: %w (rollback also failed: %v)", err, rbErr)
		}
		return fmt.Errorf("restart (rolled back): %w", err)
	}
	return nil
}

func (u *Installer) backupCurrentBinary() error {
	os.Remove(u.config.BackupPath)

	src, err := os.Open(u.config.BinaryPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(u.config.BackupPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	info, err := os.Stat(u.config.BinaryPath)
	if err != nil {
		return err
	}
	return os.Chmod(u.config.BackupPath, info.Mode())
}

func (u *Installer) replaceBinary(newPath string) error {
	if runtime.GOOS == "windows" {
		oldPath := u.config.BinaryPath + ".old"
		os.Remove(oldPath)
		if err := os.Rename(u.config.BinaryPath, oldPath); err != nil {
			return err
		}
	}

	src, err := os.Open(newPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(u.config.BinaryPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(u.config.BinaryPath, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Rollback restores the backed-up binary in place of a failed install.
func (u *Installer) Rollback() error {
	log.Info("rolling back to previous version")

	if _, err := os.Stat(u.config.BackupPath); os.IsNotExist(err) {
		return fmt.Errorf("no backup found at %s", u.config.BackupPath)
	}

	src, err := os.Open(u.config.BackupPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(u.config.BinaryPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(u.config.BinaryPath, 0o755); err != nil {
			return err
		}
	}
	return nil
}
