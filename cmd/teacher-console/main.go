// Command teacher-console runs the teacher side of the core: a
// discovery responder, one connector per connected student, the
// session registry, and the fleet update coordinator. It is a headless
// driver: the desktop GUI shell that would normally render
// screen-frame/session-status/update-state notifications is an
// external collaborator, so this binary logs the same events
// structurally instead.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/classroomlink/link/internal/config"
	"github.com/classroomlink/link/internal/discovery"
	"github.com/classroomlink/link/internal/fleetupdate"
	"github.com/classroomlink/link/internal/logging"
	"github.com/classroomlink/link/internal/proto"
	"github.com/classroomlink/link/internal/sessionregistry"
	"github.com/classroomlink/link/internal/signaling"
	"github.com/classroomlink/link/internal/teacherconnector"
)

var (
	version = "0.1.0"
	cfgFile string
	connect []string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "teacher-console",
	Short: "Classroom link teacher console",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the teacher console: discovery responder plus one connector per --connect address",
	Run: func(cmd *cobra.Command, args []string) {
		runTeacher()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Classroom Link Teacher Console v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default search path per OS)")
	runCmd.Flags().StringSliceVar(&connect, "connect", nil, "student address (ip:port) to dial; repeatable")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func runTeacher() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	teacherVersion := cfg.RequiredVersion
	if teacherVersion == "" {
		teacherVersion = cfg.AgentVersion
	}

	registry := sessionregistry.NewRegistry()
	coordinator := fleetupdate.New(registry, teacherVersion)
	if cfg.UpdateURL != "" {
		coordinator.SetUpdatePackage(cfg.UpdateURL, cfg.UpdateSHA256)
	}

	listener := discovery.NewListener(cfg.DisplayName, cfg.DiscoveryPort)
	go func() {
		if err := listener.Serve(ctx); err != nil && ctx.Err() == nil {
			log.Error("discovery listener exited", "error", err)
		}
	}()

	connector := teacherconnector.NewWithPolicy(registry, coordinator, teacherconnector.Handlers{
		OnScreenFrame: func(s *sessionregistry.Session, frame proto.Frame) {
			log.Debug("screen frame", "session", s.ID, "keyframe", frame.IsKeyframe, "bytes", len(frame.Payload), "transport", frame.Transport)
		},
		OnSessionStatus: func(s *sessionregistry.Session, status proto.SessionStatus) {
			log.Info("session status", "session", s.ID, "status", status)
		},
		OnDirectoryListing: func(s *sessionregistry.Session, path string, files []proto.DirEntry) {
			log.Info("directory listing", "session", s.ID, "path", path, "entries", len(files))
		},
		OnFileReceived: func(s *sessionregistry.Session, name string, success bool, message string) {
			log.Info("file received", "session", s.ID, "name", name, "success", success, "message", message)
		},
		OnUpdateStatus: func(s *sessionregistry.Session, status proto.UpdateStatus) {
			log.Info("update status", "session", s.ID, "status", status.Kind, "progress", status.Progress, "reason", status.Reason)
		},
		OnUpdateAcknowledged: func(s *sessionregistry.Session, version string) {
			coordinator.RecordAcknowledgment(s.ID, version)
			log.Info("update acknowledged", "session", s.ID, "version", version, "allAcknowledged", coordinator.AllAcknowledged())
		},
		OnError: func(s *sessionregistry.Session, message string) {
			log.Warn("student reported error", "session", s.ID, "message", message)
		},
	})

	for _, addr := range connect {
		addr := strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		go dialAndAdopt(ctx, connector, addr)
	}

	go statusTicker(ctx, registry, coordinator)

	<-ctx.Done()
	log.Info("shutting down")
	registry.Each(func(s *sessionregistry.Session) { s.Close() })
}

// dialAndAdopt connects to one student and keeps retrying with backoff
// across disconnects for the lifetime of the process, mirroring the
// always-on posture a classroom console needs across a 50-minute class.
func dialAndAdopt(ctx context.Context, connector *teacherconnector.Connector, addr string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		link, err := signaling.DialWithRetry(ctx, addr, 0)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dial failed permanently", "addr", addr, "error", err)
			return
		}

		log.Info("connected to student", "addr", addr)
		if err := connector.Adopt(ctx, link, addr); err != nil {
			log.Warn("session ended", "addr", addr, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func statusTicker(ctx context.Context, registry *sessionregistry.Registry, coordinator *fleetupdate.Coordinator) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Info("fleet status", "sessions", registry.Len(), "allUpToDate", coordinator.AllUpToDate())
		}
	}
}
