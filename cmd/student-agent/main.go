// Command student-agent runs the student side of the core: discovery
// probing, a signaling acceptor, and one studentagent.Agent per
// accepted teacher connection. The Windows service wrapper, installer
// packaging, and privilege-elevation helpers a production deployment
// would need are independent subsystems reachable through this
// binary's entrypoint.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"

	"github.com/classroomlink/link/internal/capture"
	"github.com/classroomlink/link/internal/config"
	"github.com/classroomlink/link/internal/discovery"
	"github.com/classroomlink/link/internal/inputinject"
	"github.com/classroomlink/link/internal/logging"
	"github.com/classroomlink/link/internal/signaling"
	"github.com/classroomlink/link/internal/studentagent"
	"github.com/classroomlink/link/internal/updater"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "student-agent",
	Short: "Classroom link student agent",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Probe for a teacher, then run the signaling acceptor and session agents",
	Run: func(cmd *cobra.Command, args []string) {
		runStudent()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Classroom Link Student Agent v%s\n", version)
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Probe the LAN once for a teacher and print any replies",
	Run: func(cmd *cobra.Command, args []string) {
		runDiscoverOnce()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default search path per OS)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(discoverCmd)
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

func runStudent() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go logTeacherDiscovery(ctx, cfg)

	acceptor := signaling.NewAcceptor(fmt.Sprintf(":%d", cfg.SignalingPort))
	go func() {
		if err := acceptor.Serve(ctx); err != nil && ctx.Err() == nil {
			log.Error("signaling acceptor exited", "error", err)
			cancel()
		}
	}()

	log.Info("student agent ready", "signalingPort", cfg.SignalingPort, "version", cfg.AgentVersion)

	for {
		select {
		case <-ctx.Done():
			return
		case link := <-acceptor.Links():
			go runSession(ctx, cfg, link)
		}
	}
}

// runDiscoverOnce is the one-shot CLI probe: broadcast, print replies,
// exit non-zero if no teacher answered.
func runDiscoverOnce() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	found, err := discovery.Probe(context.Background(), cfg.DiscoveryPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
	if len(found) == 0 {
		fmt.Println("no teacher replied")
		os.Exit(1)
	}
	for _, f := range found {
		fmt.Printf("%s\t%s\n", f.Addr.IP, f.Name)
	}
}

// logTeacherDiscovery runs the discovery probe purely so the student's
// logs confirm which teacher answered; the signaling session itself is
// always initiated by the teacher dialing in, so finding a
// teacher here does not by itself start anything.
func logTeacherDiscovery(ctx context.Context, cfg *config.Config) {
	err := discovery.RunUntilFound(ctx, cfg.DiscoveryPort, func(found discovery.TeacherFound) bool {
		log.Info("teacher found", "name", found.Name, "addr", found.Addr)
		return true
	})
	if err != nil && ctx.Err() == nil {
		log.Warn("discovery probe stopped", "error", err)
	}
}

func runSession(ctx context.Context, cfg *config.Config, link *signaling.Link) {
	capturer, err := capture.New(capture.DefaultConfig())
	if err != nil {
		log.Error("screen capture unavailable, closing session", "error", err)
		link.Close()
		return
	}

	inputBackend, err := inputinject.NewUinputBackend(cfg.DisplayName)
	if err != nil {
		log.Warn("input injection unavailable for this session", "error", err)
	}

	machineName := machineDescription(cfg.DisplayName)

	agentCfg := studentagent.Config{
		StudentName:     cfg.DisplayName,
		CurrentVersion:  cfg.AgentVersion,
		MachineName:     machineName,
		InboundFilesDir: cfg.InboundFilesDir,
		UpdaterConfig: &updater.Config{
			BinaryPath: executablePath(),
			BackupPath: filepath.Join(config.GetDataDir(), "agent.bak"),
		},
	}

	agent := studentagent.New(link, agentCfg, studentagent.Collaborators{
		Capturer:     capturer,
		InputBackend: inputBackend,
	})

	if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
		log.Info("session ended", "error", err)
	}
}

// machineDescription reports "hostname (platform version)" for the
// Welcome message so the teacher console can tell classroom machines
// apart at a glance. If the host info isn't available (e.g. inside a
// minimal container) it reports the bare hostname, and the configured
// display name stands in for the hostname when that cannot be read.
func machineDescription(fallback string) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = fallback
	}
	info, err := host.Info()
	if err != nil {
		return hostname
	}
	return fmt.Sprintf("%s (%s %s)", hostname, info.Platform, info.PlatformVersion)
}

func executablePath() string {
	p, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return p
}
