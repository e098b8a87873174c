package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateTieredInvalidUpdateURLIsFatal(t *testing.T) {
	cfg := Default()
	cfg.UpdateURL = "ftp://example.com/update.bin"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("invalid update_url scheme should be fatal")
	}
}

func TestValidateTieredControlCharsInDisplayNameIsFatal(t *testing.T) {
	cfg := Default()
	cfg.DisplayName = "room\x00b12"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("control chars in display_name should be fatal")
	}
}

func TestValidateTieredOutOfRangePortIsFatal(t *testing.T) {
	cfg := Default()
	cfg.DiscoveryPort = 70000
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("out of range discovery_port should be fatal")
	}
}

func TestValidateTieredCommandQueueClampingIsWarning(t *testing.T) {
	cfg := Default()
	cfg.CommandQueueSize = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped command_queue_size should be warning, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for clamped command_queue_size")
	}
	if cfg.CommandQueueSize != 1 {
		t.Fatalf("CommandQueueSize = %d, want 1 (clamped)", cfg.CommandQueueSize)
	}
}

func TestValidateTieredHighCommandQueueClampingIsWarning(t *testing.T) {
	cfg := Default()
	cfg.CommandQueueSize = 99999
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped command_queue_size should be warning, not fatal: %v", result.Fatals)
	}
	if cfg.CommandQueueSize != 10000 {
		t.Fatalf("CommandQueueSize = %d, want 10000", cfg.CommandQueueSize)
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
}

func TestValidateTieredInvalidLogFormatIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := Default()
	cfg.UpdateURL = "ftp://bad"    // fatal
	cfg.LogFormat = "xml"          // warning
	result := cfg.ValidateTiered()

	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2 (fatals + warnings)", len(all))
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	cfg.UpdateURL = "https://updates.example.com/agent.bin"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("valid config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("valid config has warnings: %v", result.Warnings)
	}
}

func TestValidateTieredRejectsBadLogLevelMessage(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "chatty"
	result := cfg.ValidateTiered()
	found := false
	for _, err := range result.Warnings {
		if strings.Contains(err.Error(), "chatty") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected warning to mention the invalid log level value")
	}
}
