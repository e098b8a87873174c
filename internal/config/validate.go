package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates configuration problems that must abort
// startup (Fatals) from ones that are auto-corrected and merely
// logged (Warnings).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals followed by warnings, for callers that just
// want to print everything.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config for invalid values. Values that
// would make the process unsafe to run (bad URLs, control characters)
// are fatal. Values that have a safe default are clamped in place and
// reported as warnings.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.UpdateURL != "" {
		u, err := url.Parse(c.UpdateURL)
		if err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("update_url %q is not a valid URL: %w", c.UpdateURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			r.Fatals = append(r.Fatals, fmt.Errorf("update_url scheme must be http or https, got %q", u.Scheme))
		}
	}

	if c.DisplayName != "" {
		for _, ch := range c.DisplayName {
			if unicode.IsControl(ch) {
				r.Fatals = append(r.Fatals, fmt.Errorf("display_name contains control characters"))
				break
			}
		}
	}

	if c.DiscoveryPort < 1 || c.DiscoveryPort > 65535 {
		r.Fatals = append(r.Fatals, fmt.Errorf("discovery_port %d is out of range", c.DiscoveryPort))
	}
	if c.SignalingPort < 1 || c.SignalingPort > 65535 {
		r.Fatals = append(r.Fatals, fmt.Errorf("signaling_port %d is out of range", c.SignalingPort))
	}

	if c.CommandQueueSize < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("command_queue_size %d is below minimum 1, clamping", c.CommandQueueSize))
		c.CommandQueueSize = 1
	} else if c.CommandQueueSize > 10000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("command_queue_size %d exceeds maximum 10000, clamping", c.CommandQueueSize))
		c.CommandQueueSize = 10000
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	return r
}
