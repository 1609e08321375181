package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Messages holds every user-visible text the bot sends. All fields are
// required so an operator cannot ship a half-translated config.
type Messages struct {
	Welcome         string `yaml:"welcome"`
	EnterName       string `yaml:"enter_name"`
	EnterEmail      string `yaml:"enter_email"`
	InvalidEmail    string `yaml:"invalid_email"`
	EnterScore      string `yaml:"enter_score"`
	ScoreNotNumber  string `yaml:"score_not_number"`
	ScoreOutOfRange string `yaml:"score_out_of_range"`
	Saved           string `yaml:"saved"`
	SaveFailed      string `yaml:"save_failed"`
	Exited          string `yaml:"exited"`
	NoActiveForm    string `yaml:"no_active_form"`
	ReportPending   string `yaml:"report_pending"`
	ReportFailed    string `yaml:"report_failed"`
	InternalError   string `yaml:"internal_error"`
}

// ReportConfig controls the generated report artifact.
type ReportConfig struct {
	Filename   string `yaml:"filename"`
	SheetTitle string `yaml:"sheet_title"`
}

// SessionConfig controls eviction of abandoned form sessions.
// TTL 0 disables the janitor and sessions live until process restart.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// UnmarshalYAML accepts Go duration strings ("24h", "5m"). Empty or absent
// values keep whatever the receiver already holds, so file overrides merge
// with the defaults.
func (s *SessionConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		TTL           string `yaml:"ttl"`
		SweepInterval string `yaml:"sweep_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.TTL != "" {
		ttl, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("invalid session ttl %q: %w", raw.TTL, err)
		}
		s.TTL = ttl
	}
	if raw.SweepInterval != "" {
		interval, err := time.ParseDuration(raw.SweepInterval)
		if err != nil {
			return fmt.Errorf("invalid session sweep_interval %q: %w", raw.SweepInterval, err)
		}
		s.SweepInterval = interval
	}
	return nil
}

// FormConfig aggregates everything loaded from the YAML config file.
type FormConfig struct {
	Messages Messages      `yaml:"messages"`
	Report   ReportConfig  `yaml:"report"`
	Session  SessionConfig `yaml:"session"`
}

// Default returns the built-in configuration used when no file overrides it.
func Default() *FormConfig {
	return &FormConfig{
		Messages: Messages{
			Welcome:         "Hi! Use /form to fill out the survey, /report to get the results document.",
			EnterName:       "Please enter your name:",
			EnterEmail:      "Please enter your email:",
			InvalidEmail:    "That does not look like a valid email. Please try again:",
			EnterScore:      "Rate our service from 1 to 10:",
			ScoreNotNumber:  "Please enter a number from 1 to 10.",
			ScoreOutOfRange: "The score must be between 1 and 10. Please enter it again:",
			Saved:           "Thank you! Your answers have been saved.",
			SaveFailed:      "Sorry, we could not save your answers. Please send the score again.",
			Exited:          "You left the form. Use /form to start over.",
			NoActiveForm:    "Use /form to start the survey.",
			ReportPending:   "Generating the report...",
			ReportFailed:    "Failed to generate the report. Please try again later.",
			InternalError:   "An internal error occurred. Please try again later.",
		},
		Report: ReportConfig{
			Filename:   "report.xlsx",
			SheetTitle: "Survey results",
		},
		Session: SessionConfig{
			TTL:           0,
			SweepInterval: time.Minute,
		},
	}
}

func (c *FormConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	required := map[string]string{
		"welcome":            c.Messages.Welcome,
		"enter_name":         c.Messages.EnterName,
		"enter_email":        c.Messages.EnterEmail,
		"invalid_email":      c.Messages.InvalidEmail,
		"enter_score":        c.Messages.EnterScore,
		"score_not_number":   c.Messages.ScoreNotNumber,
		"score_out_of_range": c.Messages.ScoreOutOfRange,
		"saved":              c.Messages.Saved,
		"save_failed":        c.Messages.SaveFailed,
		"exited":             c.Messages.Exited,
		"no_active_form":     c.Messages.NoActiveForm,
		"report_pending":     c.Messages.ReportPending,
		"report_failed":      c.Messages.ReportFailed,
		"internal_error":     c.Messages.InternalError,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("config validation failed: message '%s' is empty", key)
		}
	}

	if c.Report.Filename == "" {
		return fmt.Errorf("config validation failed: report filename is empty")
	}
	if c.Report.SheetTitle == "" {
		return fmt.Errorf("config validation failed: report sheet_title is empty")
	}

	if c.Session.TTL < 0 {
		return fmt.Errorf("config validation failed: session ttl must not be negative")
	}
	if c.Session.TTL > 0 && c.Session.SweepInterval <= 0 {
		return fmt.Errorf("config validation failed: session sweep_interval must be positive when ttl is set")
	}
	return nil
}
