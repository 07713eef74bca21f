package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors config.toml. Pointer fields distinguish "unset" from a
// zero value so the file only overrides what it names.
type fileConfig struct {
	StateDir string `toml:"state_dir,omitempty"`
	LogDir   string `toml:"log_dir,omitempty"`

	Interval      string `toml:"interval,omitempty"`
	BreakDuration string `toml:"break_duration,omitempty"`
	MaxCycles     *int   `toml:"max_cycles,omitempty"`

	WindowSize        *int     `toml:"window_size,omitempty"`
	Stage2Threshold   *float64 `toml:"stage2_threshold,omitempty"`
	Stage3Threshold   *float64 `toml:"stage3_threshold,omitempty"`
	MinDisplayMinutes *int     `toml:"min_display_minutes,omitempty"`

	Surface       string `toml:"surface,omitempty"`
	PromptTimeout string `toml:"prompt_timeout,omitempty"`
	NukeWindows   *int   `toml:"nuke_windows,omitempty"`
	ScreenWidth   *int   `toml:"screen_width,omitempty"`
	ScreenHeight  *int   `toml:"screen_height,omitempty"`

	CaptureCommand   []string `toml:"capture_command,omitempty"`
	OCRCommand       []string `toml:"ocr_command,omitempty"`
	IncludeProcesses *bool    `toml:"include_processes,omitempty"`

	SanitizePhrases     []string `toml:"sanitize_phrases,omitempty"`
	DistractionKeywords []string `toml:"distraction_keywords,omitempty"`

	Judge *fileJudge `toml:"judge,omitempty"`
}

type fileJudge struct {
	Model          string `toml:"model,omitempty"`
	MaxTokens      *int   `toml:"max_tokens,omitempty"`
	MaxRetries     *int   `toml:"max_retries,omitempty"`
	RetryBaseDelay string `toml:"retry_base_delay,omitempty"`
	Timeout        string `toml:"timeout,omitempty"`
	PromptPath     string `toml:"prompt_path,omitempty"`
	APIKey         string `toml:"api_key,omitempty"`
}

func applyTOML(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("decode toml: %w", err)
	}

	if fc.StateDir != "" {
		cfg.StateDir = expandHome(fc.StateDir)
		cfg.LogDir = filepath.Join(cfg.StateDir, "log")
	}
	if fc.LogDir != "" {
		cfg.LogDir = expandHome(fc.LogDir)
	}

	if err := setDuration(&cfg.Interval, fc.Interval, "interval"); err != nil {
		return err
	}
	if err := setDuration(&cfg.BreakDuration, fc.BreakDuration, "break_duration"); err != nil {
		return err
	}
	if err := setDuration(&cfg.PromptTimeout, fc.PromptTimeout, "prompt_timeout"); err != nil {
		return err
	}
	if j := fc.Judge; j != nil {
		if err := setDuration(&cfg.Judge.RetryBaseDelay, j.RetryBaseDelay, "judge.retry_base_delay"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Judge.Timeout, j.Timeout, "judge.timeout"); err != nil {
			return err
		}
	}

	setInt(&cfg.MaxCycles, fc.MaxCycles)
	setInt(&cfg.WindowSize, fc.WindowSize)
	setInt(&cfg.MinDisplayMinutes, fc.MinDisplayMinutes)
	setInt(&cfg.NukeWindows, fc.NukeWindows)
	setInt(&cfg.ScreenWidth, fc.ScreenWidth)
	setInt(&cfg.ScreenHeight, fc.ScreenHeight)
	if fc.Stage2Threshold != nil {
		cfg.Stage2Threshold = *fc.Stage2Threshold
	}
	if fc.Stage3Threshold != nil {
		cfg.Stage3Threshold = *fc.Stage3Threshold
	}
	if fc.IncludeProcesses != nil {
		cfg.IncludeProcesses = *fc.IncludeProcesses
	}
	if fc.Surface != "" {
		cfg.Surface = fc.Surface
	}
	if len(fc.CaptureCommand) > 0 {
		cfg.CaptureCommand = fc.CaptureCommand
	}
	if len(fc.OCRCommand) > 0 {
		cfg.OCRCommand = fc.OCRCommand
	}
	if fc.SanitizePhrases != nil {
		cfg.SanitizePhrases = fc.SanitizePhrases
	}
	if fc.DistractionKeywords != nil {
		cfg.DistractionKeywords = fc.DistractionKeywords
	}

	if j := fc.Judge; j != nil {
		if j.Model != "" {
			cfg.Judge.Model = j.Model
		}
		setInt(&cfg.Judge.MaxTokens, j.MaxTokens)
		setInt(&cfg.Judge.MaxRetries, j.MaxRetries)
		if j.PromptPath != "" {
			cfg.Judge.PromptPath = expandHome(j.PromptPath)
		}
		if j.APIKey != "" {
			cfg.Judge.APIKey = j.APIKey
		}
	}
	return nil
}

// WriteSample writes a config file populated with the defaults. It refuses to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := Default()
	fc := fileConfig{
		StateDir:            cfg.StateDir,
		Interval:            cfg.Interval.String(),
		BreakDuration:       cfg.BreakDuration.String(),
		MaxCycles:           &cfg.MaxCycles,
		WindowSize:          &cfg.WindowSize,
		Stage2Threshold:     &cfg.Stage2Threshold,
		Stage3Threshold:     &cfg.Stage3Threshold,
		MinDisplayMinutes:   &cfg.MinDisplayMinutes,
		Surface:             cfg.Surface,
		PromptTimeout:       cfg.PromptTimeout.String(),
		NukeWindows:         &cfg.NukeWindows,
		ScreenWidth:         &cfg.ScreenWidth,
		ScreenHeight:        &cfg.ScreenHeight,
		CaptureCommand:      cfg.CaptureCommand,
		OCRCommand:          cfg.OCRCommand,
		IncludeProcesses:    &cfg.IncludeProcesses,
		SanitizePhrases:     cfg.SanitizePhrases,
		DistractionKeywords: cfg.DistractionKeywords,
		Judge: &fileJudge{
			Model:          cfg.Judge.Model,
			MaxTokens:      &cfg.Judge.MaxTokens,
			MaxRetries:     &cfg.Judge.MaxRetries,
			RetryBaseDelay: cfg.Judge.RetryBaseDelay.String(),
			Timeout:        cfg.Judge.Timeout.String(),
		},
	}

	data, err := toml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func setDuration(dest *time.Duration, raw, name string) error {
	if raw == "" {
		return nil
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dest = parsed
	return nil
}

func setInt(dest *int, v *int) {
	if v != nil {
		*dest = *v
	}
}

func expandHome(p string) string {
	if len(p) < 2 || p[:2] != "~/" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
