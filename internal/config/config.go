package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/norm/focusd/internal/escalation"
	"github.com/norm/focusd/internal/judge"
	"github.com/norm/focusd/internal/sanitize"
	"github.com/norm/focusd/internal/window"
)

// Config holds focusd configuration.
type Config struct {
	StateDir string
	LogDir   string

	Interval      time.Duration
	BreakDuration time.Duration
	MaxCycles     int

	WindowSize        int
	Stage2Threshold   float64
	Stage3Threshold   float64
	MinDisplayMinutes int

	Surface       string
	PromptTimeout time.Duration
	NukeWindows   int
	ScreenWidth   int
	ScreenHeight  int

	CaptureCommand   []string
	OCRCommand       []string
	IncludeProcesses bool

	SanitizePhrases     []string
	DistractionKeywords []string

	Judge JudgeConfig
}

// JudgeConfig configures the productivity judge.
type JudgeConfig struct {
	Model          string
	MaxTokens      int
	MaxRetries     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
	PromptPath     string
	APIKey         string
}

// Default returns the default configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".local", "share", "focusd")
	return &Config{
		StateDir:            stateDir,
		LogDir:              filepath.Join(stateDir, "log"),
		Interval:            15 * time.Second,
		BreakDuration:       10 * time.Minute,
		MaxCycles:           0,
		WindowSize:          window.DefaultSize,
		Stage2Threshold:     escalation.DefaultStage2Fraction,
		Stage3Threshold:     escalation.DefaultStage3Fraction,
		MinDisplayMinutes:   10,
		Surface:             "auto",
		PromptTimeout:       2 * time.Minute,
		NukeWindows:         8,
		ScreenWidth:         1440,
		ScreenHeight:        900,
		CaptureCommand:      defaultCaptureCommand(),
		OCRCommand:          []string{"tesseract", "{in}", "stdout"},
		IncludeProcesses:    true,
		SanitizePhrases:     append([]string(nil), sanitize.DefaultPhrases...),
		DistractionKeywords: append([]string(nil), sanitize.DefaultDistractions...),
		Judge: JudgeConfig{
			Model:          judge.DefaultModel,
			MaxTokens:      judge.DefaultMaxTokens,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			Timeout:        30 * time.Second,
		},
	}
}

func defaultCaptureCommand() []string {
	if runtime.GOOS == "darwin" {
		return []string{"screencapture", "-x", "{out}"}
	}
	return []string{"import", "-window", "root", "{out}"}
}

// Path returns the config file path: FOCUSD_CONFIG if set, otherwise
// ~/.config/focusd/config.toml.
func Path() string {
	if configured := os.Getenv("FOCUSD_CONFIG"); configured != "" {
		return configured
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "focusd", "config.toml")
}

// Load builds the configuration from defaults, the TOML file at path (or
// Path() when empty), .env files and FOCUSD_* environment variables, in that
// order of precedence (last wins).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := applyTOML(cfg, data); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	loadDotEnv(filepath.Dir(path))
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads .env from the working directory and the config directory.
// Existing environment variables are never overwritten.
func loadDotEnv(configDir string) {
	for _, p := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

func applyEnv(cfg *Config) {
	stateDir := cfg.StateDir
	overrideString(&cfg.StateDir, "FOCUSD_STATE_DIR")
	if cfg.StateDir != stateDir && cfg.LogDir == filepath.Join(stateDir, "log") {
		cfg.LogDir = filepath.Join(cfg.StateDir, "log")
	}
	overrideString(&cfg.LogDir, "FOCUSD_LOG_DIR")

	overrideDuration(&cfg.Interval, "FOCUSD_INTERVAL")
	overrideDuration(&cfg.BreakDuration, "FOCUSD_BREAK_DURATION")
	overrideInt(&cfg.MaxCycles, "FOCUSD_MAX_CYCLES")
	overrideInt(&cfg.WindowSize, "FOCUSD_WINDOW_SIZE")
	overrideFloat(&cfg.Stage2Threshold, "FOCUSD_STAGE2_THRESHOLD")
	overrideFloat(&cfg.Stage3Threshold, "FOCUSD_STAGE3_THRESHOLD")
	overrideInt(&cfg.MinDisplayMinutes, "FOCUSD_MIN_DISPLAY_MINUTES")

	overrideString(&cfg.Surface, "FOCUSD_SURFACE")
	overrideDuration(&cfg.PromptTimeout, "FOCUSD_PROMPT_TIMEOUT")
	overrideInt(&cfg.NukeWindows, "FOCUSD_NUKE_WINDOWS")
	overrideBool(&cfg.IncludeProcesses, "FOCUSD_INCLUDE_PROCESSES")
	overrideInt(&cfg.ScreenWidth, "FOCUSD_SCREEN_WIDTH")
	overrideInt(&cfg.ScreenHeight, "FOCUSD_SCREEN_HEIGHT")

	overrideString(&cfg.Judge.Model, "FOCUSD_JUDGE_MODEL")
	overrideDuration(&cfg.Judge.Timeout, "FOCUSD_JUDGE_TIMEOUT")
	overrideInt(&cfg.Judge.MaxRetries, "FOCUSD_JUDGE_MAX_RETRIES")
	overrideInt(&cfg.Judge.MaxTokens, "FOCUSD_JUDGE_MAX_TOKENS")
	overrideDuration(&cfg.Judge.RetryBaseDelay, "FOCUSD_JUDGE_RETRY_BASE_DELAY")
	overrideString(&cfg.Judge.PromptPath, "FOCUSD_PROMPT_PATH")
}

// Validate checks ranges and threshold consistency.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return errors.New("config: state_dir is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("config: interval must be positive, got %s", c.Interval)
	}
	if c.BreakDuration < 0 {
		return fmt.Errorf("config: break_duration must not be negative, got %s", c.BreakDuration)
	}
	if c.MaxCycles < 0 {
		return fmt.Errorf("config: max_cycles must not be negative, got %d", c.MaxCycles)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("config: window_size must be >= 1, got %d", c.WindowSize)
	}
	if _, err := c.Thresholds(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Surface {
	case "auto", "osascript", "zenity", "log":
	default:
		return fmt.Errorf("config: unknown surface %q", c.Surface)
	}
	if len(c.CaptureCommand) == 0 || len(c.OCRCommand) == 0 {
		return errors.New("config: capture_command and ocr_command are required")
	}
	return nil
}

// Thresholds resolves the configured escalation thresholds for WindowSize.
func (c *Config) Thresholds() (escalation.Thresholds, error) {
	return escalation.ResolveThresholds(c.WindowSize, c.Stage2Threshold, c.Stage3Threshold)
}

// ControlDir is where `focusd break` and `focusd disable` drop request files.
func (c *Config) ControlDir() string {
	return filepath.Join(c.StateDir, "control")
}

// HistoryPath is the SQLite history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir, "productivity.db")
}

func overrideString(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

func overrideDuration(dest *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := parseDuration(val); err == nil {
			*dest = parsed
		}
	}
}

func overrideBool(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes", "y", "on":
			*dest = true
		case "0", "false", "no", "n", "off":
			*dest = false
		}
	}
}

func overrideInt(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dest = parsed
		}
	}
}

func overrideFloat(dest *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			*dest = parsed
		}
	}
}

// parseDuration accepts Go durations ("90s", "5m") and bare seconds ("15").
func parseDuration(val string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(val)
}
