package mooceditor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSettingsFile is read when no settings path is given
const DefaultSettingsFile = "mooceditor.yaml"

// Settings configures the editor front ends. Values come from built-in
// defaults, then the YAML file, then the environment (a .env file is
// loaded first). Command line flags override all of them.
type Settings struct {
	PlayerPath  string `yaml:"player_path"`
	PromptsPath string `yaml:"prompts_path"`
	HistoryPath string `yaml:"history_path"`
	LogDir      string `yaml:"log_dir"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	Listen      string `yaml:"listen"`

	GeminiAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
	SessionKey   string `yaml:"-"`
}

func DefaultSettings() *Settings {
	return &Settings{
		PlayerPath:  DefaultPlayerPath,
		PromptsPath: "prompts.json",
		HistoryPath: "history.db",
		LogDir:      "log",
		Provider:    "gemini",
		Listen:      ":8080",
	}
}

// LoadSettings builds the settings. A missing file is only an error when
// path was given explicitly.
func LoadSettings(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		VerboseLog("No .env file found, using environment variables")
	}

	s := DefaultSettings()
	explicit := path != ""
	if !explicit {
		path = getEnvOrDefault("MOOC_SETTINGS", DefaultSettingsFile)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
		VerboseLog("Loaded settings from %s", path)
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	s.PlayerPath = getEnvOrDefault("MOOC_PLAYER", s.PlayerPath)
	s.PromptsPath = getEnvOrDefault("MOOC_PROMPTS", s.PromptsPath)
	s.HistoryPath = getEnvOrDefault("MOOC_HISTORY_DB", s.HistoryPath)
	s.LogDir = getEnvOrDefault("MOOC_LOG_DIR", s.LogDir)
	s.Provider = getEnvOrDefault("MOOC_PROVIDER", s.Provider)
	s.Model = getEnvOrDefault("MOOC_MODEL", s.Model)
	s.BaseURL = getEnvOrDefault("OPENAI_BASE_URL", s.BaseURL)
	s.Listen = getEnvOrDefault("MOOC_LISTEN", s.Listen)
	s.GeminiAPIKey = getEnvOrDefault("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY"))
	s.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	s.SessionKey = os.Getenv("SESSION_KEY")
	return s, nil
}

// NewEngine creates the engine named by Provider
func (s *Settings) NewEngine() (Engine, error) {
	switch strings.ToLower(s.Provider) {
	case "gemini", "":
		if s.GeminiAPIKey == "" {
			return nil, errors.New("gemini API key is required (set GEMINI_API_KEY)")
		}
		return NewGeminiEngine(s.GeminiAPIKey, s.Model), nil
	case "openai":
		if s.OpenAIAPIKey == "" {
			return nil, errors.New("openai API key is required (set OPENAI_API_KEY)")
		}
		return NewOpenAIEngine(s.OpenAIAPIKey, s.Model, s.BaseURL), nil
	}
	return nil, fmt.Errorf("unknown provider %q, use gemini or openai", s.Provider)
}

// OpenHistory opens the history database, or returns nil when HistoryPath is empty
func (s *Settings) OpenHistory() (*HistoryDB, error) {
	if s.HistoryPath == "" {
		return nil, nil
	}
	return OpenHistoryDB(s.HistoryPath)
}

// NewGenerator wires an engine, the prompt store, history and transcripts
func (s *Settings) NewGenerator() (*Generator, *HistoryDB, error) {
	engine, err := s.NewEngine()
	if err != nil {
		return nil, nil, err
	}
	prompts, err := LoadPrompts(s.PromptsPath)
	if err != nil {
		return nil, nil, err
	}
	gen := NewGenerator(engine, prompts)
	gen.SetLogDir(s.LogDir)
	history, err := s.OpenHistory()
	if err != nil {
		editorLog.Printf("History disabled: %v", err)
		history = nil
	}
	if history != nil {
		gen.SetHistory(history)
	}
	return gen, history, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
