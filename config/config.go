package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ModelSource источник весов модели в файле конфигурации.
type ModelSource struct {
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
	SHA256 string `yaml:"sha256"`
}

// Config настройки окружения, не входящие в параметры командной строки.
type Config struct {
	ModelsDir string                 `yaml:"modelsDir"`
	Models    map[string]ModelSource `yaml:"models"`

	ONNXRuntime struct {
		Library string `yaml:"library"`
	} `yaml:"onnxruntime"`

	Inference struct {
		BatchSize int `yaml:"batchSize"`
		Threads   int `yaml:"threads"`
	} `yaml:"inference"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Notify struct {
		Telegram struct {
			Token  string `yaml:"token"`
			ChatID int64  `yaml:"chatID"`
		} `yaml:"telegram"`
	} `yaml:"notify"`
}

// Default возвращает настройки по умолчанию.
func Default() *Config {
	cfg := &Config{Models: make(map[string]ModelSource)}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load читает YAML (если path не пуст и файл есть), затем .env и переменные окружения.
// Переменные окружения имеют приоритет над файлом.
func Load(path string) (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("LUNGMASK_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if cfg.Models == nil {
		cfg.Models = make(map[string]ModelSource)
	}

	if v := os.Getenv("LUNGMASK_MODELS_DIR"); v != "" {
		cfg.ModelsDir = v
	}
	if v := os.Getenv("LUNGMASK_ORT_LIB"); v != "" {
		cfg.ONNXRuntime.Library = v
	}
	if v := os.Getenv("LUNGMASK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LUNGMASK_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Notify.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Notify.Telegram.ChatID = id
	}

	return cfg, nil
}

// TelegramEnabled сообщает, настроены ли уведомления.
func (c *Config) TelegramEnabled() bool {
	return c.Notify.Telegram.Token != "" && c.Notify.Telegram.ChatID != 0
}
