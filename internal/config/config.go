package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModelFile      = "model.onnx"
	DefaultPort           = "8080"
	DefaultMaxUploadBytes = 10 << 20
)

type Config struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	ModelPath      string `yaml:"modelPath"`
	OrtLibPath     string `yaml:"ortLibPath"`
	InputName      string `yaml:"inputName"`
	OutputName     string `yaml:"outputName"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	LogLevel       string `yaml:"logLevel"`
	// EagerLoad loads the model at startup. Failure is logged and the
	// model is loaded again on the first request.
	EagerLoad *bool `yaml:"eagerLoad"`
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func (c *Config) ShouldEagerLoad() bool {
	return c.EagerLoad == nil || *c.EagerLoad
}

// ApplyDefaults fills empty fields. The model is looked up next to the
// running executable unless configured otherwise.
func (c *Config) ApplyDefaults() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.ModelPath == "" {
		c.ModelPath = filepath.Join(executableDir(), DefaultModelFile)
	}
	if c.InputName == "" {
		c.InputName = "input"
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return errors.Errorf("maxUploadBytes must be positive, got %d", c.MaxUploadBytes)
	}
	if strings.TrimSpace(c.InputName) == "" || strings.TrimSpace(c.OutputName) == "" {
		return errors.New("tensor names must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return errors.Errorf("invalid port %q", c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "logLevel")
	}
	return nil
}

// Load reads the optional YAML file at path, then .env files, then the
// process environment. Later sources win.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "decode config")
		}
	}

	for _, envFile := range []string{".env", ".local.env"} {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			logrus.WithError(err).WithField("file", envFile).Warn("failed to load dotenv file")
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("HOST", &cfg.Host)
	setString("PORT", &cfg.Port)
	setString("MODEL_PATH", &cfg.ModelPath)
	setString("ORT_LIB_PATH", &cfg.OrtLibPath)
	setString("MODEL_INPUT_NAME", &cfg.InputName)
	setString("MODEL_OUTPUT_NAME", &cfg.OutputName)
	setString("LOG_LEVEL", &cfg.LogLevel)

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "MAX_UPLOAD_BYTES")
		}
		cfg.MaxUploadBytes = n
	}
	if v := os.Getenv("EAGER_LOAD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "EAGER_LOAD")
		}
		cfg.EagerLoad = &b
	}
	return nil
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
