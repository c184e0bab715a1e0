package common

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key when read from the environment.
const EnvPrefix = "RESUME_PARSER"

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:",squash"`
	Pipeline    PipelineConfig    `mapstructure:",squash"`
	Storage     StorageConfig     `mapstructure:",squash"`
	Transcriber TranscriberConfig `mapstructure:",squash"`
	OCR         OCRConfig         `mapstructure:",squash"`
	LLM         LLMConfig         `mapstructure:",squash"`
	Database    DatabaseConfig    `mapstructure:",squash"`
	Converter   ConverterConfig   `mapstructure:",squash"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	ProjectName     string        `mapstructure:"PROJECT_NAME"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	GRPCAddr        string        `mapstructure:"GRPC_ADDR"`
	APIPrefix       string        `mapstructure:"API_PREFIX"`
	AuthEnable      bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey         string        `mapstructure:"AUTH_KEY"`
	MaxUploadSize   int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// PipelineConfig controls the orchestrator and its worker pool.
type PipelineConfig struct {
	Debug          bool          `mapstructure:"DEBUG"`
	LogFormat      string        `mapstructure:"LOG_FORMAT"`
	Workers        int           `mapstructure:"WORKERS"` // 0 = one per CPU core
	QueueSize      int           `mapstructure:"QUEUE_SIZE"`
	ProcessTimeout time.Duration `mapstructure:"PROCESS_TIMEOUT"`
	WarmupEnable   bool          `mapstructure:"WARMUP_ENABLE"`
	WarmupStrict   bool          `mapstructure:"WARMUP_STRICT"`
}

// StorageConfig holds where uploads and outputs are kept, and for how long.
type StorageConfig struct {
	Dir       string        `mapstructure:"STORAGE_DIR"`
	Retention time.Duration `mapstructure:"STORAGE_RETENTION"` // 0 = keep forever
	InboxDir  string        `mapstructure:"INBOX_DIR"`
}

// TranscriberConfig selects and configures the transcription backend.
type TranscriberConfig struct {
	Backend   string        `mapstructure:"TRANSCRIBER_BACKEND"` // http | local
	Endpoint  string        `mapstructure:"TRANSCRIBER_ENDPOINT"`
	Timeout   time.Duration `mapstructure:"TRANSCRIBER_TIMEOUT"`
	IsDigital string        `mapstructure:"TRANSCRIBER_IS_DIGITAL"`
}

// OCRConfig holds OCR-related configuration for the local backend
type OCRConfig struct {
	Pdftotext   string `mapstructure:"OCR_PDFTOTEXT"`
	Pdftoppm    string `mapstructure:"OCR_PDFTOPPM"`
	Tesseract   string `mapstructure:"OCR_TESSERACT"`
	Lang        string `mapstructure:"OCR_LANG"`
	DPI         int    `mapstructure:"OCR_DPI"`
	MaxPages    int    `mapstructure:"OCR_MAX_PAGES"`
	TessdataDir string `mapstructure:"TESSDATA_PREFIX"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string        `mapstructure:"OPENAI_MODEL"`
	APIKey      string        `mapstructure:"OPENAI_API_KEY"`
	BaseURL     string        `mapstructure:"OPENAI_BASE_URL"`
	Temperature float32       `mapstructure:"OPENAI_TEMPERATURE"`
	Timeout     time.Duration `mapstructure:"OPENAI_TIMEOUT"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `mapstructure:"DB_DRIVER"` // sqlite | postgres
	DSN              string        `mapstructure:"DB_URL"`
	MaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	MinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	MaxConnLifetime  time.Duration `mapstructure:"DB_MAX_CONN_LIFETIME"`
	MaxConnIdleTime  time.Duration `mapstructure:"DB_MAX_CONN_IDLE_TIME"`
	DialTimeout      time.Duration `mapstructure:"DB_DIAL_TIMEOUT"`
	StatementTimeout time.Duration `mapstructure:"DB_STATEMENT_TIMEOUT"`
}

// ConverterConfig holds the command used to turn word documents into PDFs.
// The template is split like a shell command line, then {input} and {outdir}
// are substituted into each argument.
type ConverterConfig struct {
	Command string `mapstructure:"CONVERT_COMMAND"`
}

// blankDurationHookFunc maps an empty duration string to zero; the stock
// duration hook would reject it.
func blankDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		if strings.TrimSpace(data.(string)) == "" {
			return time.Duration(0), nil
		}
		return data, nil
	}
}

// stringToByteSizeHookFunc parses human-readable sizes ("20MB") into int64 byte counts.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// not a size string, let the weak decoder try
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("PROJECT_NAME", "resume-parser")
	vp.SetDefault("HTTP_ADDR", ":8000")
	vp.SetDefault("GRPC_ADDR", ":9090")
	vp.SetDefault("API_PREFIX", "/api/v1")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("MAX_UPLOAD_SIZE", "20MB")
	vp.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	vp.SetDefault("DEBUG", false)
	vp.SetDefault("LOG_FORMAT", "json")
	vp.SetDefault("WORKERS", 0)
	vp.SetDefault("QUEUE_SIZE", 64)
	vp.SetDefault("PROCESS_TIMEOUT", "3m")
	vp.SetDefault("WARMUP_ENABLE", true)
	vp.SetDefault("WARMUP_STRICT", false)

	vp.SetDefault("STORAGE_DIR", "resume_vault")
	vp.SetDefault("STORAGE_RETENTION", "0s")
	vp.SetDefault("INBOX_DIR", "")

	vp.SetDefault("TRANSCRIBER_BACKEND", "http")
	vp.SetDefault("TRANSCRIBER_ENDPOINT", "")
	vp.SetDefault("TRANSCRIBER_TIMEOUT", "2m")
	vp.SetDefault("TRANSCRIBER_IS_DIGITAL", "")

	vp.SetDefault("OCR_PDFTOTEXT", "pdftotext")
	vp.SetDefault("OCR_PDFTOPPM", "pdftoppm")
	vp.SetDefault("OCR_TESSERACT", "tesseract")
	vp.SetDefault("OCR_LANG", "eng")
	vp.SetDefault("OCR_DPI", 300)
	vp.SetDefault("OCR_MAX_PAGES", 0)
	vp.SetDefault("TESSDATA_PREFIX", "")

	vp.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	vp.SetDefault("OPENAI_API_KEY", "")
	vp.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	vp.SetDefault("OPENAI_TEMPERATURE", 0.0)
	vp.SetDefault("OPENAI_TIMEOUT", "45s")

	vp.SetDefault("DB_DRIVER", "sqlite")
	vp.SetDefault("DB_URL", "file:resume_parser.db")
	vp.SetDefault("DB_MAX_CONNS", 10)
	vp.SetDefault("DB_MIN_CONNS", 1)
	vp.SetDefault("DB_MAX_CONN_LIFETIME", "30m")
	vp.SetDefault("DB_MAX_CONN_IDLE_TIME", "5m")
	vp.SetDefault("DB_DIAL_TIMEOUT", "3s")
	vp.SetDefault("DB_STATEMENT_TIMEOUT", "0s")

	vp.SetDefault("CONVERT_COMMAND", "libreoffice --headless --convert-to pdf {input} --outdir {outdir}")
}

// LoadConfig reads defaults, then the optional config file, then the environment.
// An empty path searches resume_parser.yaml in . and /etc/resume-parser/.
func LoadConfig(path string) (*Config, error) {
	vp := viper.New()
	setDefaults(vp)

	if path != "" {
		vp.SetConfigFile(path)
	} else {
		vp.SetConfigName("resume_parser")
		vp.SetConfigType("yaml")
		vp.AddConfigPath(".")
		vp.AddConfigPath("/etc/resume-parser/")
	}
	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, NewAppError(CodeConfig, "read config file", err)
		}
	}

	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	// well-known variables are also honoured without the prefix
	for _, key := range []string{"OPENAI_API_KEY", "DB_URL", "TESSDATA_PREFIX"} {
		if err := vp.BindEnv(key, EnvPrefix+"_"+key, key); err != nil {
			return nil, NewAppError(CodeConfig, "bind env "+key, err)
		}
	}

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			blankDurationHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, NewAppError(CodeConfig, "decode config", err)
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("HTTP_ADDR", c.Server.HTTPAddr, Required).
		Field("GRPC_ADDR", c.Server.GRPCAddr, Required).
		Field("STORAGE_DIR", c.Storage.Dir, Required).
		Field("TRANSCRIBER_BACKEND", c.Transcriber.Backend, OneOf("http", "local")).
		Field("OPENAI_API_KEY", c.LLM.APIKey, Required).
		Field("DB_DRIVER", c.Database.Driver, OneOf("sqlite", "postgres")).
		Field("DB_URL", c.Database.DSN, Required).
		Field("LOG_FORMAT", c.Pipeline.LogFormat, OneOf("json", "text")).
		Field("WORKERS", c.Pipeline.Workers, NonNegative).
		Field("STORAGE_RETENTION", c.Storage.Retention, NonNegative)

	if c.Transcriber.Backend == "http" {
		v.Field("TRANSCRIBER_ENDPOINT", c.Transcriber.Endpoint, Required)
	}
	if c.Server.AuthEnable {
		v.Field("AUTH_KEY", c.Server.AuthKey, Required)
	}
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
