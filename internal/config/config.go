package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Extractor ExtractorConfig
	Logger    LoggerConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Service  string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// LLMConfig configures the text-generation backend.
type LLMConfig struct {
	Provider      string // "ollama" or "openai"
	ServerURL     string // ollama server URL
	Model         string
	APIKey        string // openai only
	Temperature   float64
	Timeout       time.Duration
	MaxRetries    int
	QuestionCount int
}

// ExtractorConfig bounds the article fetch path.
type ExtractorConfig struct {
	Timeout         time.Duration
	ValidateTimeout time.Duration
	ParagraphLimit  int
	UserAgent       string
}

type LoggerConfig struct {
	Level string
	Env   string
}

// GetDSN builds the go-ora connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("oracle://%s:%s@%s:%d/%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Service)
}

// LoadConfig reads config.yaml and applies environment overrides. It is
// called explicitly by each entry point; nothing happens at import time.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if os.Getenv("ENV") == "test" {
		viper.AddConfigPath("../../config")
		viper.AddConfigPath("../../")
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file is fine; defaults + env carry the configuration.
	}

	config := &Config{
		Server: ServerConfig{
			Port:         viper.GetInt("server.port"),
			ReadTimeout:  viper.GetDuration("server.read_timeout") * time.Second,
			WriteTimeout: viper.GetDuration("server.write_timeout") * time.Second,
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetInt("db.port"),
			User:     viper.GetString("db.user"),
			Password: viper.GetString("db.password"),
			Service:  viper.GetString("db.service"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			TTL:      viper.GetDuration("redis.ttl"),
		},
		LLM: LLMConfig{
			Provider:      viper.GetString("llm.provider"),
			ServerURL:     viper.GetString("llm.server"),
			Model:         viper.GetString("llm.model"),
			APIKey:        viper.GetString("llm.api_key"),
			Temperature:   viper.GetFloat64("llm.temperature"),
			Timeout:       viper.GetDuration("llm.timeout"),
			MaxRetries:    viper.GetInt("llm.max_retries"),
			QuestionCount: viper.GetInt("llm.question_count"),
		},
		Extractor: ExtractorConfig{
			Timeout:         viper.GetDuration("extractor.timeout"),
			ValidateTimeout: viper.GetDuration("extractor.validate_timeout"),
			ParagraphLimit:  viper.GetInt("extractor.paragraph_limit"),
			UserAgent:       viper.GetString("extractor.user_agent"),
		},
		Logger: LoggerConfig{
			Level: viper.GetString("logger.level"),
			Env:   viper.GetString("logger.env"),
		},
	}

	// Environment overrides for deployment without a config file
	if host := os.Getenv("DB_HOST"); host != "" {
		config.DB.Host = host
	}
	if user := os.Getenv("DB_USER"); user != "" {
		config.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.DB.Password = password
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		config.Redis.Address = addr
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 120)
	viper.SetDefault("redis.ttl", 24*time.Hour)
	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.server", "http://localhost:11434")
	viper.SetDefault("llm.model", "qwen3:0.6b")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("llm.max_retries", 2)
	viper.SetDefault("llm.question_count", 10)
	viper.SetDefault("extractor.timeout", 10*time.Second)
	viper.SetDefault("extractor.validate_timeout", 5*time.Second)
	viper.SetDefault("extractor.paragraph_limit", 20)
	viper.SetDefault("extractor.user_agent", "IntelliQuiz/1.0 (contact@intelliquiz.dev)")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.env", "development")
}
