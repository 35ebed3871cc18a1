package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "sahara"
)

type Config struct {
	Server   *ServerConfig   `mapstructure:"server"`
	AI       *AIConfig       `mapstructure:"ai"`
	Cache    *CacheConfig    `mapstructure:"cache"`
	Redis    *RedisConfig    `mapstructure:"redis"`
	Sessions *SessionsConfig `mapstructure:"sessions"`
	Catalog  *FileConfig     `mapstructure:"catalog"`
	Keywords *FileConfig     `mapstructure:"keywords"`
	Matching *MatchingConfig `mapstructure:"matching"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	MinScore float64       `mapstructure:"min-score"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey          string        `mapstructure:"api-key"`
	APIKeyFile      string        `mapstructure:"api-key-file"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	MaxOutputTokens int32         `mapstructure:"max-output-tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxLogLength    int           `mapstructure:"max-log-length"`
}

type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max-entries"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SessionsConfig struct {
	Backend      string        `mapstructure:"backend"`
	SQLitePath   string        `mapstructure:"sqlite-path"`
	RecentLimit  int           `mapstructure:"recent-limit"`
	WriteTimeout time.Duration `mapstructure:"write-timeout"`
}

type FileConfig struct {
	File string `mapstructure:"file"`
}

type MatchingConfig struct {
	BatchDelay time.Duration `mapstructure:"batch-delay"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "sahara matches spoken descriptions of a person's situation to government benefit programs",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is sahara.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdown-timeout", 10*time.Second)

	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.min-score", 0)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	v.SetDefault("ai.gemini.temperature", 0.3)
	v.SetDefault("ai.gemini.max-output-tokens", 2000)
	v.SetDefault("ai.gemini.timeout", 15*time.Second)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max-entries", 1000)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "sahara:")

	v.SetDefault("sessions.backend", "memory")
	v.SetDefault("sessions.sqlite-path", "sahara.db")
	v.SetDefault("sessions.recent-limit", 5)
	v.SetDefault("sessions.write-timeout", 5*time.Second)

	v.SetDefault("catalog.file", "")
	v.SetDefault("keywords.file", "")
	v.SetDefault("matching.batch-delay", time.Second)
}

func initConfig() {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	viper.SetEnvPrefix(strings.ToUpper(app))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Every key has a default, so only an explicit but unreadable file is fatal.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	return config, nil
}
