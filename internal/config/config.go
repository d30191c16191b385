package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	CBS      CBSConfig      `mapstructure:"cbs"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the connection string for the configured driver.
// Parameters: none.
// Returns:
//   - string: driver-specific DSN.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type CBSConfig struct {
	WFSBaseURL   string        `mapstructure:"wfs_base_url"`
	ODataBaseURL string        `mapstructure:"odata_base_url"`
	StatsTableID string        `mapstructure:"stats_table_id"`
	CrimeTableID string        `mapstructure:"crime_table_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type WorkerConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	CancelCheckEvery int           `mapstructure:"cancel_check_every"`
	BatchSize        int           `mapstructure:"batch_size"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/buurtlens.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "buurtlens")
	v.SetDefault("database.name", "buurtlens")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("cbs.wfs_base_url", "https://service.pdok.nl/cbs/wijkenbuurten/2023/wfs/v1_0")
	v.SetDefault("cbs.odata_base_url", "https://opendata.cbs.nl/ODataApi/odata")
	v.SetDefault("cbs.stats_table_id", "85618NED")
	v.SetDefault("cbs.crime_table_id", "47022NED")
	v.SetDefault("cbs.timeout", 30*time.Second)
	v.SetDefault("worker.poll_interval", 10*time.Second)
	v.SetDefault("worker.cancel_check_every", 10)
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.metrics_addr", ":9090")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.name", "DATABASE_NAME")
	v.BindEnv("cbs.wfs_base_url", "CBS_WFS_BASE_URL")
	v.BindEnv("cbs.odata_base_url", "CBS_ODATA_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
