package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Notify   NotifyConfig   `mapstructure:"notifications"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// Auth Configuration
type AuthConfig struct {
	JWTSecretEnv    string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// MQTT Configuration for the broker identity bridge.
type MQTTConfig struct {
	// Namespace is the leading topic segment for all default ACL rules.
	Namespace string `mapstructure:"namespace"`
	// EncryptionKeyEnv names the env var holding the base64 AES key for
	// operator-recoverable secrets.
	EncryptionKeyEnv string `mapstructure:"encryption_key_env"`
	// TopicSeedFile optionally pre-populates the topic registry.
	TopicSeedFile string `mapstructure:"topic_seed_file"`
	// AdminUsername, when set, bootstraps a superuser broker identity at
	// startup (password from AdminPasswordEnv).
	AdminUsername    string `mapstructure:"admin_username"`
	AdminPasswordEnv string `mapstructure:"admin_password_env"`
	// TestTimeout bounds the broker test-connection diagnostic.
	TestTimeout time.Duration `mapstructure:"test_timeout"`
}

type NotifyConfig struct {
	TelegramTokenEnv string        `mapstructure:"telegram_token_env"`
	SMTPHost         string        `mapstructure:"smtp_host"`
	SMTPPort         int           `mapstructure:"smtp_port"`
	SMTPUser         string        `mapstructure:"smtp_user"`
	SMTPPasswordEnv  string        `mapstructure:"smtp_password_env"`
	FromAddress      string        `mapstructure:"from_address"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// Defaults setzen
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("database.max_connections", 10)

	// Auth Defaults
	viper.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	viper.SetDefault("auth.access_token_ttl", "60m")
	viper.SetDefault("auth.refresh_token_ttl", "168h")

	// MQTT Defaults
	viper.SetDefault("mqtt.namespace", "iot")
	viper.SetDefault("mqtt.encryption_key_env", "MQTT_ENCRYPTION_KEY")
	viper.SetDefault("mqtt.admin_password_env", "MQTT_ADMIN_PASSWORD")
	viper.SetDefault("mqtt.test_timeout", "10s")

	viper.SetDefault("notifications.telegram_token_env", "TELEGRAM_BOT_TOKEN")
	viper.SetDefault("notifications.smtp_password_env", "SMTP_PASSWORD")
	viper.SetDefault("notifications.send_timeout", "15s")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("IOT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// JWT Secret aus Environment Variable laden
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET" // Fallback
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		// Development Fallback (MIT WARNING!)
		return "dev-secret-change-in-production-min-32-chars"
	}
	return secret
}

// GetEncryptionKey returns the base64 AES key for the secret codec.
func (m *MQTTConfig) GetEncryptionKey() string {
	envVar := m.EncryptionKeyEnv
	if envVar == "" {
		envVar = "MQTT_ENCRYPTION_KEY"
	}
	return os.Getenv(envVar)
}

// GetAdminPassword returns the bootstrap superuser password, if configured.
func (m *MQTTConfig) GetAdminPassword() string {
	envVar := m.AdminPasswordEnv
	if envVar == "" {
		envVar = "MQTT_ADMIN_PASSWORD"
	}
	return os.Getenv(envVar)
}
