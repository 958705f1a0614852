package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Storage       StorageConfig       `json:"storage"`
	Blockchain    BlockchainConfig    `json:"blockchain"`
	Workflow      WorkflowConfig      `json:"workflow"`
	Security      SecurityConfig      `json:"security"`
	Notifications NotificationsConfig `json:"notifications"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver         string        `json:"driver"` // postgres, sqlite
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	SQLitePath     string        `json:"sqlite_path"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// StorageConfig selects where uploaded files are kept
type StorageConfig struct {
	Backend   string `json:"backend"` // local, s3
	LocalDir  string `json:"local_dir"`
	S3Bucket  string `json:"s3_bucket"`
	S3Region  string `json:"s3_region"`
	S3Prefix  string `json:"s3_prefix"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// BlockchainConfig points at the PropertyTransfer and LandRegistry contracts
type BlockchainConfig struct {
	RPCURL          string `json:"rpc_url"`
	PrivateKey      string `json:"private_key"`
	ContractAddress string `json:"contract_address"`
	RegistryAddress string `json:"registry_address"`
	ChainID         int64  `json:"chain_id"`
	GasLimit        uint64 `json:"gas_limit"`
}

// WorkflowConfig tunes the transaction engine
type WorkflowConfig struct {
	FinalizeTimeout   time.Duration `json:"finalize_timeout"`
	ExclusiveRequests bool          `json:"exclusive_requests"`
	FinalizeSchedule  string        `json:"finalize_schedule"`
	FinalizeBatchSize int           `json:"finalize_batch_size"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// NotificationsConfig
type NotificationsConfig struct {
	EmailEnabled bool   `json:"email_enabled"`
	FromAddress  string `json:"from_address"`
	SESRegion    string `json:"ses_region"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxUploadBytes:  10 << 20,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "land_registry",
			SSLMode:        "disable",
			SQLitePath:     "land_registry.db",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    time.Hour,
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "uploads",
			S3Region: "us-east-1",
		},
		Blockchain: BlockchainConfig{
			RPCURL:   "http://127.0.0.1:8545",
			ChainID:  80002,
			GasLimit: 500000,
		},
		Workflow: WorkflowConfig{
			FinalizeTimeout:   60 * time.Second,
			FinalizeSchedule:  "0 */5 * * * *",
			FinalizeBatchSize: 20,
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
		Notifications: NotificationsConfig{
			SESRegion: "us-east-1",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a .env file, a JSON file and
// environment variables, in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func overrideWithEnv(config *Config) error {
	setString(&config.Server.Host, "SERVER_HOST")
	if err := setInt(&config.Server.Port, "SERVER_PORT"); err != nil {
		return err
	}

	setString(&config.Database.Driver, "DATABASE_DRIVER")
	setString(&config.Database.Host, "DATABASE_HOST")
	if err := setInt(&config.Database.Port, "DATABASE_PORT"); err != nil {
		return err
	}
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")
	setString(&config.Database.SQLitePath, "DATABASE_SQLITE_PATH")

	setString(&config.Storage.Backend, "STORAGE_BACKEND")
	setString(&config.Storage.LocalDir, "STORAGE_LOCAL_DIR")
	setString(&config.Storage.S3Bucket, "STORAGE_S3_BUCKET")
	setString(&config.Storage.S3Region, "STORAGE_S3_REGION")
	setString(&config.Storage.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&config.Storage.SecretKey, "AWS_SECRET_ACCESS_KEY")

	setString(&config.Blockchain.RPCURL, "BLOCKCHAIN_RPC_URL")
	setString(&config.Blockchain.PrivateKey, "BLOCKCHAIN_PRIVATE_KEY")
	setString(&config.Blockchain.ContractAddress, "BLOCKCHAIN_CONTRACT_ADDRESS")
	setString(&config.Blockchain.RegistryAddress, "BLOCKCHAIN_REGISTRY_ADDRESS")
	if v := os.Getenv("BLOCKCHAIN_CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BLOCKCHAIN_CHAIN_ID: %w", err)
		}
		config.Blockchain.ChainID = id
	}

	if err := setDuration(&config.Workflow.FinalizeTimeout, "WORKFLOW_FINALIZE_TIMEOUT"); err != nil {
		return err
	}
	if err := setBool(&config.Workflow.ExclusiveRequests, "WORKFLOW_EXCLUSIVE_REQUESTS"); err != nil {
		return err
	}
	setString(&config.Workflow.FinalizeSchedule, "WORKFLOW_FINALIZE_SCHEDULE")

	setString(&config.Security.JWTSecret, "JWT_SECRET")
	if err := setDuration(&config.Security.TokenTTL, "JWT_TOKEN_TTL"); err != nil {
		return err
	}

	if err := setBool(&config.Notifications.EmailEnabled, "NOTIFICATIONS_EMAIL_ENABLED"); err != nil {
		return err
	}
	setString(&config.Notifications.FromAddress, "NOTIFICATIONS_FROM_ADDRESS")

	setString(&config.Logging.Level, "LOG_LEVEL")
	return setBool(&config.Logging.Development, "LOG_DEVELOPMENT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Workflow.FinalizeTimeout <= 0 {
		return fmt.Errorf("workflow.finalize_timeout must be positive")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
