package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Db DbConfig

	StreamURL       string
	RestURL         string
	APIKey          string
	AuctionContract string

	Validator string

	NFTContractHash        string
	NFTContractPackageHash string
	NFTCollectionName      string

	KeyPath     string
	NodeURL     string
	NetworkName string

	OpenAIKey   string
	ImagePath   string
	ImagePrompt string

	FilebaseKey     string
	FilebaseSecret  string
	FilebaseBucket  string
	FilebaseGateway string

	PageSize          int
	HeartbeatDeadline time.Duration
	ConcurrentJobs    int
	ReconnectAttempts int
	CronSchedule      string
}

type DbConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DbName   string
}

func LoadConfig() *Config {
	if err := LoadEnv(); err != nil {
		panic(fmt.Sprintf("Error loading environment variables: %v", err))
	}

	config := Config{
		Db: DbConfig{
			Host:     getEnvString("DB_HOST", ptr("")),
			User:     getEnvString("DB_USER", ptr("")),
			Password: getEnvString("DB_PASS", ptr("")),
			DbName:   getEnvString("DB_NAME", ptr("cspr_rewarder")),
			Port:     getEnvInt("DB_PORT", ptr(27017)),
		},

		StreamURL:       getEnvString("CSPR_CLOUD_STREAM_URL", nil),
		RestURL:         getEnvString("CSPR_CLOUD_REST_URL", nil),
		APIKey:          getEnvString("CSPR_CLOUD_API_KEY", nil),
		AuctionContract: getEnvString("AUCTION_CONTRACT_PACKAGE", nil),

		Validator: getEnvString("MY_VALIDATOR", nil),

		NFTContractHash:        getEnvString("NFT_CONTRACT_HASH", nil),
		NFTContractPackageHash: getEnvString("NFT_CONTRACT_PACKAGE_HASH", nil),
		NFTCollectionName:      getEnvString("NFT_COLLECTION_NAME", ptr("SteuerNFT")),

		KeyPath:     getEnvString("KEY_PATH", nil),
		NodeURL:     getEnvString("NODE_URL", nil),
		NetworkName: getEnvString("NETWORK_NAME", ptr("casper")),

		OpenAIKey:   getEnvString("OPENAI_API_KEY", nil),
		ImagePath:   getEnvString("NFT_IMAGE_PATH", nil),
		ImagePrompt: getEnvString("NFT_IMAGE_PROMPT", nil),

		FilebaseKey:     getEnvString("FILEBASE_API_KEY", nil),
		FilebaseSecret:  getEnvString("FILEBASE_API_SECRET", nil),
		FilebaseBucket:  getEnvString("FILEBASE_BUCKET_NAME", nil),
		FilebaseGateway: getEnvString("FILEBASE_GATEWAY", nil),

		PageSize:          getEnvInt("PAGE_SIZE", ptr(250)),
		HeartbeatDeadline: getEnvDuration("HEARTBEAT_DEADLINE", ptr(13*time.Second)),
		ConcurrentJobs:    getEnvInt("CONCURRENT_JOBS", ptr(5)),
		ReconnectAttempts: getEnvInt("STREAM_RECONNECT_ATTEMPTS", ptr(0)),
		CronSchedule:      getEnvString("CRON_SCHEDULE", ptr("0 0 * * * *")),
	}
	log.Println("✅ Config Loaded")
	return &config
}

func getConfigPath() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("error getting current file path")
	}
	return filepath.Dir(filename), nil
}

func LoadEnv() error {
	dir, err := getConfigPath()
	if err != nil {
		return err
	}

	envPath := filepath.Join(dir, "../../.env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// .env file doesn't exist, just return without an error
		return nil
	}

	return godotenv.Load(envPath)
}

func getEnvString(key string, defaultValue *string) string {
	value := os.Getenv(key)

	if value != "" {
		return value
	}
	if defaultValue == nil {
		panic(fmt.Sprintf("Environment variable %s is required", key))
	}
	return *defaultValue
}

func getEnvInt(key string, defaultValue *int) int {
	value := os.Getenv(key)
	if value != "" {
		intValue, err := strconv.Atoi(value)
		if err != nil {
			panic(fmt.Sprintf("Environment variable %s is not a valid integer", key))
		}
		return intValue
	}
	if defaultValue == nil {
		panic(fmt.Sprintf("Environment variable %s is required", key))
	}
	return *defaultValue
}

func getEnvDuration(key string, defaultValue *time.Duration) time.Duration {
	value := os.Getenv(key)
	if value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			panic(fmt.Sprintf("Environment variable %s is not a valid duration", key))
		}
		return duration
	}
	if defaultValue == nil {
		panic(fmt.Sprintf("Environment variable %s is required", key))
	}
	return *defaultValue
}

func ptr[T any](v T) *T {
	return &v
}
