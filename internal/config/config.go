package config

import (
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	DynamoDB DynamoDBConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Chat     ChatConfig
}

type ServerConfig struct {
	HTTPPort string
}

type DynamoDBConfig struct {
	Region          string
	ProfileTable    string
	RoomTable       string
	MemberTable     string
	MessageTable    string
	AccessKeyID     string
	SecretAccessKey string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type StorageConfig struct {
	Region    string
	Bucket    string
	PublicURL string
}

type AuthConfig struct {
	// ProviderURL is the base URL of the hosted identity provider.
	ProviderURL string
	// JWTSecret verifies access tokens the provider signs with HS256.
	JWTSecret string
}

type ChatConfig struct {
	// HistoryLimit bounds the initial message window per room.
	HistoryLimit int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: getEnv("HTTP_PORT", ":8080"),
		},
		DynamoDB: DynamoDBConfig{
			Region:          getEnv("AWS_REGION", "us-west-2"),
			ProfileTable:    getEnv("DYNAMODB_PROFILE_TABLE", "profiles"),
			RoomTable:       getEnv("DYNAMODB_ROOM_TABLE", "chat_rooms"),
			MemberTable:     getEnv("DYNAMODB_MEMBER_TABLE", "room_members"),
			MessageTable:    getEnv("DYNAMODB_MESSAGE_TABLE", "messages"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Storage: StorageConfig{
			Region:    getEnv("S3_REGION", getEnv("AWS_REGION", "us-west-2")),
			Bucket:    getEnv("S3_BUCKET", "chat-files"),
			PublicURL: getEnv("S3_PUBLIC_URL", ""),
		},
		Auth: AuthConfig{
			ProviderURL: getEnv("AUTH_PROVIDER_URL", "http://localhost:9999"),
			JWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
		},
		Chat: ChatConfig{
			HistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 100),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
