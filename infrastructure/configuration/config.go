package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"social-publisher/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	OAuth       OAuth       `json:"oauth"`
	Publish     Publish     `json:"publish"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	BaseURL     string `json:"baseURL"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mssql Db `json:"mssql"`
	Mongo Db `json:"mongo"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

// OAuth holds third-party platform OAuth client credentials, one block per platform.
type OAuth struct {
	LinkedIn  OAuthClient `json:"linkedin"`
	Twitter   OAuthClient `json:"twitter"`
	Bluesky   OAuthClient `json:"bluesky"`
	TikTok    OAuthClient `json:"tiktok"`
	Pinterest OAuthClient `json:"pinterest"`
	Instagram OAuthClient `json:"instagram"`
	YouTube   OAuthClient `json:"youtube"`
}

type OAuthClient struct {
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	RedirectURI  string   `json:"redirectURI"`
	Scopes       []string `json:"scopes"`
}

// Publish tunes the queue dispatchers.
type Publish struct {
	WorkersPerPlatform int `json:"workersPerPlatform"`
	BatchSize          int `json:"batchSize"`
	PollIntervalSec    int `json:"pollIntervalSec"`
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initOAuth(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}

	// Optional MSSQL config via environment variables (Azure SQL in production)
	if v := os.Getenv("MSSQL_DB_NAME"); v != "" && C.Database.Mssql.Name == "" {
		C.Database.Mssql.Name = v
	}
	if v := os.Getenv("MSSQL_HOST"); v != "" && C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = v
	}
	if v := os.Getenv("MSSQL_USER"); v != "" && C.Database.Mssql.User == "" {
		C.Database.Mssql.User = v
	}
	if v := os.Getenv("MSSQL_PASSWORD"); v != "" && C.Database.Mssql.Password == "" {
		C.Database.Mssql.Password = v
	}
	if C.Database.Mssql.Port == "" {
		if v := os.Getenv("MSSQL_PORT"); v != "" {
			C.Database.Mssql.Port = v
		} else {
			C.Database.Mssql.Port = "1433"
		}
	}

	if C.RedisClient.Host == "" {
		C.RedisClient.Host = os.Getenv("REDIS_HOST")
	}
	if C.RedisClient.Port == "" {
		C.RedisClient.Port = os.Getenv("REDIS_PORT")
	}
	if C.RedisClient.Password == "" {
		C.RedisClient.Password = os.Getenv("REDIS_PASSWORD")
	}
}

func initApp(C *Config) {
	// SECRET_KEY from environment overrides config for JWT verification
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10010
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10010
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		C.App.BaseURL = v
	}
	if C.App.BaseURL == "" {
		scheme := "http"
		if C.App.TLSEnabled {
			scheme = "https"
		}
		C.App.BaseURL = fmt.Sprintf("%s://localhost:%d", scheme, C.App.Port)
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true":
			C.App.TLSEnabled = true
		case "0", "false":
			C.App.TLSEnabled = false
		}
	}
	if C.App.TLSCertFile == "" {
		C.App.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if C.App.TLSKeyFile == "" {
		C.App.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	}
	if C.Publish.WorkersPerPlatform == 0 {
		C.Publish.WorkersPerPlatform = 2
	}
	if C.Publish.BatchSize == 0 {
		C.Publish.BatchSize = 10
	}
	if C.Publish.PollIntervalSec == 0 {
		C.Publish.PollIntervalSec = 5
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

// initOAuth overlays per-platform client credentials from the environment and
// fills default redirect URIs off the app base URL.
func initOAuth(C *Config) {
	clients := map[string]*OAuthClient{
		"LINKEDIN":  &C.OAuth.LinkedIn,
		"TWITTER":   &C.OAuth.Twitter,
		"BLUESKY":   &C.OAuth.Bluesky,
		"TIKTOK":    &C.OAuth.TikTok,
		"PINTEREST": &C.OAuth.Pinterest,
		"INSTAGRAM": &C.OAuth.Instagram,
		"YOUTUBE":   &C.OAuth.YouTube,
	}
	for env, client := range clients {
		if client.ClientID == "" {
			client.ClientID = os.Getenv(env + "_CLIENT_ID")
		}
		if client.ClientSecret == "" {
			client.ClientSecret = os.Getenv(env + "_CLIENT_SECRET")
		}
		if client.RedirectURI == "" {
			client.RedirectURI = os.Getenv(env + "_REDIRECT_URI")
		}
		if client.RedirectURI == "" {
			client.RedirectURI = fmt.Sprintf("%s/auth/%s/callback", C.App.BaseURL, strings.ToLower(env))
		}
	}
}

// PlatformOAuth returns the client block for a platform tag.
func (o *OAuth) PlatformOAuth(platform string) OAuthClient {
	switch strings.ToLower(platform) {
	case "linkedin":
		return o.LinkedIn
	case "twitter":
		return o.Twitter
	case "bluesky":
		return o.Bluesky
	case "tiktok":
		return o.TikTok
	case "pinterest":
		return o.Pinterest
	case "instagram":
		return o.Instagram
	case "youtube":
		return o.YouTube
	}
	return OAuthClient{}
}
