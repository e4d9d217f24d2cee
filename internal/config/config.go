package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DBURL        string `mapstructure:"DB_URL"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	HTTPAddr     string `mapstructure:"HTTP_ADDR"`

	EvalInterval      string `mapstructure:"EVAL_INTERVAL"`
	HealthInterval    string `mapstructure:"HEALTH_INTERVAL"`
	StaleInterval     string `mapstructure:"STALE_INTERVAL"`
	WorkerConcurrency int    `mapstructure:"WORKER_CONCURRENCY"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	EmailFrom    string `mapstructure:"EMAIL_FROM"`

	MDNSLocalName string `mapstructure:"MDNS_LOCAL_NAME"`
}

// LoadConfig reads configuration from file, .env, or env vars
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		println("Error loading .env file: ", err)
	}

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("MQTT_CLIENT_ID", "smartfarm-engine")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("EVAL_INTERVAL", "@every 1m")
	viper.SetDefault("HEALTH_INTERVAL", "@every 5m")
	viper.SetDefault("STALE_INTERVAL", "@every 1m")
	viper.SetDefault("WORKER_CONCURRENCY", 10)
	viper.SetDefault("SMTP_PORT", 587)

	cfg := &Config{
		DBURL:        viper.GetString("DB_URL"),
		RedisAddr:    viper.GetString("REDIS_ADDR"),
		MQTTBroker:   viper.GetString("MQTT_BROKER"),
		MQTTClientID: viper.GetString("MQTT_CLIENT_ID"),
		LogLevel:     viper.GetString("LOG_LEVEL"),
		HTTPAddr:     viper.GetString("HTTP_ADDR"),

		EvalInterval:      viper.GetString("EVAL_INTERVAL"),
		HealthInterval:    viper.GetString("HEALTH_INTERVAL"),
		StaleInterval:     viper.GetString("STALE_INTERVAL"),
		WorkerConcurrency: viper.GetInt("WORKER_CONCURRENCY"),

		SMTPHost:     viper.GetString("SMTP_HOST"),
		SMTPPort:     viper.GetInt("SMTP_PORT"),
		SMTPUsername: viper.GetString("SMTP_USERNAME"),
		SMTPPassword: viper.GetString("SMTP_PASSWORD"),
		EmailFrom:    viper.GetString("EMAIL_FROM"),

		MDNSLocalName: viper.GetString("MDNS_LOCAL_NAME"),
	}
	return cfg, nil
}
