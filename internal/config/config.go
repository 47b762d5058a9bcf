package config

import (
	"log/slog"
	"os"

	"github.com/corray333/backend-labs/payment/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func MustInit() {
	if err := godotenv.Load("./.env"); err != nil {
		panic("error while loading .env file: " + err.Error())
	}
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/payment-svc")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic("error while reading config file: " + err.Error())
	}

	// An unset webhook secret would make the service accept unverified
	// webhooks. Refuse to start instead.
	if os.Getenv("GATEWAY_WEBHOOK_SECRET") == "" {
		panic("GATEWAY_WEBHOOK_SECRET is not set")
	}
	if os.Getenv("GATEWAY_SECRET_KEY") == "" {
		panic("GATEWAY_SECRET_KEY is not set")
	}

	SetupLogger()
}

func SetupLogger() {
	handler := logger.NewHandler(nil)
	log := slog.New(handler)
	slog.SetDefault(log)
}
