package config

import (
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/localmart/order/pkg/logger"
	"github.com/spf13/viper"
)

// MustInit loads .env, reads config.yaml and installs the default logger.
// Environment variables override file values, with dots mapped to
// underscores (server.http.port → SERVER_HTTP_PORT).
func MustInit() {
	if err := godotenv.Load("./.env"); err != nil {
		panic("error while loading .env file: " + err.Error())
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/order-svc")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic("error while reading config file: " + err.Error())
	}

	SetupLogger()
}

// SetupLogger makes the structured JSON handler the process default.
func SetupLogger() {
	handler := logger.NewHandler(nil)
	slog.SetDefault(slog.New(handler))
}
