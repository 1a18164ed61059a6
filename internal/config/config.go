// Package config содержит логику чтения конфигурации сервисов ordermart.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// OrderConfig содержит параметры конфигурации order-service.
type OrderConfig struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	UserServiceAddress string `env:"USER_SERVICE_ADDRESS"`
	UserServiceToken   string `env:"USER_SERVICE_TOKEN"`
	KafkaBrokers       string `env:"KAFKA_BROKERS"`
	KafkaGroupID       string `env:"KAFKA_GROUP_ID"`
}

// ParseOrder считывает конфигурацию order-service из переменных окружения
// и флагов командной строки. Значения окружения имеют приоритет.
func ParseOrder(args []string) (*OrderConfig, error) {
	cfg := &OrderConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	fs := flag.NewFlagSet("orderservice", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", "localhost:8081", "address and port for HTTP server")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	fs.StringVar(&cfg.UserServiceAddress, "u", "", "user service address")
	fs.StringVar(&cfg.UserServiceToken, "t", "", "user service bearer token")
	fs.StringVar(&cfg.KafkaBrokers, "k", "", "kafka brokers, comma separated")
	fs.StringVar(&cfg.KafkaGroupID, "g", "order-group", "kafka consumer group")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	applyEnvOverrides(map[*string]string{
		&cfg.RunAddress:         fromEnv.RunAddress,
		&cfg.DatabaseURI:        fromEnv.DatabaseURI,
		&cfg.UserServiceAddress: fromEnv.UserServiceAddress,
		&cfg.UserServiceToken:   fromEnv.UserServiceToken,
		&cfg.KafkaBrokers:       fromEnv.KafkaBrokers,
		&cfg.KafkaGroupID:       fromEnv.KafkaGroupID,
	})

	return cfg, nil
}

// AuthConfig содержит параметры конфигурации auth-service.
type AuthConfig struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	UserServiceAddress string `env:"USER_SERVICE_ADDRESS"`
	UserServiceToken   string `env:"USER_SERVICE_TOKEN"`
	JWTSecret          string `env:"JWT_SECRET"`
}

// ParseAuth считывает конфигурацию auth-service.
func ParseAuth(args []string) (*AuthConfig, error) {
	cfg := &AuthConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	fs := flag.NewFlagSet("authservice", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", "localhost:8082", "address and port for HTTP server")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	fs.StringVar(&cfg.UserServiceAddress, "u", "", "user service address")
	fs.StringVar(&cfg.UserServiceToken, "t", "", "user service bearer token")
	fs.StringVar(&cfg.JWTSecret, "s", "", "JWT signing secret")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	applyEnvOverrides(map[*string]string{
		&cfg.RunAddress:         fromEnv.RunAddress,
		&cfg.DatabaseURI:        fromEnv.DatabaseURI,
		&cfg.UserServiceAddress: fromEnv.UserServiceAddress,
		&cfg.UserServiceToken:   fromEnv.UserServiceToken,
		&cfg.JWTSecret:          fromEnv.JWTSecret,
	})

	return cfg, nil
}

// UserConfig содержит параметры конфигурации user-service.
type UserConfig struct {
	RunAddress   string `env:"RUN_ADDRESS"`
	DatabaseURI  string `env:"DATABASE_URI"`
	CacheTTLSecs int    `env:"CACHE_TTL_SECONDS"`
}

// ParseUser считывает конфигурацию user-service.
func ParseUser(args []string) (*UserConfig, error) {
	cfg := &UserConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	fs := flag.NewFlagSet("userservice", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", "localhost:8083", "address and port for HTTP server")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	fs.IntVar(&cfg.CacheTTLSecs, "c", 60, "user cache TTL in seconds")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	applyEnvOverrides(map[*string]string{
		&cfg.RunAddress:  fromEnv.RunAddress,
		&cfg.DatabaseURI: fromEnv.DatabaseURI,
	})
	if fromEnv.CacheTTLSecs != 0 {
		cfg.CacheTTLSecs = fromEnv.CacheTTLSecs
	}

	return cfg, nil
}

// PaymentConfig содержит параметры конфигурации payment-service.
type PaymentConfig struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseURI      string `env:"DATABASE_URI"`
	RandomAPIAddress string `env:"RANDOM_API_ADDRESS"`
	KafkaBrokers     string `env:"KAFKA_BROKERS"`
}

// ParsePayment считывает конфигурацию payment-service.
func ParsePayment(args []string) (*PaymentConfig, error) {
	cfg := &PaymentConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	fs := flag.NewFlagSet("paymentservice", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", "localhost:8084", "address and port for HTTP server")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	fs.StringVar(&cfg.RandomAPIAddress, "r", "", "random number API address")
	fs.StringVar(&cfg.KafkaBrokers, "k", "", "kafka brokers, comma separated")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	applyEnvOverrides(map[*string]string{
		&cfg.RunAddress:       fromEnv.RunAddress,
		&cfg.DatabaseURI:      fromEnv.DatabaseURI,
		&cfg.RandomAPIAddress: fromEnv.RandomAPIAddress,
		&cfg.KafkaBrokers:     fromEnv.KafkaBrokers,
	})

	return cfg, nil
}

func applyEnvOverrides(overrides map[*string]string) {
	for dst, envValue := range overrides {
		if envValue != "" {
			*dst = envValue
		}
	}
}
