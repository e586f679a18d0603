// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек всех процессов биллинга.
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RabbitMQURL             string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	SweepInterval           time.Duration `yaml:"sweep_interval" env-default:"1h"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Admin                   `yaml:"admin"`
	Exchange                `yaml:"exchange"`
	Gateway                 `yaml:"gateway"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном админки.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Admin учётные данные администратора. Пароль хранится только bcrypt-хэшем.
type Admin struct {
	Username     string `yaml:"username" env-default:"admin"`
	PasswordHash string `yaml:"password_hash" env:"ADMIN_PASSWORD_HASH"`
}

// Exchange настройки источника курса вторичной валюты.
// При недоступности источника используется последний известный курс.
type Exchange struct {
	RateURL     string        `yaml:"rate_url" env:"EXCHANGE_RATE_URL"`
	RefreshSpec string        `yaml:"refresh_spec" env-default:"@every 12h"`
	DefaultRate float64       `yaml:"default_rate" env-default:"26.5"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env-default:"10s"`
}

// Gateway настройки шлюза исходящих сообщений (внешний транспорт WhatsApp).
type Gateway struct {
	SendURL string        `yaml:"send_url" env:"GATEWAY_SEND_URL"`
	Token   string        `yaml:"token" env:"GATEWAY_TOKEN"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
