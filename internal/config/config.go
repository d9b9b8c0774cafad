// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitConnection        `yaml:"rabbit_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Telegram                `yaml:"telegram"`
	CryptoPay               `yaml:"crypto_pay"`
	Payment                 `yaml:"payment"`
	Referral                `yaml:"referral"`
}

// HTTPServer структура для настройки административного HTTP-сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// Пароль администратора хранится bcrypt-хешем.
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitConnection структура для настройки подключения к RabbitMQ
type RabbitConnection struct {
	AddressRabbit string        `yaml:"addressrabbit"`
	Retries       int           `yaml:"retries" env-default:"5"`
	RetryDelay    time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// Telegram структура с настройками бота и группы клуба
type Telegram struct {
	BotToken  string  `yaml:"bot_token"`
	AdminIDs  []int64 `yaml:"admin_ids"`
	GroupID   int64   `yaml:"group_id"`
	ChannelID int64   `yaml:"channel_id"`
}

// CryptoPay структура с настройками Crypto Pay API.
// Курсы активов статические: точность конвертации здесь не критична.
type CryptoPay struct {
	APIToken     string             `yaml:"api_token"`
	Testnet      bool               `yaml:"testnet"`
	PollInterval time.Duration      `yaml:"poll_interval" env-default:"5m"`
	AssetRates   map[string]float64 `yaml:"asset_rates"`
	RubPerUSD    float64            `yaml:"rub_per_usd" env-default:"75"`
}

// Payment структура с ценами продуктов в рублях
type Payment struct {
	ClubPrice         int `yaml:"club_price" env-default:"1000"`
	VietnamTourPrice  int `yaml:"vietnam_tour_price" env-default:"1000"`
	ConsultationPrice int `yaml:"consultation_price" env-default:"2000"`
	ClubDays          int `yaml:"club_days" env-default:"30"`
}

// Referral структура с настройками реферальной программы
type Referral struct {
	PointsPerReferral int `yaml:"points_per_referral" env-default:"1000"`
	FreeDays          int `yaml:"free_days" env-default:"7"`
}

// MustLoad функция для загрузки конфига, путь берется из переменной CONFIG_PATH
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
	if cfg.AssetRates == nil {
		cfg.AssetRates = map[string]float64{
			"BTC":  60000,
			"ETH":  30000,
			"USDT": 1,
		}
	}
	return &cfg
}
