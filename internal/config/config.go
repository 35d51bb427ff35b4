package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken    string `mapstructure:"TELEGRAM_TOKEN"`
	APIBaseURL       string `mapstructure:"API_BASE_URL"`
	DBDSN            string `mapstructure:"DB_DSN"`
	Environment      string `mapstructure:"ENV"`
	PromptPayAccount string `mapstructure:"PROMPTPAY_ACCOUNT"`
	DepositAmount    int    `mapstructure:"DEPOSIT_AMOUNT"`
}

func LoadConfig() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	// Читаем напрямую из переменных окружения (после godotenv.Load они там)
	cfg := &Config{
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		APIBaseURL:       os.Getenv("API_BASE_URL"),
		DBDSN:            os.Getenv("DB_DSN"),
		Environment:      os.Getenv("ENV"),
		PromptPayAccount: os.Getenv("PROMPTPAY_ACCOUNT"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:3001"
	}

	// Сумма депозита за бронирование (в батах)
	cfg.DepositAmount = 200
	if raw := os.Getenv("DEPOSIT_AMOUNT"); raw != "" {
		amount, err := strconv.Atoi(raw)
		if err != nil || amount <= 0 {
			return nil, fmt.Errorf("DEPOSIT_AMOUNT must be a positive integer, got %q", raw)
		}
		cfg.DepositAmount = amount
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.PromptPayAccount == "" {
		return nil, fmt.Errorf("PROMPTPAY_ACCOUNT is required but not set")
	}

	log.Printf("Config loaded\n")

	return cfg, nil
}
