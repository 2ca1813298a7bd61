package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort   string `mapstructure:"HTTP_PORT"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	RedisAddr  string `mapstructure:"REDIS_ADDR"`
	AmqpURL    string `mapstructure:"AMQP_URL"`

	AccessSecret string `mapstructure:"ACCESS_SECRET"`

	StripeKey               string `mapstructure:"STRIPE_KEY"`
	StripeWebhookSecretLive string `mapstructure:"STRIPE_WEBHOOK_SECRET_LIVE"`
	StripeWebhookSecretDev  string `mapstructure:"STRIPE_WEBHOOK_SECRET_DEV"`
	StripeMonthlyPriceID    string `mapstructure:"STRIPE_MONTHLY_PRICE_ID"`
	StripeYearlyPriceID     string `mapstructure:"STRIPE_YEARLY_PRICE_ID"`

	UploadURL string `mapstructure:"UPLOAD_URL"`
	UploadKey string `mapstructure:"UPLOAD_KEY"`

	SendgridKey string `mapstructure:"SENDGRID_KEY"`
	SMTPEmail   string `mapstructure:"SMTP_EMAIL"`

	FrontendURL    string `mapstructure:"FRONTEND_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"` // через запятую
}

func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	// ВАЖНО: Явно биндим переменные, чтобы Viper их видел без файла
	viper.BindEnv("HTTP_PORT")
	viper.BindEnv("DB_HOST")
	viper.BindEnv("DB_PORT")
	viper.BindEnv("DB_USER")
	viper.BindEnv("DB_PASSWORD")
	viper.BindEnv("DB_NAME")
	viper.BindEnv("REDIS_ADDR")
	viper.BindEnv("AMQP_URL")
	viper.BindEnv("ACCESS_SECRET")
	viper.BindEnv("STRIPE_KEY")
	viper.BindEnv("STRIPE_WEBHOOK_SECRET_LIVE")
	viper.BindEnv("STRIPE_WEBHOOK_SECRET_DEV")
	viper.BindEnv("STRIPE_MONTHLY_PRICE_ID")
	viper.BindEnv("STRIPE_YEARLY_PRICE_ID")
	viper.BindEnv("UPLOAD_URL")
	viper.BindEnv("UPLOAD_KEY")
	viper.BindEnv("SENDGRID_KEY")
	viper.BindEnv("SMTP_EMAIL")
	viper.BindEnv("FRONTEND_URL")
	viper.BindEnv("ALLOWED_ORIGINS")

	// Пытаемся прочитать файл, но не умираем, если его нет
	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// Файла нет? Ну и ладно, работаем на ENV
	}

	err = viper.Unmarshal(&config)
	return
}

// StripeWebhookSecret выбирает секрет подписи вебхука по ключу API:
// live-ключ подписывается live-секретом, тестовый — dev-секретом.
func (c Config) StripeWebhookSecret() string {
	if strings.HasPrefix(c.StripeKey, "sk_live") {
		return c.StripeWebhookSecretLive
	}
	return c.StripeWebhookSecretDev
}

func (c Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return []string{c.FrontendURL}
	}
	return strings.Split(c.AllowedOrigins, ",")
}
