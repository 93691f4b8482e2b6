package config

import "github.com/spf13/viper"

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	Fines struct {
		DailyRateCents     int64 `mapstructure:"daily_rate_cents"`
		HoldThresholdCents int64 `mapstructure:"hold_threshold_cents"`
		PaymentDueDays     int   `mapstructure:"payment_due_days"`
	} `mapstructure:"fines"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("fines.daily_rate_cents", 50)
	v.SetDefault("fines.hold_threshold_cents", 2000)
	v.SetDefault("fines.payment_due_days", 14)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
