package config

import (
	"time"
)

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"fxrate:pair:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Sources holds the settings shared by every rate source.
type Sources struct {
	Enabled          []string      `envconfig:"ENABLED" default:"icbc,exchangerate,visa,fixture"`
	RefreshInterval  time.Duration `envconfig:"REFRESH_INTERVAL" default:"30m"`
	ColdStartTimeout time.Duration `envconfig:"COLD_START_TIMEOUT" default:"10s"`
	QueryTimeout     time.Duration `envconfig:"QUERY_TIMEOUT" default:"10s"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	UserAgent        string        `envconfig:"USER_AGENT" default:"Mozilla/5.0 (compatible; fxrate/1.0)"`
	// Supported restricts bulk sources to quotes touching these currencies.
	Supported []string `envconfig:"SUPPORTED"`
}

type PairCache struct {
	Backend string        `envconfig:"BACKEND" default:"memory"`
	TTL     time.Duration `envconfig:"TTL" default:"30m"`
	Size    int           `envconfig:"SIZE" default:"500"`
}

type ICBC struct {
	URL string `envconfig:"URL" default:"http://papi.icbc.com.cn/exchanges/ns/getLatest"`
}

//revive:disable
type ExchangeRateApi struct {
	ApiKey string `envconfig:"API_KEY"`
	ApiUrl string `envconfig:"API_URL" default:"https://api.exchangerate-api.com/v4/latest"`
	Base   string `envconfig:"BASE" default:"USD"`
}

//revive:enable
type Visa struct {
	URL        string   `envconfig:"URL" default:"https://www.visa.com.hk/cmsapi/fx/rates"`
	Currencies []string `envconfig:"CURRENCIES" default:"USD,EUR,GBP,JPY,HKD,CNY,AUD,CAD,CHF,SGD,NZD,KRW,TWD,THB,MYR"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[fxrate]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env             string           `envconfig:"APP_ENV" default:"development"`
	Version         string           `envconfig:"APP_VERSION" default:"dev"`
	Server          *Server          `envconfig:"SERVER"`
	Log             *Log             `envconfig:"LOG"`
	RateLimit       *RateLimit       `envconfig:"RATE_LIMIT"`
	Sources         *Sources         `envconfig:"SOURCES"`
	PairCache       *PairCache       `envconfig:"PAIR_CACHE"`
	Redis           *Redis           `envconfig:"REDIS"`
	ICBC            *ICBC            `envconfig:"ICBC"`
	ExchangeRateApi *ExchangeRateApi `envconfig:"EXCHANGERATE"`
	Visa            *Visa            `envconfig:"VISA"`
}

// SourceEnabled reports whether the named source is listed in
// SOURCES_ENABLED.
func (a *App) SourceEnabled(name string) bool {
	for _, n := range a.Sources.Enabled {
		if n == name {
			return true
		}
	}
	return false
}
