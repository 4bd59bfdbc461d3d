package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr              string
	DBUrl             string
	TokenSecret       string
	PaymentKeyID      string
	PaymentSecret     string
	BootstrapEmail    string
	BootstrapPassword string
	Debug             bool
}

// ParseFlags reads configuration from command line flags, falling back to
// environment variables. A .env file in the working directory is loaded first
// when present.
func ParseFlags() (cfg Config, err error) {
	godotenv.Load()

	var host string
	flag.StringVar(&host, "host", envOr("HOST", "0.0.0.0"), "listen host name")
	var port uint
	flag.UintVar(&port, "port", envUintOr("PORT", 8080), "listen port number")
	flag.StringVar(&cfg.DBUrl, "db-url", envOr("DB_URL", "sanghaforms.sqlite"), "path to SQLite3 DB file")
	flag.StringVar(&cfg.TokenSecret, "token-secret", os.Getenv("TOKEN_SECRET"), "secret key for session token signing")
	flag.StringVar(&cfg.PaymentKeyID, "payment-key-id", os.Getenv("PAYMENT_KEY_ID"), "payment gateway key id")
	flag.StringVar(&cfg.PaymentSecret, "payment-secret", os.Getenv("PAYMENT_SECRET"), "payment gateway signing secret")
	flag.StringVar(&cfg.BootstrapEmail, "bootstrap-admin-email", os.Getenv("BOOTSTRAP_ADMIN_EMAIL"), "email of the initial super admin")
	flag.StringVar(&cfg.BootstrapPassword, "bootstrap-admin-password", os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"), "password of the initial super admin")
	flag.BoolVar(&cfg.Debug, "debug", os.Getenv("DEBUG") == "true", "log at DEBUG level")
	flag.Parse()

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))

	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter -token-secret")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUintOr(key string, fallback uint) uint {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint(n)
		}
	}
	return fallback
}
