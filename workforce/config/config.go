package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Port int `env:"PORT" envDefault:"8000"`

	DatabaseUri string `env:"DATABASE_URI,required"`

	JwtSecret   string        `env:"JWT_SECRET,required"`
	TokenExpiry time.Duration `env:"TOKEN_EXPIRY" envDefault:"12h"`

	CatalogPath string `env:"CATALOG_PATH" envDefault:"catalog.yaml"`

	LogDir        string        `env:"LOG_DIR" envDefault:"logs"`
	AllowedOrigin string        `env:"ALLOWED_ORIGIN" envDefault:"*"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"15m"`

	// Bootstrap values for the first company and its admin, only applied when
	// the database has no companies.
	BootstrapCompany       string `env:"BOOTSTRAP_COMPANY"`
	BootstrapAdminEmpId    string `env:"BOOTSTRAP_ADMIN_EMP_ID" envDefault:"admin"`
	BootstrapAdminName     string `env:"BOOTSTRAP_ADMIN_NAME" envDefault:"Administrator"`
	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}

	if cfg.BootstrapCompany != "" && (cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "") {
		return cfg, fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set when BOOTSTRAP_COMPANY is set")
	}

	return cfg, nil
}

// PostgresDsn converts a postgres:// uri into the key/value dsn form the gorm
// driver expects.
func (cfg *Config) PostgresDsn() (string, error) {
	parts, err := url.Parse(cfg.DatabaseUri)
	if err != nil {
		return "", fmt.Errorf("error parsing db uri: %w", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port()), nil
}
