package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// PublicURL fuerza el issuer anunciado en metadata. Si está vacío se
		// deriva del request (X-Forwarded-Proto/Host detrás del proxy).
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinIdleConns    int    `yaml:"min_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Redis struct {
		// Addr vacío deshabilita rate limiting distribuido.
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	IdP struct {
		AuthorizeURL string   `yaml:"authorize_url"`
		TokenURL     string   `yaml:"token_url"`
		VerifyURL    string   `yaml:"verify_url"`
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		Scopes       []string `yaml:"scopes"`
	} `yaml:"idp"`

	Platform struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"platform"`

	Security struct {
		// ServerSecret: base64(>=16 bytes). De acá se derivan la clave HMAC del
		// state y la clave AES de credenciales (dominios separados, ver keys).
		ServerSecret string `yaml:"server_secret"`
		// RequireRegistration: true rechaza authorize de clientes no registrados.
		// false (default) los tolera con warning, por compat con callers viejos.
		RequireRegistration bool   `yaml:"require_registration"`
		StateTTL            string `yaml:"state_ttl"`
	} `yaml:"security"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	Sweep struct {
		Interval string `yaml:"interval"`
	} `yaml:"sweep"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Security.StateTTL == "" {
		c.Security.StateTTL = "10m"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Sweep.Interval == "" {
		c.Sweep.Interval = "5m"
	}
	if len(c.IdP.Scopes) == 0 {
		c.IdP.Scopes = []string{"openid", "email"}
	}

	c.applyEnvOverrides()

	// validate string durations
	for _, d := range []string{
		c.Storage.Postgres.ConnMaxLifetime, c.Security.StateTTL, c.Rate.Window, c.Sweep.Interval,
	} {
		if d != "" {
			if _, err := time.ParseDuration(d); err != nil {
				return nil, err
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate chequea lo mínimo para arrancar. El secreto es obligatorio siempre:
// sin él no hay state firmado ni cifrado de credenciales.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Security.ServerSecret) == "" {
		return fmt.Errorf("security.server_secret (o SERVER_SECRET) es obligatorio")
	}
	switch c.Storage.Driver {
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn es obligatorio con driver=postgres")
		}
	case "memory":
		// dev/tests: nada que validar
	default:
		return fmt.Errorf("storage.driver desconocido: %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.IdP.AuthorizeURL) == "" {
		return fmt.Errorf("idp.authorize_url es obligatorio")
	}
	if strings.TrimSpace(c.IdP.VerifyURL) == "" {
		return fmt.Errorf("idp.verify_url es obligatorio")
	}
	if strings.TrimSpace(c.Platform.BaseURL) == "" {
		return fmt.Errorf("platform.base_url es obligatorio")
	}
	return nil
}

// StateTTLDur retorna el TTL del state firmado ya parseado.
func (c *Config) StateTTLDur() time.Duration {
	d, err := time.ParseDuration(c.Security.StateTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// SweepIntervalDur retorna el intervalo del sweeper ya parseado.
func (c *Config) SweepIntervalDur() time.Duration {
	d, err := time.ParseDuration(c.Sweep.Interval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// RateWindowDur retorna la ventana del rate limiter ya parseada.
func (c *Config) RateWindowDur() time.Duration {
	d, err := time.ParseDuration(c.Rate.Window)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_PUBLIC_URL"); ok {
		c.Server.PublicURL = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_IDLE_CONNS"); ok {
		c.Storage.Postgres.MinIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	if v, ok := getEnvStr("IDP_AUTHORIZE_URL"); ok {
		c.IdP.AuthorizeURL = v
	}
	if v, ok := getEnvStr("IDP_TOKEN_URL"); ok {
		c.IdP.TokenURL = v
	}
	if v, ok := getEnvStr("IDP_VERIFY_URL"); ok {
		c.IdP.VerifyURL = v
	}
	if v, ok := getEnvStr("IDP_CLIENT_ID"); ok {
		c.IdP.ClientID = v
	}
	if v, ok := getEnvStr("IDP_CLIENT_SECRET"); ok {
		c.IdP.ClientSecret = v
	}
	if v, ok := getEnvCSV("IDP_SCOPES"); ok {
		c.IdP.Scopes = v
	}

	if v, ok := getEnvStr("PLATFORM_BASE_URL"); ok {
		c.Platform.BaseURL = v
	}
	if v, ok := getEnvStr("PLATFORM_API_KEY"); ok {
		c.Platform.APIKey = v
	}

	if v, ok := getEnvStr("SERVER_SECRET"); ok {
		c.Security.ServerSecret = v
	}
	if v, ok := getEnvBool("REQUIRE_REGISTRATION"); ok {
		c.Security.RequireRegistration = v
	}
	if v, ok := getEnvStr("STATE_TTL"); ok {
		c.Security.StateTTL = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}

	if v, ok := getEnvStr("SWEEP_INTERVAL"); ok {
		c.Sweep.Interval = v
	}
}

func getEnvStr(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

func getEnvInt(key string) (int, bool) {
	if v, ok := getEnvStr(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if v, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}
