package config

import (
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDomain     = "localhost:2333"
	defaultProtocol   = "http://"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "worldindex"
	defaultDBCharset  = "utf8mb4"
	defaultRedisURL   = "redis://localhost:6379/0"
	defaultStaticDir  = "static"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port int    `yaml:"port"`
	Env  string `yaml:"env"` // "development" | "production"

	// Domain and Protocol form the public base URL used in federation
	// identities, e.g. "https://" + "worldindex.example".
	Domain   string `yaml:"domain"`
	Protocol string `yaml:"protocol"`

	Database DatabaseConfig   `yaml:"database"`
	RedisURL string           `yaml:"redis_url"`
	Paths    PathsConfig      `yaml:"paths"`
	Admin    AdminConfig      `yaml:"admin"`
	Fed      FederationConfig `yaml:"federation"`

	AllowedOrigins   []string `yaml:"allowed_origins"`
	ShowAdultContent bool     `yaml:"show_adult_content"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

type PathsConfig struct {
	// Static is the on-disk asset root; materialized listing images go under
	// its images/ subdirectory and are served at /images.
	Static string `yaml:"static"`
}

type AdminConfig struct {
	// Password is the admin login secret, either plaintext or a bcrypt hash
	// (detected by the $2 prefix).
	Password string `yaml:"password"`
}

type FederationConfig struct {
	// QueueAll switches outgoing activity delivery from synchronous to the
	// redis-backed queue. The registry path requests sync either way; this is
	// the explicit selection policy for everything else.
	QueueAll bool `yaml:"queue_all"`
}

// Load reads and normalizes the YAML config at path. A missing file yields
// the defaults so a dev instance starts with zero setup.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultConfigPath:
		// defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *AppConfig) normalize() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = defaultEnv
	}
	if strings.TrimSpace(c.Domain) == "" {
		c.Domain = defaultDomain
	}
	if strings.TrimSpace(c.Protocol) == "" {
		c.Protocol = defaultProtocol
	}
	if !strings.HasSuffix(c.Protocol, "://") {
		c.Protocol = strings.TrimSuffix(c.Protocol, "/") + "://"
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		c.RedisURL = defaultRedisURL
	}
	if strings.TrimSpace(c.Paths.Static) == "" {
		c.Paths.Static = defaultStaticDir
	}
}

// IsDev reports whether the instance runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

// BaseURL returns the public base URL without a trailing slash.
func (c *AppConfig) BaseURL() string {
	return c.Protocol + strings.TrimSuffix(c.Domain, "/")
}

// DSNValue assembles the MySQL DSN from its parts unless given verbatim.
func (c *DatabaseConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := strings.TrimSpace(c.User)
	if user == "" {
		user = defaultDBUser
	}
	password := c.Password
	if password == "" {
		password = defaultDBPassword
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = defaultDBName
	}
	charset := strings.TrimSpace(c.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}

	params := neturl.Values{}
	params.Set("charset", charset)
	params.Set("parseTime", "True")
	params.Set("loc", "Local")

	return fmt.Sprintf("%s:%s@tcp(%s)/%s?%s",
		user, password,
		net.JoinHostPort(host, strconv.Itoa(port)),
		name, params.Encode())
}
