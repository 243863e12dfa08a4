package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/casbinkit/guard/examples/articles"
)

const envPrefix = "ARTICLESVC_"

type config struct {
	HTTPAddr  string `koanf:"http_addr"`
	DebugAddr string `koanf:"debug_addr"`
	LogLevel  string `koanf:"log_level"`

	Auth struct {
		// Mode is "jwt" or "basic".
		Mode     string        `koanf:"mode"`
		Secret   string        `koanf:"secret"`
		TokenTTL time.Duration `koanf:"token_ttl"`
		Cookie   string        `koanf:"cookie"`
		Realm    string        `koanf:"realm"`
	} `koanf:"auth"`

	Enforcer struct {
		// Mode is "file" or "sqlite".
		Mode     string `koanf:"mode"`
		Model    string `koanf:"model"`
		Policy   string `koanf:"policy"`
		Database string `koanf:"database"`
	} `koanf:"enforcer"`

	Users map[string]account `koanf:"users"`
}

type account struct {
	Password string `koanf:"password"`
	Role     string `koanf:"role"`
}

func defaultConfig() config {
	var c config
	c.HTTPAddr = ":8080"
	c.DebugAddr = ":8081"
	c.LogLevel = "info"
	c.Auth.Mode = "jwt"
	c.Auth.Secret = "change-me"
	c.Auth.TokenTTL = time.Hour
	c.Auth.Cookie = "access_token"
	c.Auth.Realm = "articles"
	c.Enforcer.Mode = "file"
	c.Enforcer.Model = "examples/articles/casbin/model.conf"
	c.Enforcer.Policy = "examples/articles/casbin/policy.csv"
	c.Enforcer.Database = "articles.db"
	c.Users = map[string]account{
		"alice":   {Password: "alice", Role: "admin"},
		"bob":     {Password: "bob", Role: "editor"},
		"charlie": {Password: "charlie", Role: "viewer"},
	}
	return c
}

// loadConfig layers the defaults, the optional YAML file at path and
// ARTICLESVC_* environment variables, in that order.
func loadConfig(path string) (config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return config{}, fmt.Errorf("load environment: %w", err)
	}

	var c config
	if err := k.Unmarshal("", &c); err != nil {
		return config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, c.validate()
}

// envKey maps ARTICLESVC_AUTH_TOKEN_TTL to auth.token_ttl and
// ARTICLESVC_HTTP_ADDR to http_addr.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range []string{"auth", "enforcer"} {
		if strings.HasPrefix(s, section+"_") {
			return section + "." + s[len(section)+1:]
		}
	}
	return s
}

func (c config) validate() error {
	switch c.Auth.Mode {
	case "jwt", "basic":
	default:
		return fmt.Errorf("auth.mode must be jwt or basic, got %q", c.Auth.Mode)
	}
	switch c.Enforcer.Mode {
	case "file", "sqlite":
	default:
		return fmt.Errorf("enforcer.mode must be file or sqlite, got %q", c.Enforcer.Mode)
	}
	if len(c.Users) == 0 {
		return fmt.Errorf("no users configured")
	}
	return nil
}

func (c config) accounts() articles.Accounts {
	accounts := make(articles.Accounts, len(c.Users))
	for name, u := range c.Users {
		accounts[name] = articles.Account{Password: u.Password, Role: u.Role}
	}
	return accounts
}
