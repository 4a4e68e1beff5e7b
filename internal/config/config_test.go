package config

import (
	"reflect"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		APIToken:      "token",
		PlayerTags:    []string{"AAA", "BBB", "CCC"},
		RateLimitRPM:  10,
		PollInterval:  30 * time.Minute,
		KFactor:       32,
		InitialRating: 1200,
		DBPath:        "test.db",
		ServerPort:    "8080",
	}
}

func TestParseTags(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"plain", "AAA,BBB", []string{"AAA", "BBB"}},
		{"hash prefixes", "#AAA,#BBB", []string{"AAA", "BBB"}},
		{"whitespace", " #AAA , BBB ,  CCC", []string{"AAA", "BBB", "CCC"}},
		{"empty entries", "AAA,,BBB,", []string{"AAA", "BBB"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseTags(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("parseTags(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.APIToken = "" }},
		{"single tag", func(c *Config) { c.PlayerTags = []string{"AAA"} }},
		{"no tags", func(c *Config) { c.PlayerTags = nil }},
		{"zero rate limit", func(c *Config) { c.RateLimitRPM = 0 }},
		{"sub-minute poll", func(c *Config) { c.PollInterval = 30 * time.Second }},
		{"zero k factor", func(c *Config) { c.KFactor = 0 }},
		{"proxy without url", func(c *Config) { c.UseProxy = true; c.ProxyURL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestBaseURL(t *testing.T) {
	cfg := validConfig()
	if got := cfg.BaseURL(); got != "https://api.clashroyale.com/v1" {
		t.Errorf("direct base url = %s", got)
	}

	cfg.UseProxy = true
	cfg.ProxyURL = "https://proxy.royaleapi.dev/v1"
	if got := cfg.BaseURL(); got != "https://proxy.royaleapi.dev/v1" {
		t.Errorf("proxied base url = %s", got)
	}
}
