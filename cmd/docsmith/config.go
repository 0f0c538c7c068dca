package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// appConfig is the top-level docsmith configuration. Values come from an
// optional YAML file (CONFIG_FILE), with environment variables taking
// precedence field by field.
type appConfig struct {
	Port       string `yaml:"port"`
	DataDir    string `yaml:"data_dir"`
	RegistryDB string `yaml:"registry_db"`
	EventsDB   string `yaml:"events_db"`
	LogLevel   string `yaml:"log_level"`

	MCP mcpConfig `yaml:"mcp"`
}

// mcpConfig selects the MCP transport.
type mcpConfig struct {
	Transport string `yaml:"transport"` // stdio | quic
	QUICAddr  string `yaml:"quic_addr"`
	TLSCert   string `yaml:"tls_cert"`
	TLSKey    string `yaml:"tls_key"`
}

func loadConfig() (*appConfig, error) {
	var cfg appConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	overlay(&cfg.Port, "PORT")
	overlay(&cfg.DataDir, "DATA_DIR")
	overlay(&cfg.RegistryDB, "REGISTRY_DB")
	overlay(&cfg.EventsDB, "EVENTS_DB")
	overlay(&cfg.LogLevel, "LOG_LEVEL")
	overlay(&cfg.MCP.Transport, "MCP_TRANSPORT")
	overlay(&cfg.MCP.QUICAddr, "MCP_QUIC_ADDR")
	overlay(&cfg.MCP.TLSCert, "TLS_CERT")
	overlay(&cfg.MCP.TLSKey, "TLS_KEY")

	cfg.applyDefaults()
	return &cfg, nil
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *appConfig) applyDefaults() {
	if c.Port == "" {
		c.Port = "8086"
	}
	if c.DataDir == "" {
		c.DataDir = "data/templates"
	}
	if c.RegistryDB == "" {
		c.RegistryDB = "db/registry.db"
	}
	if c.EventsDB == "" {
		c.EventsDB = "db/events.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MCP.Transport == "" {
		c.MCP.Transport = "stdio"
	}
	if c.MCP.QUICAddr == "" {
		c.MCP.QUICAddr = ":9444"
	}
}
