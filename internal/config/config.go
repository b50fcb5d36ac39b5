package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	MongoURI       string
	MongoDatabase  string
	// PublicURL is the externally reachable base URL used to build file links.
	PublicURL string
	LogLevel  zapcore.Level
}

// Params holds the raw, unvalidated settings collected from flags and the
// environment.
type Params struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     string
	AllowedOrigins []string
	MongoURI       string
	MongoDatabase  string
	PublicURL      string
	LogLevel       string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("signing secret is empty")
	}
	return key, nil
}

func NewConfig(p Params) (*Config, error) {
	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if p.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if p.SigningKey == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if p.MongoURI == "" {
		return nil, fmt.Errorf("mongo URI cannot be empty")
	}
	if p.MongoDatabase == "" {
		return nil, fmt.Errorf("mongo database cannot be empty")
	}

	signingKey, err := decodeSigningSecret(p.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	publicURL := strings.TrimSuffix(p.PublicURL, "/")
	if publicURL == "" {
		publicURL = "http://" + p.ServerAddr
	}
	if _, err := url.ParseRequestURI(publicURL); err != nil {
		return nil, fmt.Errorf("parse public url: %w", err)
	}

	level := zapcore.InfoLevel
	if p.LogLevel != "" {
		if err := level.Set(p.LogLevel); err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
	}

	return &Config{
		DatabaseDSN:    p.DatabaseDSN,
		ServerAddr:     p.ServerAddr,
		SigningKey:     signingKey,
		AllowedOrigins: p.AllowedOrigins,
		MongoURI:       p.MongoURI,
		MongoDatabase:  p.MongoDatabase,
		PublicURL:      publicURL,
		LogLevel:       level,
	}, nil
}
