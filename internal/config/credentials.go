package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Credentials mirrors the YAML credentials file shared with other catalog tools:
//
//	user:
//	  username: someone
//	  password: secret
type Credentials struct {
	User struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"user"`
}

// LoadCredentials reads a YAML credentials file.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials
	data, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("read credentials: %w", err)
	}
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("parse credentials: %w", err)
	}
	return creds, nil
}
