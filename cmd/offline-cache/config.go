package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Origin    string   `yaml:"origin"`
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	Version   string   `yaml:"version"`
	APIPrefix string   `yaml:"apiPrefix"`
	ShellPath string   `yaml:"shellPath"`
	SyncPath  string   `yaml:"syncPath"`
	Precache  []string `yaml:"precache"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
