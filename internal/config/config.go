// Package config loads the service configuration from YAML over a set of
// working defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	FFmpeg struct {
		FFmpegPath  string `yaml:"ffmpeg_path"`
		FFprobePath string `yaml:"ffprobe_path"`
		FontFile    string `yaml:"font_file"`
	} `yaml:"ffmpeg"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Storage struct {
		TempDir     string `yaml:"temp_dir"`
		OutputDir   string `yaml:"output_dir"`
		DownloadDir string `yaml:"download_dir"`
		Database    string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Detector struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"detector"`

	Remote struct {
		Enabled             bool   `yaml:"enabled"`
		TriggerURL          string `yaml:"trigger_url"`
		PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
		MaxPollAttempts     int    `yaml:"max_poll_attempts"`
	} `yaml:"remote"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.FFmpeg.FFmpegPath = "ffmpeg"
	cfg.FFmpeg.FFprobePath = "ffprobe"
	cfg.Workers.Count = 2
	cfg.Storage.TempDir = "temp"
	cfg.Storage.OutputDir = "outputs"
	cfg.Storage.DownloadDir = "downloads"
	cfg.Storage.Database = "jobs.db"
	cfg.Cleanup.IntervalMinutes = 30
	cfg.Cleanup.MaxAgeHours = 12
	cfg.Remote.PollIntervalSeconds = 5
	cfg.Remote.MaxPollAttempts = 60
	cfg.GoogleDrive.FolderName = "VideoProcessing"
	cfg.Limits.MaxFileSizeMB = 500
	return cfg
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %v", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %v", err)
	}
	return cfg, nil
}
