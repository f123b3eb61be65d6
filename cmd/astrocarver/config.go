package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Asteroidea-tn/astrocarver/astrocrypt"
	"github.com/Asteroidea-tn/astrocarver/encrypt"
	"github.com/Asteroidea-tn/astrocarver/pkg/astrocapture"
	"github.com/Asteroidea-tn/astrocarver/pkg/astroenv"
	"github.com/Asteroidea-tn/astrocarver/pkg/astroenvelope"
	"github.com/Asteroidea-tn/astrocarver/pkg/astrolog"
	"github.com/Asteroidea-tn/astrocarver/pkg/astronotify"
	"github.com/Asteroidea-tn/astrocarver/pkg/astrosend"
)

// Config is read from the environment and an optional .env file.
type Config struct {
	SecretKey string `env:"ASTRO_SECRET_KEY,"`

	Log struct {
		Level       string `env:"LOG_LEVEL,info"`
		ToFile      bool   `env:"LOG_TO_FILE,false"`
		Dir         string `env:"LOG_DIR,./logs"`
		FileName    string `env:"LOG_FILE_NAME,astrocarver"`
		Formatted   bool   `env:"LOG_FORMATTED,true"`
		MaxFileSize int    `env:"LOG_MAX_FILE_SIZE,10"`
		MaxLogFiles int    `env:"LOG_MAX_FILES,7"`
	}

	Capture struct {
		ID          string        `env:"CAPTURE_ID,cam1"`
		Source      string        `env:"CAPTURE_SOURCE,/dev/video1"`
		Width       int           `env:"CAPTURE_WIDTH,640"`
		Height      int           `env:"CAPTURE_HEIGHT,360"`
		FPS         int           `env:"CAPTURE_FPS,30"`
		Timeout     time.Duration `env:"CAPTURE_TIMEOUT,10s"`
		Crop        string        `env:"CAPTURE_CROP,"`
		LockPath    string        `env:"CAPTURE_LOCK_PATH,"`
		SnapshotDir string        `env:"CAPTURE_SNAPSHOT_DIR,"`
	}

	Encode struct {
		Quality   int `env:"ENCODE_QUALITY,90"`
		MaxWidth  int `env:"ENCODE_MAX_WIDTH,0"`
		MaxHeight int `env:"ENCODE_MAX_HEIGHT,0"`
	}

	Pipeline struct {
		Workers int `env:"PIPELINE_WORKERS,2"`
		Backlog int `env:"PIPELINE_BACKLOG,16"`
	}

	Send struct {
		Timeout            time.Duration `env:"SEND_TIMEOUT,30s"`
		InsecureSkipVerify bool          `env:"SEND_INSECURE_SKIP_VERIFY,false"`
		Token              string        `env:"SEND_TOKEN," encrypt:"true"`
	}

	SMTP struct {
		Host     string   `env:"SMTP_HOST,"`
		Port     int      `env:"SMTP_PORT,587"`
		User     string   `env:"SMTP_USER,"`
		Password string   `env:"SMTP_PASSWORD," encrypt:"true"`
		From     string   `env:"NOTIFY_FROM,"`
		To       []string `env:"NOTIFY_TO,"`
	}
}

// loadConfig reads the configuration and decrypts sealed secrets when a key is set.
func loadConfig(files ...string) (*Config, error) {
	var cfg Config
	if err := astroenv.Load(&cfg, files...); err != nil {
		return nil, err
	}

	if cfg.SecretKey == "" {
		if astrocrypt.HasEncryptedFields(&cfg) {
			log.Warn().Msg("ASTRO_SECRET_KEY is not set, SEND_TOKEN and SMTP_PASSWORD are used as plaintext")
		}
	} else {
		svc, err := encrypt.NewServiceFromEnvKey(cfg.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("ASTRO_SECRET_KEY: %w", err)
		}
		if err := astrocrypt.DecryptStruct(svc, &cfg); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}
	return &cfg, nil
}

func (c *Config) loggerConfig() astrolog.Config {
	return astrolog.Config{
		AppName:     "astrocarver",
		LogLevel:    c.Log.Level,
		LogToFile:   c.Log.ToFile,
		LogDir:      c.Log.Dir,
		LogFileName: c.Log.FileName,
		Formatted:   c.Log.Formatted,
		MaxFileSize: c.Log.MaxFileSize,
		MaxLogFiles: c.Log.MaxLogFiles,
	}
}

func (c *Config) captureConfig() (astrocapture.Config, error) {
	crop, err := astrocapture.ParsePoints(c.Capture.Crop)
	if err != nil {
		return astrocapture.Config{}, fmt.Errorf("CAPTURE_CROP: %w", err)
	}
	return astrocapture.Config{
		ID:       c.Capture.ID,
		Source:   c.Capture.Source,
		Width:    c.Capture.Width,
		Height:   c.Capture.Height,
		FPS:      c.Capture.FPS,
		Timeout:  c.Capture.Timeout,
		Crop:     crop,
		LockPath: c.Capture.LockPath,
	}, nil
}

func (c *Config) encoder() astroenvelope.Encoder {
	return astroenvelope.Encoder{
		Quality:   c.Encode.Quality,
		MaxWidth:  c.Encode.MaxWidth,
		MaxHeight: c.Encode.MaxHeight,
	}
}

func (c *Config) sendConfig(url string) astrosend.Config {
	return astrosend.Config{
		URL:                url,
		Token:              c.Send.Token,
		Timeout:            c.Send.Timeout,
		InsecureSkipVerify: c.Send.InsecureSkipVerify,
	}
}

func (c *Config) notifyConfig() astronotify.Config {
	return astronotify.Config{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		User:     c.SMTP.User,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		To:       c.SMTP.To,
	}
}
