package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/prepdeck/interview-coach/internal/blob"
	"github.com/prepdeck/interview-coach/internal/events"
	"github.com/prepdeck/interview-coach/internal/feedback"
	"github.com/prepdeck/interview-coach/internal/httpapi"
	"github.com/prepdeck/interview-coach/internal/interview"
	"github.com/prepdeck/interview-coach/internal/media"
	"github.com/prepdeck/interview-coach/internal/metrics"
	"github.com/prepdeck/interview-coach/internal/pipeline"
	"github.com/prepdeck/interview-coach/internal/transcribe"
)

type Config struct {
	Server struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Storage struct {
		Backend  string `yaml:"backend"` // "local" or "s3"
		LocalDir string `yaml:"local_dir"`
		Bucket   string `yaml:"bucket"`
		Region   string `yaml:"region"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"storage"`
	Speech struct {
		Endpoint        string `yaml:"endpoint"`
		Token           string `yaml:"token"`
		Language        string `yaml:"language"`
		JobTimeoutSec   int    `yaml:"job_timeout_seconds"`
		PollIntervalSec int    `yaml:"poll_interval_seconds"`
	} `yaml:"speech"`
	OpenAI struct {
		APIKey    string `yaml:"api_key"`
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"openai"`
	Events struct {
		BufferSize int `yaml:"buffer_size"`
	} `yaml:"events"`
}

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	config := &Config{}
	if err := loadConfig(configFile, config); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Record store and per-interview locks share one Redis client. Without a
	// configured address everything runs in-process, which is enough for a
	// single instance.
	var (
		records interview.Store
		locks   pipeline.Locker
	)
	if config.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		records = interview.NewRedisStore(client, "interviews")
		locks = pipeline.NewRedisLocker(client, "interviews", 0)
	} else {
		log.Println("No Redis address configured, using in-memory store")
		records = interview.NewMemoryStore()
		locks = pipeline.NewMemoryLocker()
	}

	blobs, err := newBlobStore(config)
	if err != nil {
		log.Fatalf("Failed to create blob store: %v", err)
	}

	recognizer := transcribe.NewGoogleClient(transcribe.GoogleConfig{
		Endpoint:     config.Speech.Endpoint,
		Token:        config.Speech.Token,
		LanguageCode: config.Speech.Language,
		JobTimeout:   time.Duration(config.Speech.JobTimeoutSec) * time.Second,
		PollInterval: time.Duration(config.Speech.PollIntervalSec) * time.Second,
	})
	generator := feedback.NewGenerator(feedback.NewOpenAIClient(feedback.OpenAIConfig{
		APIKey:  config.OpenAI.APIKey,
		Model:   config.OpenAI.Model,
		BaseURL: config.OpenAI.BaseURL,
	}), config.OpenAI.MaxTokens)

	hub := events.NewHub(config.Events.BufferSize)
	stats := metrics.NewPipeline()

	p := pipeline.New(
		records,
		blobs,
		media.NewNormalizer(),
		recognizer,
		generator,
		locks,
		hub,
		stats,
		pipeline.Config{
			TranscribeTimeout: time.Duration(config.Speech.JobTimeoutSec) * time.Second,
		},
	)

	srv := httpapi.New(httpapi.Config{
		Host:           config.Server.Host,
		Port:           config.Server.Port,
		AllowedOrigins: config.Server.AllowedOrigins,
	}, p, records, hub, stats)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	srv.Stop()
}

func newBlobStore(config *Config) (blob.Store, error) {
	switch config.Storage.Backend {
	case "s3":
		awsSession, err := session.NewSession(&aws.Config{
			Region: aws.String(config.Storage.Region),
		})
		if err != nil {
			return nil, err
		}
		return blob.NewS3(awsSession, config.Storage.Bucket, config.Storage.Prefix), nil
	default:
		dir := config.Storage.LocalDir
		if dir == "" {
			dir = "data"
		}
		return blob.NewLocal(dir)
	}
}

func loadConfig(filename string, config *Config) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	return decoder.Decode(config)
}
