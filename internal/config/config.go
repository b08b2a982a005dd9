package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/Lllllllleong/autoextract/internal/gcp"
)

// State backends for the entity, upload and mailbox snapshots.
const (
	BackendFirestore = "firestore"
	BackendFile      = "file"
	BackendMemory    = "memory"
)

type Config struct {
	ProjectID           string
	Region              string
	ModelName           string
	UploadBucket        string
	StateBackend        string
	FirestoreDatabase   string
	FirestoreCollection string
	DataDir             string
	GmailTopic          string
	GmailUser           string
	MaxUploadBytes      int64
	Port                string
	ExtractionURL       string
}

func LoadConfig() (Config, error) {
	cfg := Config{
		ProjectID:           gcp.GetEnv("PROJECT_ID", ""),
		Region:              gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ModelName:           gcp.GetEnv("GEMINI_MODEL", "gemini-1.5-pro"),
		UploadBucket:        gcp.GetEnv("UPLOAD_BUCKET", ""),
		StateBackend:        gcp.GetEnv("STATE_BACKEND", BackendFirestore),
		FirestoreDatabase:   gcp.GetEnv("FIRESTORE_DATABASE", ""),
		FirestoreCollection: gcp.GetEnv("FIRESTORE_COLLECTION", "autoextract-state"),
		DataDir:             gcp.GetEnv("DATA_DIR", "data"),
		GmailTopic:          gcp.GetEnv("GMAIL_TOPIC", ""),
		GmailUser:           gcp.GetEnv("GMAIL_USER", "me"),
		Port:                gcp.GetEnv("PORT", "8080"),
		ExtractionURL:       gcp.GetEnv("EXTRACTION_URL", ""),
	}

	var missing []error
	if cfg.ProjectID == "" {
		missing = append(missing, errors.New("PROJECT_ID is required"))
	}
	// A remote extraction API owns the bucket.
	if cfg.UploadBucket == "" && cfg.ExtractionURL == "" {
		missing = append(missing, errors.New("UPLOAD_BUCKET is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return Config{}, err
	}

	switch cfg.StateBackend {
	case BackendFirestore, BackendFile, BackendMemory:
	default:
		return Config{}, fmt.Errorf("unknown STATE_BACKEND %q", cfg.StateBackend)
	}

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 20)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := gcp.GetEnv(key, "")
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseInt(value, 10, 64)
}
