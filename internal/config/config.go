package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"

	"github.com/marcus/pos/internal/models"
)

const configFile = ".pos/config.json"
const lockFile = ".pos/config.json.lock"

const (
	DefaultCurrency      = "GHS"
	DefaultViewMode      = models.ViewModeSystem
	DefaultLowStockAlert = 5
)

// Load reads the shop config from disk
func Load(baseDir string) (*models.Config, error) {
	configPath := filepath.Join(baseDir, configFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.Config{}, nil
		}
		return nil, err
	}

	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk using atomic write (temp file + rename)
func Save(baseDir string, cfg *models.Config) error {
	configPath := filepath.Join(baseDir, configFile)

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: temp file in same dir, then rename
	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, configPath)
}

// withConfigLock serializes access to config.json using flock
func withConfigLock(baseDir string, fn func() error) error {
	lockPath := filepath.Join(baseDir, lockFile)

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}

// GetViewMode returns the saved view mode, defaulting to system
func GetViewMode(baseDir string) (string, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return DefaultViewMode, err
	}
	if !models.IsValidViewMode(cfg.ViewMode) {
		return DefaultViewMode, nil
	}
	return cfg.ViewMode, nil
}

// SetViewMode persists the view mode
func SetViewMode(baseDir, mode string) error {
	if !models.IsValidViewMode(mode) {
		return os.ErrInvalid
	}
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		cfg.ViewMode = mode
		return Save(baseDir, cfg)
	})
}

// GetCurrency returns the configured currency code, defaulting to GHS
func GetCurrency(baseDir string) string {
	cfg, err := Load(baseDir)
	if err != nil || cfg.Currency == "" {
		return DefaultCurrency
	}
	return cfg.Currency
}

// GetLowStockAlert returns the default low-stock threshold for new products
func GetLowStockAlert(baseDir string) int {
	cfg, err := Load(baseDir)
	if err != nil || cfg.LowStockAlert <= 0 {
		return DefaultLowStockAlert
	}
	return cfg.LowStockAlert
}

// SetShopInfo persists shop name and currency together
func SetShopInfo(baseDir, name, currency string) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		if name != "" {
			cfg.ShopName = name
		}
		if currency != "" {
			cfg.Currency = currency
		}
		return Save(baseDir, cfg)
	})
}

// GetAdminID returns the admin identity recorded in the shop config
func GetAdminID(baseDir string) (string, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return "", err
	}
	return cfg.AdminID, nil
}

// SetAdminID persists the acting admin identity
func SetAdminID(baseDir, adminID string) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		cfg.AdminID = adminID
		return Save(baseDir, cfg)
	})
}
