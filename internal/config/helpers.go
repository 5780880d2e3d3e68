package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDirectories creates every stage directory of the data layout
func (c *Config) EnsureDirectories() error {
	for _, dir := range c.Data.StageDirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// StageDirs returns the resolved stage directories
func (c *DataConfig) StageDirs() []string {
	return []string{
		c.Raw(), c.Interim(), c.Processed(), c.Engineered(),
		c.Split(), c.Forecast(), c.Models(), c.Graphs(),
	}
}

// resolve joins dir onto BaseDir unless it is absolute
func (c *DataConfig) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.BaseDir, dir)
}

func (c *DataConfig) Raw() string        { return c.resolve(c.RawDir) }
func (c *DataConfig) Interim() string    { return c.resolve(c.InterimDir) }
func (c *DataConfig) Processed() string  { return c.resolve(c.ProcessedDir) }
func (c *DataConfig) Engineered() string { return c.resolve(c.EngineeredDir) }
func (c *DataConfig) Split() string      { return c.resolve(c.SplitDir) }
func (c *DataConfig) Forecast() string   { return c.resolve(c.ForecastDir) }
func (c *DataConfig) Models() string     { return c.resolve(c.ModelsDir) }
func (c *DataConfig) Graphs() string     { return c.resolve(c.GraphsDir) }

// ItemsPath returns the raw item list path
func (c *DataConfig) ItemsPath() string {
	return filepath.Join(c.Raw(), c.ItemsFile)
}

// StockPath returns the raw stock quantities path
func (c *DataConfig) StockPath() string {
	return filepath.Join(c.Raw(), c.StockFile)
}

// HistoryPath returns the resolved SQLite path
func (c *Config) HistoryPath() string {
	return c.Data.resolve(c.History.Path)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}
