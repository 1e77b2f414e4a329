package yaml

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Quarantine moves a corrupted file into baseDir/quarantine so a bad rule file
// cannot wedge the loader. The previous in-memory state stays in effect.
func Quarantine(baseDir, filePath string) error {
	quarantineDir := filepath.Join(baseDir, "quarantine")
	if err := os.MkdirAll(quarantineDir, 0755); err != nil {
		return fmt.Errorf("create quarantine dir: %w", err)
	}

	baseName := filepath.Base(filePath)
	timestamp := time.Now().Format("20060102T150405")
	quarantineName := fmt.Sprintf("%s.%s.corrupt", baseName, timestamp)
	quarantinePath := filepath.Join(quarantineDir, quarantineName)

	if err := os.Rename(filePath, quarantinePath); err != nil {
		return fmt.Errorf("move to quarantine: %w", err)
	}

	log.Printf("quarantined corrupted file: %s → %s", filePath, quarantinePath)
	return nil
}

// RestoreFromBackup replaces filePath with its .bak sibling, validating the
// backup first.
func RestoreFromBackup(filePath string) error {
	bakPath := filePath + ".bak"
	if _, err := os.Stat(bakPath); os.IsNotExist(err) {
		return fmt.Errorf("no backup file: %s", bakPath)
	}

	content, err := os.ReadFile(bakPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if err := validateYAML(content); err != nil {
		return fmt.Errorf("backup YAML is also corrupted: %w", err)
	}

	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}

	log.Printf("restored from backup: %s → %s", bakPath, filePath)
	return nil
}
