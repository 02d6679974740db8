package vault

import (
	"context"
	"fmt"

	"mbhd-go/internal/config"
	"mbhd-go/internal/mbhd"
)

// NewTargetFromConfig creates the cloud backup target described by cfg.
// It returns nil with no error when no cloud target is configured.
func NewTargetFromConfig(cfg config.CloudConfig, fsmgr mbhd.FilesystemManager) (mbhd.Target, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryTarget("cloud"), nil
	case "s3":
		t, err := NewS3Target(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem cloud target requires dir to be set")
		}
		return NewFileSystemTarget("cloud", cfg.Dir, fsmgr), nil
	default:
		return nil, fmt.Errorf("unknown cloud target type: %s", cfg.Type)
	}
}
