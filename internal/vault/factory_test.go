package vault

import (
	"testing"

	"mbhd-go/internal/config"
	"mbhd-go/internal/fs"
)

func TestNewTargetFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CloudConfig
		wantErr bool
		wantNil bool
	}{
		{
			name:    "no cloud target",
			cfg:     config.CloudConfig{},
			wantNil: true,
		},
		{
			name: "memory target",
			cfg:  config.CloudConfig{Type: "memory"},
		},
		{
			name: "filesystem target",
			cfg:  config.CloudConfig{Type: "filesystem", Dir: "/tmp/cloud"},
		},
		{
			name:    "filesystem target without dir",
			cfg:     config.CloudConfig{Type: "filesystem"},
			wantErr: true,
			wantNil: true,
		},
		{
			name:    "s3 target without bucket",
			cfg:     config.CloudConfig{Type: "s3"},
			wantErr: true,
			wantNil: true,
		},
		{
			name:    "unknown target type",
			cfg:     config.CloudConfig{Type: "unknown"},
			wantErr: true,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTargetFromConfig(tt.cfg, fs.NewOSFilesystemManager(""))

			if (err != nil) != tt.wantErr {
				t.Errorf("NewTargetFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantNil {
				t.Errorf("NewTargetFromConfig() = %v, wantNil %v", got, tt.wantNil)
			}
		})
	}
}
