package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.MaxDistanceCm == nil || *cfg.MaxDistanceCm != 150 {
		t.Errorf("Expected MaxDistanceCm 150, got %v", cfg.MaxDistanceCm)
	}
	if cfg.ScanMode == nil || *cfg.ScanMode != "connected" {
		t.Errorf("Expected ScanMode 'connected', got %v", cfg.ScanMode)
	}
	if cfg.RotationTimeout == nil || *cfg.RotationTimeout != "500ms" {
		t.Errorf("Expected RotationTimeout '500ms', got %v", cfg.RotationTimeout)
	}
	if cfg.FirstChannel == nil || *cfg.FirstChannel != 1 {
		t.Errorf("Expected FirstChannel 1, got %v", cfg.FirstChannel)
	}
	if cfg.LastChannel == nil || *cfg.LastChannel != 15 {
		t.Errorf("Expected LastChannel 15, got %v", cfg.LastChannel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultTuningConfig() does not validate: %v", err)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "max_distance_cm": 200,
  "max_cluster_distance_cm": 35.5,
  "min_points_per_cluster": 4,
  "scan_mode": "density",
  "match_mode": "optimal",
  "root_note": 60,
  "scale_type": "minor",
  "rotation_timeout": "250ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMaxDistanceCm() != 200 {
		t.Errorf("GetMaxDistanceCm() = %f, want 200", cfg.GetMaxDistanceCm())
	}
	if cfg.GetMaxClusterDistanceCm() != 35.5 {
		t.Errorf("GetMaxClusterDistanceCm() = %f, want 35.5", cfg.GetMaxClusterDistanceCm())
	}
	if cfg.GetMinPointsPerCluster() != 4 {
		t.Errorf("GetMinPointsPerCluster() = %d, want 4", cfg.GetMinPointsPerCluster())
	}
	if cfg.GetScanMode() != "density" {
		t.Errorf("GetScanMode() = %q, want density", cfg.GetScanMode())
	}
	if cfg.GetMatchMode() != "optimal" {
		t.Errorf("GetMatchMode() = %q, want optimal", cfg.GetMatchMode())
	}
	if cfg.GetRootNote() != 60 {
		t.Errorf("GetRootNote() = %d, want 60", cfg.GetRootNote())
	}
	if cfg.GetScaleType() != "minor" {
		t.Errorf("GetScaleType() = %q, want minor", cfg.GetScaleType())
	}
	if cfg.GetRotationTimeout() != 250*time.Millisecond {
		t.Errorf("GetRotationTimeout() = %v, want 250ms", cfg.GetRotationTimeout())
	}
}

func TestLoadTuningConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	testYAML := `
max_distance_cm: 120
scale_type: major
notes_per_rotation: 14
first_channel: 2
last_channel: 9
`
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetMaxDistanceCm() != 120 {
		t.Errorf("GetMaxDistanceCm() = %f, want 120", cfg.GetMaxDistanceCm())
	}
	if cfg.GetScaleType() != "major" {
		t.Errorf("GetScaleType() = %q, want major", cfg.GetScaleType())
	}
	if cfg.GetNotesPerRotation() != 14 {
		t.Errorf("GetNotesPerRotation() = %d, want 14", cfg.GetNotesPerRotation())
	}
	if cfg.GetFirstChannel() != 2 || cfg.GetLastChannel() != 9 {
		t.Errorf("channels = %d..%d, want 2..9", cfg.GetFirstChannel(), cfg.GetLastChannel())
	}
	// Untouched fields keep their defaults.
	if cfg.GetMatchMode() != "first" {
		t.Errorf("GetMatchMode() = %q, want first", cfg.GetMatchMode())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "max_distance_cm": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")

	if err := os.WriteFile(configPath, []byte("scale_type: lydian\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected validation error for unknown scale, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultTuningConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name:    "zero max distance",
			cfg:     &TuningConfig{MaxDistanceCm: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "negative cluster distance",
			cfg:     &TuningConfig{MaxClusterDistanceCm: ptrFloat64(-5)},
			wantErr: true,
		},
		{
			name:    "zero min points",
			cfg:     &TuningConfig{MinPointsPerCluster: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "unknown scan mode",
			cfg:     &TuningConfig{ScanMode: ptrString("kmeans")},
			wantErr: true,
		},
		{
			name:    "scan mode alias",
			cfg:     &TuningConfig{ScanMode: ptrString("DBSCAN")},
			wantErr: false,
		},
		{
			name:    "unknown match mode",
			cfg:     &TuningConfig{MatchMode: ptrString("random")},
			wantErr: true,
		},
		{
			name:    "root note out of range",
			cfg:     &TuningConfig{RootNote: ptrInt(128)},
			wantErr: true,
		},
		{
			name:    "velocity zero",
			cfg:     &TuningConfig{NoteVelocity: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "channel out of range",
			cfg:     &TuningConfig{LastChannel: ptrInt(16)},
			wantErr: true,
		},
		{
			name:    "channels reversed",
			cfg:     &TuningConfig{FirstChannel: ptrInt(9), LastChannel: ptrInt(3)},
			wantErr: true,
		},
		{
			name:    "single channel pool",
			cfg:     &TuningConfig{FirstChannel: ptrInt(4), LastChannel: ptrInt(4)},
			wantErr: false,
		},
		{
			name:    "zero buffer capacity",
			cfg:     &TuningConfig{BufferCapacity: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "invalid rotation timeout",
			cfg:     &TuningConfig{RotationTimeout: ptrString("invalid")},
			wantErr: true,
		},
		{
			name:    "invalid stats interval",
			cfg:     &TuningConfig{StatsInterval: ptrString("soon")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetRotationTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{
			name: "500 milliseconds",
			cfg:  &TuningConfig{RotationTimeout: ptrString("500ms")},
			want: 500 * time.Millisecond,
		},
		{
			name: "1 second",
			cfg:  &TuningConfig{RotationTimeout: ptrString("1s")},
			want: 1 * time.Second,
		},
		{
			name: "nil pointer returns default",
			cfg:  &TuningConfig{},
			want: 500 * time.Millisecond,
		},
		{
			name: "empty string returns default",
			cfg:  &TuningConfig{RotationTimeout: ptrString("")},
			want: 500 * time.Millisecond,
		},
		{
			name: "invalid duration returns default",
			cfg:  &TuningConfig{RotationTimeout: ptrString("invalid")},
			want: 500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetRotationTimeout()
			if got != tt.want {
				t.Errorf("GetRotationTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetStatsInterval(t *testing.T) {
	cfg := &TuningConfig{}
	if cfg.GetStatsInterval() != time.Second {
		t.Errorf("GetStatsInterval() = %v, want 1s", cfg.GetStatsInterval())
	}
	cfg.StatsInterval = ptrString("5s")
	if cfg.GetStatsInterval() != 5*time.Second {
		t.Errorf("GetStatsInterval() = %v, want 5s", cfg.GetStatsInterval())
	}
}

func TestMerge(t *testing.T) {
	base := DefaultTuningConfig()
	base.Merge(&TuningConfig{
		RootNote:  ptrInt(62),
		ScaleType: ptrString("major"),
	})

	if base.GetRootNote() != 62 {
		t.Errorf("GetRootNote() = %d, want 62", base.GetRootNote())
	}
	if base.GetScaleType() != "major" {
		t.Errorf("GetScaleType() = %q, want major", base.GetScaleType())
	}
	if base.GetMaxDistanceCm() != 150 {
		t.Errorf("GetMaxDistanceCm() = %f, want 150 (untouched)", base.GetMaxDistanceCm())
	}

	base.Merge(nil)
	if base.GetRootNote() != 62 {
		t.Errorf("Merge(nil) changed RootNote to %d", base.GetRootNote())
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetMaxDistanceCm() != 150 {
		t.Errorf("Expected 150, got %f", cfg.GetMaxDistanceCm())
	}
	if cfg.GetRootNote() != 50 {
		t.Errorf("Expected 50, got %d", cfg.GetRootNote())
	}
	if cfg.GetBufferCapacity() != 1024 {
		t.Errorf("Expected 1024, got %d", cfg.GetBufferCapacity())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.yaml")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetScanMode() != "density" {
		t.Errorf("Expected density, got %q", cfg.GetScanMode())
	}
	if cfg.GetNotesPerRotation() != 14 {
		t.Errorf("Expected 14, got %d", cfg.GetNotesPerRotation())
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetMinPointsPerCluster() != 2 {
		t.Errorf("Expected 2, got %d", cfg.GetMinPointsPerCluster())
	}
}

func TestLoadTuningConfigRejectsUnknownExtension(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.toml")
	if err == nil {
		t.Error("Expected error for .toml extension, got nil")
	}
	_, err = LoadTuningConfig("../../etc/passwd")
	if err == nil {
		t.Error("Expected error for extension-less path, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := &TuningConfig{}

	if cfg.GetMaxClusterDistanceCm() != 70 {
		t.Errorf("GetMaxClusterDistanceCm() = %f, want 70", cfg.GetMaxClusterDistanceCm())
	}
	if cfg.GetNoteVelocity() != 127 {
		t.Errorf("GetNoteVelocity() = %d, want 127", cfg.GetNoteVelocity())
	}
	if cfg.GetNotesPerRotation() != 0 {
		t.Errorf("GetNotesPerRotation() = %d, want 0", cfg.GetNotesPerRotation())
	}
	if cfg.GetSerialBaudRate() != 115200 {
		t.Errorf("GetSerialBaudRate() = %d, want 115200", cfg.GetSerialBaudRate())
	}
	if cfg.GetSerialDataBits() != 8 || cfg.GetSerialStopBits() != 1 || cfg.GetSerialParity() != "N" {
		t.Errorf("serial framing = %d%s%d, want 8N1",
			cfg.GetSerialDataBits(), cfg.GetSerialParity(), cfg.GetSerialStopBits())
	}
}
