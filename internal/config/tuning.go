package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config endpoint so the same document can be
// used for both startup configuration and runtime updates. Every field is
// optional; the Get* methods supply defaults for omitted fields.
type TuningConfig struct {
	// Segmentation
	MaxDistanceCm        *float64 `json:"max_distance_cm,omitempty" yaml:"max_distance_cm,omitempty"`
	MaxClusterDistanceCm *float64 `json:"max_cluster_distance_cm,omitempty" yaml:"max_cluster_distance_cm,omitempty"`
	MinPointsPerCluster  *int     `json:"min_points_per_cluster,omitempty" yaml:"min_points_per_cluster,omitempty"`
	ScanMode             *string  `json:"scan_mode,omitempty" yaml:"scan_mode,omitempty"` // "connected" or "density"

	// Association
	MatchMode *string `json:"match_mode,omitempty" yaml:"match_mode,omitempty"` // "first", "nearest" or "optimal"

	// Musical mapping
	RootNote         *int    `json:"root_note,omitempty" yaml:"root_note,omitempty"`
	ScaleType        *string `json:"scale_type,omitempty" yaml:"scale_type,omitempty"` // "chromatic", "major" or "minor"
	NotesPerRotation *int    `json:"notes_per_rotation,omitempty" yaml:"notes_per_rotation,omitempty"`
	NoteVelocity     *int    `json:"note_velocity,omitempty" yaml:"note_velocity,omitempty"`

	// Channel pool (0-based wire channel numbers)
	FirstChannel *int `json:"first_channel,omitempty" yaml:"first_channel,omitempty"`
	LastChannel  *int `json:"last_channel,omitempty" yaml:"last_channel,omitempty"`

	// Rotation buffer
	BufferCapacity  *int    `json:"buffer_capacity,omitempty" yaml:"buffer_capacity,omitempty"`
	RotationTimeout *string `json:"rotation_timeout,omitempty" yaml:"rotation_timeout,omitempty"` // duration string like "500ms"
	StatsInterval   *string `json:"stats_interval,omitempty" yaml:"stats_interval,omitempty"`     // duration string like "1s"

	// Serial link to the range sensor
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty" yaml:"serial_baud_rate,omitempty"`
	SerialDataBits *int    `json:"serial_data_bits,omitempty" yaml:"serial_data_bits,omitempty"`
	SerialStopBits *int    `json:"serial_stop_bits,omitempty" yaml:"serial_stop_bits,omitempty"`
	SerialParity   *string `json:"serial_parity,omitempty" yaml:"serial_parity,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the Get* defaults. Useful for dumping a complete config.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	return &TuningConfig{
		MaxDistanceCm:        ptrFloat64(c.GetMaxDistanceCm()),
		MaxClusterDistanceCm: ptrFloat64(c.GetMaxClusterDistanceCm()),
		MinPointsPerCluster:  ptrInt(c.GetMinPointsPerCluster()),
		ScanMode:             ptrString(c.GetScanMode()),
		MatchMode:            ptrString(c.GetMatchMode()),
		RootNote:             ptrInt(c.GetRootNote()),
		ScaleType:            ptrString(c.GetScaleType()),
		NotesPerRotation:     ptrInt(c.GetNotesPerRotation()),
		NoteVelocity:         ptrInt(c.GetNoteVelocity()),
		FirstChannel:         ptrInt(c.GetFirstChannel()),
		LastChannel:          ptrInt(c.GetLastChannel()),
		BufferCapacity:       ptrInt(c.GetBufferCapacity()),
		RotationTimeout:      ptrString(c.GetRotationTimeout().String()),
		StatsInterval:        ptrString(c.GetStatsInterval().String()),
		SerialBaudRate:       ptrInt(c.GetSerialBaudRate()),
		SerialDataBits:       ptrInt(c.GetSerialDataBits()),
		SerialStopBits:       ptrInt(c.GetSerialStopBits()),
		SerialParity:         ptrString(c.GetSerialParity()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The format is chosen by extension (.json, .yaml, .yml). Fields omitted
// from the file fall back to their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/lidar/l5tracks/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge copies every non-nil field of other over c. Used to apply partial
// runtime updates on top of the loaded configuration.
func (c *TuningConfig) Merge(other *TuningConfig) {
	if other == nil {
		return
	}
	if other.MaxDistanceCm != nil {
		c.MaxDistanceCm = other.MaxDistanceCm
	}
	if other.MaxClusterDistanceCm != nil {
		c.MaxClusterDistanceCm = other.MaxClusterDistanceCm
	}
	if other.MinPointsPerCluster != nil {
		c.MinPointsPerCluster = other.MinPointsPerCluster
	}
	if other.ScanMode != nil {
		c.ScanMode = other.ScanMode
	}
	if other.MatchMode != nil {
		c.MatchMode = other.MatchMode
	}
	if other.RootNote != nil {
		c.RootNote = other.RootNote
	}
	if other.ScaleType != nil {
		c.ScaleType = other.ScaleType
	}
	if other.NotesPerRotation != nil {
		c.NotesPerRotation = other.NotesPerRotation
	}
	if other.NoteVelocity != nil {
		c.NoteVelocity = other.NoteVelocity
	}
	if other.FirstChannel != nil {
		c.FirstChannel = other.FirstChannel
	}
	if other.LastChannel != nil {
		c.LastChannel = other.LastChannel
	}
	if other.BufferCapacity != nil {
		c.BufferCapacity = other.BufferCapacity
	}
	if other.RotationTimeout != nil {
		c.RotationTimeout = other.RotationTimeout
	}
	if other.StatsInterval != nil {
		c.StatsInterval = other.StatsInterval
	}
	if other.SerialBaudRate != nil {
		c.SerialBaudRate = other.SerialBaudRate
	}
	if other.SerialDataBits != nil {
		c.SerialDataBits = other.SerialDataBits
	}
	if other.SerialStopBits != nil {
		c.SerialStopBits = other.SerialStopBits
	}
	if other.SerialParity != nil {
		c.SerialParity = other.SerialParity
	}
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxDistanceCm != nil && *c.MaxDistanceCm <= 0 {
		return fmt.Errorf("max_distance_cm must be positive, got %f", *c.MaxDistanceCm)
	}
	if c.MaxClusterDistanceCm != nil && *c.MaxClusterDistanceCm <= 0 {
		return fmt.Errorf("max_cluster_distance_cm must be positive, got %f", *c.MaxClusterDistanceCm)
	}
	if c.MinPointsPerCluster != nil && *c.MinPointsPerCluster < 1 {
		return fmt.Errorf("min_points_per_cluster must be >= 1, got %d", *c.MinPointsPerCluster)
	}
	if c.ScanMode != nil && !oneOf(*c.ScanMode, "connected", "distance", "density", "dbscan") {
		return fmt.Errorf("unknown scan_mode %q", *c.ScanMode)
	}
	if c.MatchMode != nil && !oneOf(*c.MatchMode, "first", "nearest", "optimal") {
		return fmt.Errorf("unknown match_mode %q", *c.MatchMode)
	}
	if c.ScaleType != nil && !oneOf(*c.ScaleType, "chromatic", "major", "minor") {
		return fmt.Errorf("unknown scale_type %q", *c.ScaleType)
	}
	if c.RootNote != nil && (*c.RootNote < 0 || *c.RootNote > 127) {
		return fmt.Errorf("root_note must be between 0 and 127, got %d", *c.RootNote)
	}
	if c.NotesPerRotation != nil && *c.NotesPerRotation < 0 {
		return fmt.Errorf("notes_per_rotation must be non-negative, got %d", *c.NotesPerRotation)
	}
	if c.NoteVelocity != nil && (*c.NoteVelocity < 1 || *c.NoteVelocity > 127) {
		return fmt.Errorf("note_velocity must be between 1 and 127, got %d", *c.NoteVelocity)
	}

	first, last := c.GetFirstChannel(), c.GetLastChannel()
	if first < 0 || first > 15 || last < 0 || last > 15 {
		return fmt.Errorf("channels must be between 0 and 15, got %d..%d", first, last)
	}
	if first > last {
		return fmt.Errorf("first_channel %d is after last_channel %d", first, last)
	}

	if c.BufferCapacity != nil && *c.BufferCapacity < 1 {
		return fmt.Errorf("buffer_capacity must be positive, got %d", *c.BufferCapacity)
	}
	if c.RotationTimeout != nil && *c.RotationTimeout != "" {
		if _, err := time.ParseDuration(*c.RotationTimeout); err != nil {
			return fmt.Errorf("invalid rotation_timeout '%s': %w", *c.RotationTimeout, err)
		}
	}
	if c.StatsInterval != nil && *c.StatsInterval != "" {
		if _, err := time.ParseDuration(*c.StatsInterval); err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
	}

	return nil
}

// GetMaxDistanceCm returns the max_distance_cm value or the default.
func (c *TuningConfig) GetMaxDistanceCm() float64 {
	if c.MaxDistanceCm == nil {
		return 150.0
	}
	return *c.MaxDistanceCm
}

// GetMaxClusterDistanceCm returns the max_cluster_distance_cm value or the default.
func (c *TuningConfig) GetMaxClusterDistanceCm() float64 {
	if c.MaxClusterDistanceCm == nil {
		return 70.0
	}
	return *c.MaxClusterDistanceCm
}

// GetMinPointsPerCluster returns the min_points_per_cluster value or the default.
func (c *TuningConfig) GetMinPointsPerCluster() int {
	if c.MinPointsPerCluster == nil {
		return 2
	}
	return *c.MinPointsPerCluster
}

// GetScanMode returns the scan_mode value or the default.
func (c *TuningConfig) GetScanMode() string {
	if c.ScanMode == nil || *c.ScanMode == "" {
		return "connected"
	}
	return strings.ToLower(*c.ScanMode)
}

// GetMatchMode returns the match_mode value or the default.
func (c *TuningConfig) GetMatchMode() string {
	if c.MatchMode == nil || *c.MatchMode == "" {
		return "first"
	}
	return strings.ToLower(*c.MatchMode)
}

// GetRootNote returns the root_note value or the default.
func (c *TuningConfig) GetRootNote() int {
	if c.RootNote == nil {
		return 50
	}
	return *c.RootNote
}

// GetScaleType returns the scale_type value or the default.
func (c *TuningConfig) GetScaleType() string {
	if c.ScaleType == nil || *c.ScaleType == "" {
		return "chromatic"
	}
	return strings.ToLower(*c.ScaleType)
}

// GetNotesPerRotation returns the notes_per_rotation value or the default.
// Zero means one octave of the selected scale.
func (c *TuningConfig) GetNotesPerRotation() int {
	if c.NotesPerRotation == nil {
		return 0
	}
	return *c.NotesPerRotation
}

// GetNoteVelocity returns the note_velocity value or the default.
func (c *TuningConfig) GetNoteVelocity() int {
	if c.NoteVelocity == nil {
		return 127
	}
	return *c.NoteVelocity
}

// GetFirstChannel returns the first_channel value or the default.
// Channel 0 is reserved for the installation's own controls.
func (c *TuningConfig) GetFirstChannel() int {
	if c.FirstChannel == nil {
		return 1
	}
	return *c.FirstChannel
}

// GetLastChannel returns the last_channel value or the default.
func (c *TuningConfig) GetLastChannel() int {
	if c.LastChannel == nil {
		return 15
	}
	return *c.LastChannel
}

// GetBufferCapacity returns the buffer_capacity value or the default.
func (c *TuningConfig) GetBufferCapacity() int {
	if c.BufferCapacity == nil {
		return 1024
	}
	return *c.BufferCapacity
}

// GetRotationTimeout parses and returns the RotationTimeout as a time.Duration.
func (c *TuningConfig) GetRotationTimeout() time.Duration {
	if c.RotationTimeout == nil || *c.RotationTimeout == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.RotationTimeout)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetStatsInterval parses and returns the StatsInterval as a time.Duration.
func (c *TuningConfig) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *TuningConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

// GetSerialDataBits returns the serial_data_bits value or the default.
func (c *TuningConfig) GetSerialDataBits() int {
	if c.SerialDataBits == nil {
		return 8
	}
	return *c.SerialDataBits
}

// GetSerialStopBits returns the serial_stop_bits value or the default.
func (c *TuningConfig) GetSerialStopBits() int {
	if c.SerialStopBits == nil {
		return 1
	}
	return *c.SerialStopBits
}

// GetSerialParity returns the serial_parity value or the default.
func (c *TuningConfig) GetSerialParity() string {
	if c.SerialParity == nil || *c.SerialParity == "" {
		return "N"
	}
	return *c.SerialParity
}
