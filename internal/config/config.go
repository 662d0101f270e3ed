package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Camera   CameraConfig
	Detector DetectorConfig
	Embedder EmbedderConfig
	Match    MatchConfig
	Liveness LivenessConfig
	Kiosk    KioskConfig
	Database DatabaseConfig
	Web      WebConfig
}

type CameraConfig struct {
	Device string // numeric index ("0") or device path/URL
	Width  int
	Height int
}

type DetectorConfig struct {
	ModelPath   string // YuNet ONNX model
	Confidence  float64
	CropPadding int // pixels added around the detected box, clipped to frame bounds
}

type EmbedderConfig struct {
	ModelPath string // ArcFace ONNX model
	Dim       int    // canonical signature dimension, validated at model load
}

type MatchConfig struct {
	Threshold float64 // minimum cosine similarity for a match
	UseIndex  bool    // approximate HNSW index instead of brute force
	// IndexCutoff is the enrolled-signature count below which the index is
	// skipped even when enabled; brute force is exact and fast enough there.
	IndexCutoff int
}

type LivenessConfig struct {
	// Enabled toggles the multi-frame liveness check. Disabling it trades
	// replay-attack resistance for lower per-attempt latency.
	Enabled           bool
	LandmarkModelPath string
	Window            int     // consecutive frames analyzed
	MovementThreshold float64 // minimum landmark variance for natural movement
	BlinkEARThreshold float64 // EAR below this counts as closed eyes
	BlinkVariance     float64 // EAR variance over the window indicating a blink
}

type KioskConfig struct {
	BlinkCooldown time.Duration // suppresses repeated triggers from one blink
	ResultDwell   time.Duration // how long the outcome stays on screen
	MaxProcessing time.Duration // advisory budget, logged when exceeded
	FrameInterval time.Duration // pacing of the scanning loop
	SnapshotDir   string        // when set, annotated attempt frames are saved here
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MySQLDSN     string // alternative MySQL backend
	MaxOpenConns int
	MaxIdleConns int
}

type WebConfig struct {
	Host string
	Port int
}

// defaults mirrors the structure of the embedded defaults.yaml.
type defaults struct {
	Camera struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"camera"`
	Detector struct {
		Confidence  float64 `yaml:"confidence"`
		CropPadding int     `yaml:"crop_padding"`
	} `yaml:"detector"`
	Embedder struct {
		Dim int `yaml:"dim"`
	} `yaml:"embedder"`
	Match struct {
		Threshold   float64 `yaml:"threshold"`
		IndexCutoff int     `yaml:"index_cutoff"`
	} `yaml:"match"`
	Liveness struct {
		Window            int     `yaml:"window"`
		MovementThreshold float64 `yaml:"movement_threshold"`
		BlinkEARThreshold float64 `yaml:"blink_ear_threshold"`
		BlinkVariance     float64 `yaml:"blink_variance_threshold"`
	} `yaml:"liveness"`
	Kiosk struct {
		BlinkCooldownMS int `yaml:"blink_cooldown_ms"`
		ResultDwellMS   int `yaml:"result_dwell_ms"`
		MaxProcessingMS int `yaml:"max_processing_ms"`
		FrameIntervalMS int `yaml:"frame_interval_ms"`
	} `yaml:"kiosk"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean ("true", "1", "false", "0").
// Returns the default value if the env var is unset, empty, or invalid.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// Embedded file, cannot fail in a correct build.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Camera: CameraConfig{
			Device: envString("CAMERA_DEVICE", "0"),
			Width:  envInt("CAMERA_WIDTH", d.Camera.Width),
			Height: envInt("CAMERA_HEIGHT", d.Camera.Height),
		},
		Detector: DetectorConfig{
			ModelPath:   os.Getenv("DETECTOR_MODEL"),
			Confidence:  envFloat("DETECTOR_CONFIDENCE", d.Detector.Confidence),
			CropPadding: envInt("CROP_PADDING", d.Detector.CropPadding),
		},
		Embedder: EmbedderConfig{
			ModelPath: os.Getenv("EMBEDDER_MODEL"),
			Dim:       envInt("SIGNATURE_DIM", d.Embedder.Dim),
		},
		Match: MatchConfig{
			Threshold:   envFloat("MATCH_THRESHOLD", d.Match.Threshold),
			UseIndex:    envBool("MATCH_INDEX", false),
			IndexCutoff: envInt("MATCH_INDEX_CUTOFF", d.Match.IndexCutoff),
		},
		Liveness: LivenessConfig{
			Enabled:           envBool("LIVENESS_ENABLED", true),
			LandmarkModelPath: os.Getenv("LANDMARK_MODEL"),
			Window:            envInt("LIVENESS_WINDOW", d.Liveness.Window),
			MovementThreshold: envFloat("LIVENESS_MOVEMENT_THRESHOLD", d.Liveness.MovementThreshold),
			BlinkEARThreshold: envFloat("BLINK_EAR_THRESHOLD", d.Liveness.BlinkEARThreshold),
			BlinkVariance:     envFloat("BLINK_VARIANCE_THRESHOLD", d.Liveness.BlinkVariance),
		},
		Kiosk: KioskConfig{
			BlinkCooldown: time.Duration(envInt("BLINK_COOLDOWN_MS", d.Kiosk.BlinkCooldownMS)) * time.Millisecond,
			ResultDwell:   time.Duration(envInt("RESULT_DWELL_MS", d.Kiosk.ResultDwellMS)) * time.Millisecond,
			MaxProcessing: time.Duration(envInt("MAX_PROCESSING_MS", d.Kiosk.MaxProcessingMS)) * time.Millisecond,
			FrameInterval: time.Duration(envInt("FRAME_INTERVAL_MS", d.Kiosk.FrameIntervalMS)) * time.Millisecond,
			SnapshotDir:   os.Getenv("SNAPSHOT_DIR"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MySQLDSN:     os.Getenv("MYSQL_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
	}
}
