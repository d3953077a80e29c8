package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
)

// DefaultFrameInterval 是场景循环的默认帧间隔 (约 60fps)。
const DefaultFrameInterval = 16 * time.Millisecond

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Scene  SceneConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	sc, err := loadSceneConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Scene: sc}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// SceneConfig 描述审讯场景的默认参数与资源目录。
type SceneConfig struct {
	Defaults      scene.Settings
	SceneDir      string // 场景 INI 目录，为空时只使用默认值
	ScriptDir     string // 剧本目录，为空时使用内置剧本
	FrameInterval time.Duration
	MeterEnabled  bool
}

func loadSceneConfig() (SceneConfig, error) {
	settings := scene.DefaultSettings()
	settings.PlayerMarker = getEnvOrDefault("PLAYER_MARKER", settings.PlayerMarker)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REVEAL_DELAY", &settings.RevealDelay},
		{"AUTO_ADVANCE_DELAY", &settings.AutoAdvanceDelay},
	}
	for _, d := range durations {
		val, err := parseOptionalDurationEnv(d.key)
		if err != nil {
			return SceneConfig{}, err
		}
		if val != nil {
			*d.dst = *val
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"DIRECTIVE_SPEED", &settings.DirectiveSpeed},
		{"METER_MIN_AMPLITUDE", &settings.MinAmplitude},
		{"METER_MAX_AMPLITUDE", &settings.MaxAmplitude},
		{"METER_MIN_NOISE_SPEED", &settings.MinNoiseSpeed},
		{"METER_MAX_NOISE_SPEED", &settings.MaxNoiseSpeed},
	}
	for _, f := range floats {
		val, err := parseOptionalFloatEnv(f.key)
		if err != nil {
			return SceneConfig{}, err
		}
		if val != nil {
			*f.dst = *val
		}
	}

	if err := validateSettings(settings); err != nil {
		return SceneConfig{}, err
	}

	frame := DefaultFrameInterval
	if val, err := parseOptionalDurationEnv("FRAME_INTERVAL"); err != nil {
		return SceneConfig{}, err
	} else if val != nil {
		if *val <= 0 {
			return SceneConfig{}, fmt.Errorf("invalid FRAME_INTERVAL value %q: must be positive", os.Getenv("FRAME_INTERVAL"))
		}
		frame = *val
	}

	meterEnabled, err := parseBoolEnv("METER_ENABLED", true)
	if err != nil {
		return SceneConfig{}, err
	}

	return SceneConfig{
		Defaults:      settings,
		SceneDir:      getEnvOrDefault("SCENE_DIR", "scenes"),
		ScriptDir:     getEnvOrDefault("SCRIPT_DIR", ""),
		FrameInterval: frame,
		MeterEnabled:  meterEnabled,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseOptionalDurationEnv 接受 "50ms" 之类的时长，纯数字按毫秒处理。
func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	if ms, err := strconv.Atoi(value); err == nil {
		d := time.Duration(ms) * time.Millisecond
		return &d, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &d, nil
}
