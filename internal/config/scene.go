package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/zhouzirui/z-interrogation/backend/internal/model/scene"
)

// ErrInvalidSettings 表示场景参数不合法。
var ErrInvalidSettings = errors.New("invalid scene settings")

// SettingsFor 返回某个嫌疑人的场景参数：默认值叠加 <SceneDir>/<文件>.ini。
// 文件名取 Subject.SceneFile，缺省为 "<id>.ini"；文件不存在时直接使用默认值。
func (c SceneConfig) SettingsFor(sub scene.Subject) (scene.Settings, error) {
	if c.SceneDir == "" {
		return c.Defaults, nil
	}
	name := sub.SceneFile
	if name == "" {
		name = sub.ID + ".ini"
	}
	path := filepath.Join(c.SceneDir, name)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if sub.SceneFile != "" {
			log.Printf("[config] scene file %s not found, using defaults", path)
		}
		return c.Defaults, nil
	}
	return LoadSceneFile(path, c.Defaults)
}

// LoadSceneFile 读取场景 INI 文件并覆盖 base 中出现的键。
//
//	[scene]
//	player_marker = 我
//	reveal_delay = 50ms
//	auto_advance_delay = 500ms
//
//	[meter]
//	directive_speed = 5
//	min_amplitude = 0.5
//	max_amplitude = 8
//	min_noise_speed = 0.5
//	max_noise_speed = 4
func LoadSceneFile(path string, base scene.Settings) (scene.Settings, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:             true,
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		return base, fmt.Errorf("load scene file %s: %w", path, err)
	}

	out := base
	sc := file.Section("scene")
	if sc.HasKey("player_marker") {
		if marker := strings.TrimSpace(sc.Key("player_marker").String()); marker != "" {
			out.PlayerMarker = marker
		}
	}
	if err := readDuration(sc, "reveal_delay", &out.RevealDelay); err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}
	if err := readDuration(sc, "auto_advance_delay", &out.AutoAdvanceDelay); err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}

	mt := file.Section("meter")
	floats := []struct {
		key string
		dst *float64
	}{
		{"directive_speed", &out.DirectiveSpeed},
		{"min_amplitude", &out.MinAmplitude},
		{"max_amplitude", &out.MaxAmplitude},
		{"min_noise_speed", &out.MinNoiseSpeed},
		{"max_noise_speed", &out.MaxNoiseSpeed},
	}
	for _, f := range floats {
		if !mt.HasKey(f.key) {
			continue
		}
		val, err := mt.Key(f.key).Float64()
		if err != nil {
			return base, fmt.Errorf("%s: [meter] %s: %w", path, f.key, err)
		}
		*f.dst = val
	}

	if err := validateSettings(out); err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func readDuration(sec *ini.Section, key string, dst *time.Duration) error {
	if !sec.HasKey(key) {
		return nil
	}
	d, err := sec.Key(key).Duration()
	if err != nil {
		return fmt.Errorf("[%s] %s: %w", sec.Name(), key, err)
	}
	*dst = d
	return nil
}

func validateSettings(s scene.Settings) error {
	switch {
	case s.RevealDelay <= 0:
		return fmt.Errorf("%w: reveal delay must be positive", ErrInvalidSettings)
	case s.AutoAdvanceDelay < 0:
		return fmt.Errorf("%w: auto advance delay must not be negative", ErrInvalidSettings)
	case s.DirectiveSpeed <= 0:
		return fmt.Errorf("%w: directive speed must be positive", ErrInvalidSettings)
	case s.MinAmplitude < 0 || s.MinAmplitude > s.MaxAmplitude:
		return fmt.Errorf("%w: amplitude range [%g, %g]", ErrInvalidSettings, s.MinAmplitude, s.MaxAmplitude)
	case s.MinNoiseSpeed < 0 || s.MinNoiseSpeed > s.MaxNoiseSpeed:
		return fmt.Errorf("%w: noise speed range [%g, %g]", ErrInvalidSettings, s.MinNoiseSpeed, s.MaxNoiseSpeed)
	}
	return nil
}
