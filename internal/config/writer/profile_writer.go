package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"candlesig/internal/decision"
	"candlesig/internal/strategy"
)

// ErrProfileNotFound 指定的 profile 不存在。
var ErrProfileNotFound = errors.New("profile 不存在")

// ProfileYAML profiles.yaml 的结构。
type ProfileYAML struct {
	Profiles map[string]ProfileEntry `yaml:"profiles"`
}

// ProfileEntry 一组命名的分析参数。
type ProfileEntry struct {
	Description string                 `yaml:"description,omitempty"`
	Symbols     []string               `yaml:"symbols,omitempty"`
	Intervals   []string               `yaml:"intervals,omitempty"`
	Limit       int                    `yaml:"limit,omitempty"`
	Strategies  []string               `yaml:"strategies,omitempty"`
	Fusion      *strategy.FusionConfig `yaml:"fusion,omitempty"`
	Analysis    decision.Options       `yaml:"analysis"`
	Default     bool                   `yaml:"default,omitempty"`
}

// StrategyTypes 解析策略代码，空表示全部策略。
func (e ProfileEntry) StrategyTypes() ([]strategy.Type, error) {
	if len(e.Strategies) == 0 {
		return nil, nil
	}
	return strategy.ParseTypes(strings.Join(e.Strategies, ","))
}

// ProfileWriter 读写 profiles.yaml，写入前备份并原子替换。
type ProfileWriter struct {
	path string
	mu   sync.RWMutex
}

func NewProfileWriter(path string) *ProfileWriter {
	return &ProfileWriter{path: path}
}

// Read 文件不存在时返回空集合。
func (w *ProfileWriter) Read() (*ProfileYAML, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.read()
}

func (w *ProfileWriter) read() (*ProfileYAML, error) {
	cfg := &ProfileYAML{}
	data, err := os.ReadFile(w.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("读取 profiles.yaml 失败: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析 profiles.yaml 失败: %w", err)
		}
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]ProfileEntry)
	}
	return cfg, nil
}

func (w *ProfileWriter) write(cfg *ProfileYAML) error {
	if err := w.backup(); err != nil {
		return fmt.Errorf("备份失败: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化 profiles 失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("替换配置文件失败: %w", err)
	}
	return nil
}

func (w *ProfileWriter) backup() error {
	src, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	backupDir := filepath.Join(filepath.Dir(w.path), "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return err
	}
	backupPath := filepath.Join(backupDir, fmt.Sprintf("profiles_%s.yaml", time.Now().Format("20060102_150405.000000000")))
	dst, err := os.Create(backupPath)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	w.cleanOldBackups(backupDir, 10)
	return nil
}

func (w *ProfileWriter) cleanOldBackups(dir string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "profiles_") && strings.HasSuffix(e.Name(), ".yaml") {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(backups)
	for i := 0; i < len(backups)-keep; i++ {
		os.Remove(backups[i])
	}
}

// GetProfile 按名称读取。
func (w *ProfileWriter) GetProfile(name string) (*ProfileEntry, error) {
	cfg, err := w.Read()
	if err != nil {
		return nil, err
	}
	p, ok := cfg.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return &p, nil
}

// DefaultProfile 返回标记为 default 的 profile，没有时 ok=false。
func (w *ProfileWriter) DefaultProfile() (string, ProfileEntry, bool, error) {
	cfg, err := w.Read()
	if err != nil {
		return "", ProfileEntry{}, false, err
	}
	names := make([]string, 0, len(cfg.Profiles))
	for n := range cfg.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if cfg.Profiles[n].Default {
			return n, cfg.Profiles[n], true, nil
		}
	}
	return "", ProfileEntry{}, false, nil
}

// UpdateProfile 新建或覆盖；设为 default 时清除其他 profile 的 default 标记。
func (w *ProfileWriter) UpdateProfile(name string, profile ProfileEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cfg, err := w.read()
	if err != nil {
		return err
	}
	if profile.Default {
		for n, p := range cfg.Profiles {
			if p.Default && n != name {
				p.Default = false
				cfg.Profiles[n] = p
			}
		}
	}
	cfg.Profiles[name] = profile
	return w.write(cfg)
}

// DeleteProfile 不允许删除最后一个 profile。
func (w *ProfileWriter) DeleteProfile(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cfg, err := w.read()
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if len(cfg.Profiles) <= 1 {
		return fmt.Errorf("不能删除唯一的 profile")
	}
	delete(cfg.Profiles, name)
	return w.write(cfg)
}

func (w *ProfileWriter) Path() string { return w.path }
