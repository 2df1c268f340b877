// Package config 基于 viper 加载文件与环境变量配置，并在文件变更时热更新。
package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 配置管理器
type Config[T any] struct {
	v        *viper.Viper
	path     string
	watch    bool
	value    *T
	mu       sync.RWMutex
	watchers []func(old, new T)
	err      error
}

// Option 配置选项
type Option[T any] func(*Config[T])

// WithDefaults 设置默认值
func WithDefaults[T any](defaults map[string]any) Option[T] {
	return func(c *Config[T]) {
		for k, v := range defaults {
			c.v.SetDefault(k, v)
		}
	}
}

// WithEnv 绑定环境变量，键中的 "." 替换为 "_"，例如 BIGMI_RETRY_COUNT
func WithEnv[T any](prefix string) Option[T] {
	return func(c *Config[T]) {
		c.v.SetEnvPrefix(prefix)
		c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		c.v.AutomaticEnv()
	}
}

// WithDotEnv 在绑定环境变量前加载 .env 文件，已存在的环境变量不会被覆盖。
// 不传文件时加载当前目录的 .env；文件不存在时忽略。
func WithDotEnv[T any](files ...string) Option[T] {
	return func(c *Config[T]) {
		if len(files) == 0 {
			files = []string{".env"}
		}
		for _, f := range files {
			if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.err = errors.Join(c.err, err)
			}
		}
	}
}

// WithoutWatch 关闭文件监控
func WithoutWatch[T any]() Option[T] {
	return func(c *Config[T]) { c.watch = false }
}

// Load 加载配置文件并自动监控变更。path 为空时只读取默认值与环境变量。
func Load[T any](path string, opts ...Option[T]) (*Config[T], error) {
	v := viper.New()
	c := &Config[T]{v: v, path: path, watch: path != ""}

	for _, opt := range opts {
		opt(c)
	}
	if c.err != nil {
		return nil, c.err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var val T
	if err := v.Unmarshal(&val); err != nil {
		return nil, err
	}
	c.value = &val

	if c.watch {
		c.startWatch()
	}
	return c, nil
}

// Get 获取当前配置（并发安全，返回深拷贝）
func (c *Config[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepCopy(*c.value)
}

// OnChange 注册配置变更回调
func (c *Config[T]) OnChange(callback func(old, new T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, callback)
}

// Viper 返回底层 viper 实例，用于绑定命令行参数
func (c *Config[T]) Viper() *viper.Viper { return c.v }

// Changed 比较两个值是否不同
func Changed[T any](old, new T) bool {
	return !reflect.DeepEqual(old, new)
}

// deepCopy 通过 JSON 序列化实现深拷贝
func deepCopy[T any](src T) T {
	var dst T
	data, _ := json.Marshal(src)
	_ = json.Unmarshal(data, &dst)
	return dst
}

func (c *Config[T]) startWatch() {
	var (
		debounceTimer *time.Timer
		debounceMu    sync.Mutex
	)

	c.v.OnConfigChange(func(_ fsnotify.Event) {
		debounceMu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
			c.handleConfigChange()
		})
		debounceMu.Unlock()
	})

	c.v.WatchConfig()
}

func (c *Config[T]) handleConfigChange() {
	oldConfig := c.Get()

	newConfig, watchers, ok := c.reloadConfig()
	if !ok {
		return
	}

	if reflect.DeepEqual(oldConfig, newConfig) {
		return
	}

	for _, cb := range watchers {
		func() {
			defer func() { _ = recover() }()
			cb(oldConfig, newConfig)
		}()
	}
}

// reloadConfig 重新加载配置，返回新配置、回调列表和是否成功
func (c *Config[T]) reloadConfig() (T, []func(old, new T), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if err := c.v.ReadInConfig(); err != nil {
		return zero, nil, false
	}

	var val T
	if err := c.v.Unmarshal(&val); err != nil {
		return zero, nil, false
	}
	c.value = &val

	watchers := make([]func(old, new T), len(c.watchers))
	copy(watchers, c.watchers)

	return deepCopy(val), watchers, true
}
