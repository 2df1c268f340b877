package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/httpx"
	"github.com/lifinance/bigmi-sub000/providers"
	"github.com/lifinance/bigmi-sub000/transport"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "BIGMI"

// Provider 单个区块浏览器配置，RateLimit 为每秒请求数上限（0 表示不限）
type Provider struct {
	Key       string        `mapstructure:"key" json:"key" yaml:"key"`
	BaseURL   string        `mapstructure:"base_url" json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey    string        `mapstructure:"api_key" json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty"`
	RateLimit float64       `mapstructure:"rate_limit" json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// File 配置文件结构，Providers 的顺序即 fallback 顺序
type File struct {
	Providers  []Provider         `mapstructure:"providers" json:"providers" yaml:"providers"`
	RPCURL     string             `mapstructure:"rpc_url" json:"rpc_url,omitempty" yaml:"rpc_url,omitempty"`
	Timeout    time.Duration      `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	RetryCount int                `mapstructure:"retry_count" json:"retry_count" yaml:"retry_count"`
	RetryDelay time.Duration      `mapstructure:"retry_delay" json:"retry_delay" yaml:"retry_delay"`
	Methods    bigmi.MethodFilter `mapstructure:"methods" json:"methods" yaml:"methods"`
	LogLevel   string             `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
}

// Defaults 返回 File 的默认值，同时让这些键可以被环境变量覆盖
func Defaults() map[string]any {
	return map[string]any{
		"rpc_url":     "",
		"timeout":     "10s",
		"retry_count": bigmi.DefaultRetryCount,
		"retry_delay": bigmi.DefaultRetryDelay.String(),
		"log_level":   "info",
	}
}

// LoadFile 按 默认值 < 配置文件 < .env < 环境变量 的优先级加载 File
func LoadFile(path string, opts ...Option[File]) (*Config[File], error) {
	base := []Option[File]{
		WithDefaults[File](Defaults()),
		WithDotEnv[File](),
		WithEnv[File](EnvPrefix),
	}
	return Load(path, append(base, opts...)...)
}

// Validate 检查 provider 与重试配置
func (f File) Validate() error {
	if len(f.Providers) == 0 && strings.TrimSpace(f.RPCURL) == "" {
		return errors.New("config: at least one provider or rpc_url is required")
	}
	for i, p := range f.Providers {
		if _, err := providers.ParseKey(p.Key); err != nil {
			return fmt.Errorf("config: providers[%d]: %w", i, err)
		}
		if p.RateLimit < 0 {
			return fmt.Errorf("config: providers[%d]: rate_limit must not be negative", i)
		}
	}
	if f.RetryCount < 0 {
		return fmt.Errorf("config: retry_count must not be negative, got %d", f.RetryCount)
	}
	for _, m := range append(append([]bigmi.Method(nil), f.Methods.Include...), f.Methods.Exclude...) {
		if !m.Valid() {
			return fmt.Errorf("config: unknown method %q", m)
		}
	}
	return nil
}

// Transport 按配置顺序构建 transport：多个时返回 Fallback，只有一个时直接返回。
// opts 作用于每个子 transport（例如 metrics middleware、logger）。
func (f File) Transport(opts ...transport.Option) (bigmi.Transport, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	shared := []transport.Option{
		transport.WithRetryCount(f.RetryCount),
		transport.WithRetryDelay(f.RetryDelay),
		transport.WithMethods(f.Methods),
	}

	var ts []bigmi.Transport
	for _, p := range f.Providers {
		key, _ := providers.ParseKey(p.Key)
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = f.Timeout
		}
		popts := append(append([]transport.Option(nil), shared...),
			transport.WithAPIKey(p.APIKey),
			transport.WithTimeout(timeout),
		)
		if p.RateLimit > 0 {
			popts = append(popts, transport.WithHTTPOptions(httpx.WithRateLimiter(rate.NewLimiter(rate.Limit(p.RateLimit), 1))))
		}
		t, err := transport.Provider(key, p.BaseURL, append(popts, opts...)...)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	if u := strings.TrimSpace(f.RPCURL); u != "" {
		popts := append(append([]transport.Option(nil), shared...), transport.WithTimeout(f.Timeout))
		t, err := transport.HTTP(u, append(popts, opts...)...)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}

	if len(ts) == 1 {
		return ts[0], nil
	}
	return transport.Fallback(ts, append(shared, opts...)...)
}
