// Package version 提供版本信息管理功能。
// 支持通过 -ldflags 在构建时注入版本信息，例如：
//
//	go build -ldflags "-X github.com/lifinance/bigmi-sub000/version.gitVersion=v1.2.3"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/gosuri/uitable"
)

// Product 出现在 User-Agent 中的产品名
const Product = "bigmi"

var (
	// gitVersion 是语义化的版本号，格式为 vMAJOR.MINOR.PATCH[-PRERELEASE][+BUILD]
	gitVersion = "v0.0.0-master+$Format:%h$"
	// buildDate 是 ISO8601 格式的构建时间, $(date -u +'%Y-%m-%dT%H:%M:%SZ') 命令的输出
	buildDate = "1970-01-01T00:00:00Z"
	// gitCommit 是 Git 的 SHA1 值，$(git rev-parse HEAD) 命令的输出
	gitCommit = "$Format:%H$"
	// gitTreeState 代表构建时 Git 仓库的状态，值为 clean 或 dirty
	gitTreeState = ""
)

// Info 包含了版本信息
type Info struct {
	GitVersion   string `json:"gitVersion" yaml:"gitVersion"`
	GitCommit    string `json:"gitCommit" yaml:"gitCommit"`
	GitTreeState string `json:"gitTreeState,omitempty" yaml:"gitTreeState,omitempty"`
	BuildDate    string `json:"buildDate" yaml:"buildDate"`
	GoVersion    string `json:"goVersion" yaml:"goVersion"`
	Compiler     string `json:"compiler" yaml:"compiler"`
	Platform     string `json:"platform" yaml:"platform"`
	// Deps 是构建时记录的依赖模块版本
	Deps map[string]string `json:"deps,omitempty" yaml:"deps,omitempty"`
}

// String 返回人性化的版本信息字符串
func (info Info) String() string {
	if info.GitTreeState == "dirty" {
		return info.GitVersion + "-dirty"
	}
	return info.GitVersion
}

// ToJSON 以 JSON 格式返回版本信息
func (info Info) ToJSON() (string, error) {
	s, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to marshal version info: %w", err)
	}
	return string(s), nil
}

// Text 以对齐的表格返回版本信息
func (info Info) Text() string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	table.AddRow("gitVersion:", info.GitVersion)
	table.AddRow("gitCommit:", info.GitCommit)
	if info.GitTreeState != "" {
		table.AddRow("gitTreeState:", info.GitTreeState)
	}
	table.AddRow("buildDate:", info.BuildDate)
	table.AddRow("goVersion:", info.GoVersion)
	table.AddRow("compiler:", info.Compiler)
	table.AddRow("platform:", info.Platform)
	for _, mod := range []string{"github.com/btcsuite/btcd", "github.com/gorilla/websocket"} {
		if v, ok := info.Deps[mod]; ok {
			table.AddRow(mod+":", v)
		}
	}
	return table.String()
}

// Get 返回详尽的代码库版本信息，用来标明二进制文件由哪个版本的代码构建
func Get() Info {
	info := Info{
		GitVersion:   gitVersion,
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		BuildDate:    buildDate,
		GoVersion:    runtime.Version(),
		Compiler:     runtime.Compiler,
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Deps = make(map[string]string, len(bi.Deps))
		for _, d := range bi.Deps {
			info.Deps[d.Path] = d.Version
		}
	}
	return info
}

// UserAgent 返回发往区块浏览器的 User-Agent，例如 bigmi/v1.2.3 (linux/amd64)
func UserAgent() string {
	v := gitVersion
	if strings.Contains(v, "$Format") {
		v = "dev"
	}
	return fmt.Sprintf("%s/%s (%s/%s)", Product, v, runtime.GOOS, runtime.GOARCH)
}
