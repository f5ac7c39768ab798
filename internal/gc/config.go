package gc

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName 是收集器调优文件的默认名称。
const ConfigFileName = "gc.toml"

// Config 是收集器的可调参数，镜像 lj_gc.c 里 pause/stepmul/genminormul/
// genmajormul 这几个 getgcparam 读取的旋钮。
type Config struct {
	// Kind 选择启动时使用的收集模式："incremental" 或 "generational"。
	Kind string `toml:"kind"`

	// Pause 控制增量模式下两次周期之间允许堆增长的百分比（100 表示
	// 允许翻倍才触发下一轮）。
	Pause int `toml:"pause"`

	// StepMul 控制每分配一字节，标记阶段要相应处理多少字节（以百分比
	// 表示，200 意味着标记速度是分配速度的两倍）。
	StepMul int `toml:"step_mul"`

	// GenMinorMul 控制分代模式下年轻代收集的触发增长率（百分比）。
	GenMinorMul int `toml:"gen_minor_mul"`

	// GenMajorMul 控制分代模式下主收集的触发增长率（百分比）。
	GenMajorMul int `toml:"gen_major_mul"`

	// Debug 打开泄漏检测与分配点追踪（见 diagnostics.go），会带来额外
	// 的内存和时间开销，生产环境不建议常开。
	Debug bool `toml:"debug"`
}

// LoadConfig 从文件加载收集器配置。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gc config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse gc config file: %w", err)
	}

	return &cfg, nil
}

// Save 保存配置到文件，附带解释每个旋钮含义的注释。
func (c *Config) Save(path string) error {
	content := generateConfigWithComments(c)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write gc config file: %w", err)
	}
	return nil
}

func generateConfigWithComments(c *Config) string {
	var sb strings.Builder

	sb.WriteString("# 收集模式：\"incremental\" 或 \"generational\"\n")
	sb.WriteString(fmt.Sprintf("kind = %q\n\n", c.Kind))
	sb.WriteString("# 增量模式下两次周期之间允许堆增长的百分比\n")
	sb.WriteString(fmt.Sprintf("pause = %d\n\n", c.Pause))
	sb.WriteString("# 每分配一字节，标记阶段处理多少字节（百分比）\n")
	sb.WriteString(fmt.Sprintf("step_mul = %d\n\n", c.StepMul))
	sb.WriteString("# 分代模式下年轻代收集的触发增长率（百分比）\n")
	sb.WriteString(fmt.Sprintf("gen_minor_mul = %d\n\n", c.GenMinorMul))
	sb.WriteString("# 分代模式下主收集的触发增长率（百分比）\n")
	sb.WriteString(fmt.Sprintf("gen_major_mul = %d\n\n", c.GenMajorMul))
	sb.WriteString("# 是否开启泄漏检测与分配点追踪\n")
	sb.WriteString(fmt.Sprintf("debug = %t\n", c.Debug))

	return sb.String()
}

// GenerateDefault 生成默认配置，与 NewCollector 的内置默认值保持一致。
func GenerateDefault() *Config {
	return &Config{
		Kind:        "incremental",
		Pause:       200,
		StepMul:     200,
		GenMinorMul: 20,
		GenMajorMul: 100,
		Debug:       false,
	}
}
