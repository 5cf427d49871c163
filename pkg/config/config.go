package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// EnvPrefix 环境变量前缀，例如 SAMPLER_SAMPLER_INTERVAL=30s
const EnvPrefix = "SAMPLER"

// Config 全局配置结构体
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server" comment:"HTTP服务配置"`
	Sampler SamplerConfig `yaml:"sampler" mapstructure:"sampler" comment:"属性采样配置"`
	Log     ZapLogConfig  `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// ServerConfig HTTP服务配置（超时统一为time.Duration，支持"30s"解析）
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
}

// SamplerConfig 采样周期与过滤配置
type SamplerConfig struct {
	Name       string        `yaml:"name" mapstructure:"name" validate:"required" comment:"活动名称，作为统计快照的 category"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" validate:"required,gt=0" comment:"采样间隔（如10s）" default:"10s"`
	Include    string        `yaml:"include" mapstructure:"include" validate:"required" comment:"包含模式，';' 分隔" default:"*:*"`
	Exclude    string        `yaml:"exclude" mapstructure:"exclude" comment:"排除模式，';' 分隔"`
	TypePolicy string        `yaml:"type_policy" mapstructure:"type_policy" validate:"required,oneof=scalar any" comment:"属性值类型策略" default:"scalar"`
	Host       HostConfig    `yaml:"host" mapstructure:"host" comment:"主机受管对象"`
	Rules      []RuleConfig  `yaml:"rules" mapstructure:"rules" validate:"dive" comment:"条件→动作规则"`
}

// HostConfig 基于 gopsutil 的主机受管对象
type HostConfig struct {
	Enable         bool          `yaml:"enable" mapstructure:"enable" comment:"是否注册主机对象" default:"true"`
	CollectPerCore bool          `yaml:"collect_per_core" mapstructure:"collect_per_core" comment:"是否按核心注册 CPU 对象" default:"false"`
	IgnoreNetworks []string      `yaml:"ignore_networks" mapstructure:"ignore_networks" comment:"忽略的网络接口列表（如lo）" default:"[]"`
	Refresh        time.Duration `yaml:"refresh" mapstructure:"refresh" validate:"gte=0" comment:"网卡对象刷新间隔，0 表示每个周期刷新" default:"0s"`
}

// RuleConfig 一条由配置声明的规则
type RuleConfig struct {
	Name      string `yaml:"name" mapstructure:"name" validate:"required" comment:"规则名，作为指标 label"`
	Object    string `yaml:"object" mapstructure:"object" validate:"required" comment:"对象名模式"`
	Attribute string `yaml:"attribute" mapstructure:"attribute" comment:"属性名，结构化值可用 A\\b；为空匹配全部"`
	Op        string `yaml:"op" mapstructure:"op" validate:"required,oneof=> >= < <= == != error" comment:"比较运算符或 error"`
	Value     string `yaml:"value" mapstructure:"value" comment:"比较值"`
	Action    string `yaml:"action" mapstructure:"action" validate:"required,oneof=log metric" comment:"动作"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error dpanic panic fatal" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" validate:"gte=0" comment:"日志文件最大备份数" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
	Compress  bool   `yaml:"compress" mapstructure:"compress" comment:"是否压缩过期日志" default:"true"`
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "0.0.0.0:8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Sampler: SamplerConfig{
			Name:       "sampler",
			Interval:   10 * time.Second,
			Include:    "*:*",
			Exclude:    "",
			TypePolicy: "scalar",
			Host: HostConfig{
				Enable:         true,
				CollectPerCore: false,
				IgnoreNetworks: []string{},
				Refresh:        0,
			},
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
			Compress:  true,
		},
	}
}

// LoadConfigWithCli 支持 time.Duration；优先级：显式 Flag > ENV > YAML > Flag 默认值
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper（未显式设置的 flag 只作为默认值）
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 绑定环境变量 ENV -> Viper （SAMPLER_SERVER_ADDR -> server.addr）
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 解码反序列化到结构体（支持 time.Duration）
	if err := decode(v.AllSettings(), cfg); err != nil {
		return nil, err
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func decode(input map[string]any, cfg *Config) error {
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("new decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	err := valid.Struct(c)
	if err != nil {
		return err
	}
	// 	1,校验Server服务配置
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验采样配置
	if err := c.Sampler.Validate(); err != nil {
		return err
	}

	// 	3，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
