package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"gopkg.in/validator.v2"

	"github.com/slonegd/mmsreport/rcb"
)

const (
	defaultPort        = 102
	defaultDomain      = "VMC7_1LD0"
	defaultSinkBatchMs = 200
)

// settings - действующие параметры запуска: значения по умолчанию,
// поверх них файл конфигурации, поверх файла - флаги и позиционные
// аргументы
type settings struct {
	Host        string `validate:"nonzero"`
	Port        int    `validate:"min=1,max=65535"`
	Domain      string `validate:"nonzero"`
	RCBs        []string
	SCLPath     string
	Debug       bool
	Verbose     bool
	SinkURL     string
	SinkBatchMs int `validate:"min=0"`
	SinkNoBatch bool
	IntgPdMs    uint64
	KeepAlive   bool
	LogFile     string
}

func defaultSettings() settings {
	return settings{
		Port:        defaultPort,
		Domain:      defaultDomain,
		SinkBatchMs: defaultSinkBatchMs,
		IntgPdMs:    rcb.DefaultIntgPdMs,
	}
}

// fileConfig - представление TOML файла. Поле применяется только если
// явно задано в файле, незаданные не затирают значения по умолчанию
type fileConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	Domain      string   `toml:"domain"`
	RCBs        []string `toml:"rcbs"`
	SCL         string   `toml:"scl"`
	Debug       bool     `toml:"debug"`
	Verbose     bool     `toml:"verbose"`
	SinkURL     string   `toml:"sink_url"`
	SinkBatchMs int      `toml:"sink_batch_ms"`
	SinkNoBatch bool     `toml:"sink_no_batch"`
	IntgPdMs    int64    `toml:"intg_pd_ms"`
	KeepAlive   bool     `toml:"keep_alive"`
	LogFile     string   `toml:"log_file"`
}

// buildSettings собирает параметры запуска из файла конфигурации,
// позиционных аргументов и флагов, затем валидирует результат
func buildSettings(flags *pflag.FlagSet, args []string) (settings, error) {
	cfg := defaultSettings()

	if configPath != "" {
		if err := applyFile(&cfg, configPath); err != nil {
			return cfg, err
		}
	}

	if len(args) > 0 {
		cfg.Host = args[0]
	}
	if len(args) > 1 {
		port, err := cast.ToIntE(args[1])
		if err != nil {
			return cfg, fmt.Errorf("invalid port %q: %w", args[1], err)
		}
		cfg.Port = port
	}

	if flags.Changed("domain") {
		cfg.Domain = domain
	}
	if flags.Changed("rcb") {
		cfg.RCBs = rcbRefs
	}
	if flags.Changed("scl") {
		cfg.SCLPath = sclPath
	}
	if flags.Changed("debug") {
		cfg.Debug = debugFlag
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verboseFlag
	}
	if flags.Changed("sink-url") {
		cfg.SinkURL = sinkURL
	}
	if flags.Changed("sink-batch-ms") {
		cfg.SinkBatchMs = sinkBatchMs
	}
	if flags.Changed("sink-no-batch") {
		cfg.SinkNoBatch = sinkNoBatch
	}
	if flags.Changed("intg-pd") {
		cfg.IntgPdMs = intgPdMs
	}
	if flags.Changed("keep-alive") {
		cfg.KeepAlive = keepAlive
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}

	if err := validator.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFile(cfg *settings, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("domain") {
		cfg.Domain = strings.TrimSpace(raw.Domain)
	}
	if meta.IsDefined("rcbs") {
		cfg.RCBs = raw.RCBs
	}
	if meta.IsDefined("scl") {
		cfg.SCLPath = raw.SCL
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	if meta.IsDefined("sink_url") {
		cfg.SinkURL = strings.TrimSpace(raw.SinkURL)
	}
	if meta.IsDefined("sink_batch_ms") {
		cfg.SinkBatchMs = raw.SinkBatchMs
	}
	if meta.IsDefined("sink_no_batch") {
		cfg.SinkNoBatch = raw.SinkNoBatch
	}
	if meta.IsDefined("intg_pd_ms") {
		ms, err := cast.ToUint64E(raw.IntgPdMs)
		if err != nil {
			return fmt.Errorf("invalid intg_pd_ms: %w", err)
		}
		cfg.IntgPdMs = ms
	}
	if meta.IsDefined("keep_alive") {
		cfg.KeepAlive = raw.KeepAlive
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = raw.LogFile
	}
	return nil
}
