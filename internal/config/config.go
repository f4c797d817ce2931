package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/dsfa/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingField 表示某个阶段需要的字段在 CLI 与配置文件中都没有给出。
	ErrCodeMissingField = domain.ErrCodeConfigMissing
)

const (
	// FileName 是 cwd 下自动发现的配置文件名。
	FileName = "dsfa.toml"
	// DefaultWorkers 是默认的并发转换数。
	DefaultWorkers = 4
	MaxWorkers     = 32

	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// SpecArgs 是一类文件（图像或 mask）的转换参数；零值表示“未指定”。
type SpecArgs struct {
	Source      string `toml:"source"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	Format      string `toml:"format"`
	Resample    string `toml:"resample"`
	JPEGQuality int    `toml:"jpeg_quality"`
}

// CLIArgs 是命令行给出的值；零值表示未指定（由配置文件或默认值补齐）。
type CLIArgs struct {
	ConfigPath string

	Root       string
	Workers    int
	ArchiveDir string

	LogLevel  string
	LogFormat string

	Images SpecArgs
	Masks  SpecArgs
}

// FileConfig 对应 dsfa.toml 的解析结构。
type FileConfig struct {
	Root       string    `toml:"root"`
	Workers    int       `toml:"workers"`
	ArchiveDir string    `toml:"archive_dir"`
	Images     SpecArgs  `toml:"images"`
	Masks      SpecArgs  `toml:"masks"`
	Log        LogConfig `toml:"log"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// KindConfig 是合并后的一类文件的输入目录与转换参数。
// 缺失的字段保持零值，由 Require 在真正需要时报告。
type KindConfig struct {
	Kind   domain.Kind
	Source string
	Spec   domain.ConversionSpec
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；没有读取任何文件时为空。
	ConfigPath string

	Root       string
	Workers    int
	ArchiveDir string

	Images KindConfig
	Masks  KindConfig

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code  string
	Path  string
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingField:
		if e.Path != "" {
			return fmt.Sprintf("%s：缺少必填字段 %s（命令行参数或配置文件 %q）", e.Code, e.Field, e.Path)
		}
		return fmt.Sprintf("%s：缺少必填字段 %s", e.Code, e.Field)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) --config 给出路径：必须存在
// 2) 否则尝试 <cwd>/dsfa.toml（可选）
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认。
// 只有 workers 与日志有内置默认；尺寸、格式、目录没有默认值。
// 配置文件中的相对路径相对于配置文件所在目录，CLI 中的相对路径相对于 cwd。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var cfgPath string
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if strings.TrimSpace(cli.ConfigPath) != "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwd string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	fileBase := cwd
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}
	invalid := func(err error) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	eff := EffectiveConfig{
		ConfigPath: cfgPath,
		Root:       pickPath(cwd, cli.Root, fileBase, fc.Root),
		ArchiveDir: pickPath(cwd, cli.ArchiveDir, fileBase, fc.ArchiveDir),
		LogLevel:   strings.ToLower(pick(cli.LogLevel, fc.Log.Level, DefaultLogLevel)),
		LogFormat:  strings.ToLower(pick(cli.LogFormat, fc.Log.Format, DefaultLogFormat)),
	}

	workers := pickInt(cli.Workers, fc.Workers, DefaultWorkers)
	if workers < 0 {
		return EffectiveConfig{}, invalid(fmt.Errorf("workers 不能为负数：%d", workers))
	}
	eff.Workers = min(max(workers, 1), MaxWorkers)

	switch eff.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, invalid(fmt.Errorf("log.level 只能是 debug/info/warn/error，实际是 %q", eff.LogLevel))
	}
	switch eff.LogFormat {
	case "console", "json":
	default:
		return EffectiveConfig{}, invalid(fmt.Errorf("log.format 只能是 console 或 json，实际是 %q", eff.LogFormat))
	}

	var err error
	if eff.Images, err = mergeKind(domain.KindImage, cwd, cli.Images, fileBase, fc.Images); err != nil {
		return EffectiveConfig{}, invalid(fmt.Errorf("images：%w", err))
	}
	if eff.Masks, err = mergeKind(domain.KindMask, cwd, cli.Masks, fileBase, fc.Masks); err != nil {
		return EffectiveConfig{}, invalid(fmt.Errorf("masks：%w", err))
	}
	return eff, nil
}

func mergeKind(kind domain.Kind, cwd string, cli SpecArgs, fileBase string, fc SpecArgs) (KindConfig, error) {
	kc := KindConfig{
		Kind:   kind,
		Source: pickPath(cwd, cli.Source, fileBase, fc.Source),
		Spec: domain.ConversionSpec{
			Kind:        kind,
			Width:       pickInt(cli.Width, fc.Width, 0),
			Height:      pickInt(cli.Height, fc.Height, 0),
			JPEGQuality: pickInt(cli.JPEGQuality, fc.JPEGQuality, 0),
		},
	}
	if kc.Spec.Width < 0 || kc.Spec.Height < 0 {
		return KindConfig{}, fmt.Errorf("尺寸不能为负数：%dx%d", kc.Spec.Width, kc.Spec.Height)
	}
	if kc.Spec.JPEGQuality < 0 || kc.Spec.JPEGQuality > 100 {
		return KindConfig{}, fmt.Errorf("jpeg_quality 必须在 1..100 之间：%d", kc.Spec.JPEGQuality)
	}
	if f := pick(cli.Format, fc.Format, ""); f != "" {
		pf, err := domain.ParseFormat(f)
		if err != nil {
			return KindConfig{}, err
		}
		kc.Spec.Format = pf
	}
	r, err := domain.ParseResample(pick(cli.Resample, fc.Resample, ""))
	if err != nil {
		return KindConfig{}, err
	}
	kc.Spec.Resample = r
	return kc, nil
}

// RequireRoot 确认数据集目录已给出。
func (e EffectiveConfig) RequireRoot() error {
	if e.Root == "" {
		return &Error{Code: ErrCodeMissingField, Path: e.ConfigPath, Field: "root"}
	}
	return nil
}

// Kind 返回 kind 对应的合并配置。
func (e EffectiveConfig) Kind(kind domain.Kind) KindConfig {
	if kind == domain.KindMask {
		return e.Masks
	}
	return e.Images
}

// RequireConvert 确认转换 kind 所需的字段齐全：root、source、width、height、format。
func (e EffectiveConfig) RequireConvert(kind domain.Kind) error {
	if err := e.RequireRoot(); err != nil {
		return err
	}
	kc := e.Kind(kind)
	section := "images"
	if kind == domain.KindMask {
		section = "masks"
	}
	missing := func(field string) error {
		return &Error{Code: ErrCodeMissingField, Path: e.ConfigPath, Field: section + "." + field}
	}
	switch {
	case kc.Source == "":
		return missing("source")
	case kc.Spec.Width == 0:
		return missing("width")
	case kc.Spec.Height == 0:
		return missing("height")
	case kc.Spec.Format == "":
		return missing("format")
	}
	return nil
}

func pick(cli, file, def string) string {
	if s := strings.TrimSpace(cli); s != "" {
		return s
	}
	if s := strings.TrimSpace(file); s != "" {
		return s
	}
	return def
}

func pickInt(cli, file, def int) int {
	if cli != 0 {
		return cli
	}
	if file != 0 {
		return file
	}
	return def
}

func pickPath(cwd, cli, fileBase, file string) string {
	if strings.TrimSpace(cli) != "" {
		return absCleanFrom(cwd, cli)
	}
	if strings.TrimSpace(file) != "" {
		return absCleanFrom(fileBase, file)
	}
	return ""
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件；未知字段视为错误（多半是拼写错误）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return FileConfig{}, true, errors.New(sme.String())
		}
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
