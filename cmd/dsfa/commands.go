package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/dsfa/internal/app/run"
	"github.com/John-Robertt/dsfa/internal/config"
	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/scan"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	var under string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "创建数据集目录结构（images/ annotations/ lst/）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(under) != "" {
				ctx.cli.Root = filepath.Join(under, domain.DefaultRootName)
			}
			return ctx.stage(cmd, domain.StageInit, config.EffectiveConfig.RequireRoot,
				func(c context.Context, r *run.Runner, _ config.EffectiveConfig) domain.Report {
					return r.Init(c)
				})
		},
	}
	cmd.Flags().StringVar(&under, "under", "", "在该目录下创建 "+domain.DefaultRootName+"/ 作为数据集目录")
	return cmd
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "把源目录中的图像或 mask 统一尺寸与格式后写入数据集",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConvertKindCommand(ctx, domain.KindImage, "images", &ctx.cli.Images))
	cmd.AddCommand(newConvertKindCommand(ctx, domain.KindMask, "masks", &ctx.cli.Masks))
	return cmd
}

func newConvertKindCommand(ctx *commandContext, kind domain.Kind, use string, sa *config.SpecArgs) *cobra.Command {
	stage := domain.StageConvertImage
	short := "转换图像到 images/"
	if kind == domain.KindMask {
		stage = domain.StageConvertMask
		short = "转换 mask 到 annotations/（只允许最近邻缩放）"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			require := func(eff config.EffectiveConfig) error { return eff.RequireConvert(kind) }
			return ctx.stage(cmd, stage, require,
				func(c context.Context, r *run.Runner, eff config.EffectiveConfig) domain.Report {
					kc := eff.Kind(kind)
					return r.Convert(c, kc.Source, kc.Spec)
				})
		},
	}
	addSpecFlags(cmd, sa, "")
	return cmd
}

func newManifestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "按基名配对 images/ 与 annotations/，重写 lst/lst.txt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.stage(cmd, domain.StageManifest, config.EffectiveConfig.RequireRoot,
				func(c context.Context, r *run.Runner, _ config.EffectiveConfig) domain.Report {
					return r.Manifest(c)
				})
		},
	}
}

func newPackageCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package",
		Short: "把数据集目录打包为 zip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.stage(cmd, domain.StagePackage, config.EffectiveConfig.RequireRoot,
				func(c context.Context, r *run.Runner, _ config.EffectiveConfig) domain.Report {
					return r.Package(c)
				})
		},
	}
	cmd.Flags().StringVar(&ctx.cli.ArchiveDir, "dest", "", "zip 输出目录（默认为数据集目录的父目录）")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "依次执行 init、转换图像、转换 mask、生成清单、打包",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := ctx.load()
			if err == nil {
				err = requireAll(eff)
			}
			if err != nil {
				return ctx.emit(cmd, []domain.Report{ctx.configErrorReport(domain.StageInit, err)}, true)
			}
			r := ctx.runner(cmd, eff)
			return ctx.emit(cmd, r.RunAll(cmd.Context(), eff.Images, eff.Masks), true)
		},
	}
	addSpecFlags(cmd, &ctx.cli.Images, "image-")
	addSpecFlags(cmd, &ctx.cli.Masks, "mask-")
	cmd.Flags().StringVar(&ctx.cli.ArchiveDir, "dest", "", "zip 输出目录（默认为数据集目录的父目录）")
	return cmd
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var mask bool
	cmd := &cobra.Command{
		Use:   "inspect DIR",
		Short: "列出目录中每个输入文件的格式与尺寸",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.KindImage
			if mask {
				kind = domain.KindMask
			}
			entries, err := scan.Inspect(args[0], kind)
			if err != nil {
				return err
			}
			return ctx.emitInspect(cmd, entries)
		},
	}
	cmd.Flags().BoolVar(&mask, "mask", false, "按 mask 处理（额外统计标签数）")
	return cmd
}

// stage 是单阶段命令的公共流程：加载配置 → 校验 → 执行 → 输出报告。
// 配置错误同样降级为一份失败报告输出。
func (c *commandContext) stage(
	cmd *cobra.Command,
	stage string,
	require func(config.EffectiveConfig) error,
	fn func(context.Context, *run.Runner, config.EffectiveConfig) domain.Report,
) error {
	eff, err := c.load()
	if err == nil {
		err = require(eff)
	}
	if err != nil {
		return c.emit(cmd, []domain.Report{c.configErrorReport(stage, err)}, false)
	}
	r := c.runner(cmd, eff)
	return c.emit(cmd, []domain.Report{fn(cmd.Context(), r, eff)}, false)
}

func requireAll(eff config.EffectiveConfig) error {
	if err := eff.RequireConvert(domain.KindImage); err != nil {
		return err
	}
	return eff.RequireConvert(domain.KindMask)
}

func addSpecFlags(cmd *cobra.Command, sa *config.SpecArgs, prefix string) {
	f := cmd.Flags()
	f.StringVar(&sa.Source, prefix+"source", "", "源目录")
	f.IntVar(&sa.Width, prefix+"width", 0, "目标宽度（像素）")
	f.IntVar(&sa.Height, prefix+"height", 0, "目标高度（像素）")
	f.StringVar(&sa.Format, prefix+"format", "", "目标格式：png|jpeg|bmp|tiff")
	f.StringVar(&sa.Resample, prefix+"resample", "", fmt.Sprintf("缩放算法：%s|%s|%s|%s",
		domain.ResampleNearest, domain.ResampleCatmullRom, domain.ResampleBiLinear, domain.ResampleApproxBiLinear))
	f.IntVar(&sa.JPEGQuality, prefix+"jpeg-quality", 0, "JPEG 质量 1..100（默认 95）")
}
