package scan

import (
	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/infra/imgx"
)

// Entry 是 Inspect 的单行结果。
type Entry struct {
	Name     string `json:"name"`
	BaseName string `json:"base_name"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	// Labels 只对 mask 统计：不同像素值的个数。
	Labels int    `json:"labels,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Inspect 列出 dir 中每个输入文件的格式与尺寸；mask 额外统计标签数（需要完整解码）。
// 读不出来的文件照常列出，并带上错误信息。
func Inspect(dir string, kind domain.Kind) ([]Entry, error) {
	files, _, err := ScanSources(dir)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(files))
	for _, f := range files {
		e := Entry{Name: f.Name, BaseName: f.BaseName}
		if kind == domain.KindMask {
			img, format, err := imgx.DecodeFile(f.Path)
			if err != nil {
				e.Error = err.Error()
				out = append(out, e)
				continue
			}
			m := imgx.NormalizeMask(img)
			e.Format, e.Width, e.Height = format, m.Bounds().Dx(), m.Bounds().Dy()
			e.Labels = len(imgx.Labels(m))
		} else {
			cfg, format, err := imgx.DecodeConfigFile(f.Path)
			if err != nil {
				e.Error = err.Error()
				out = append(out, e)
				continue
			}
			e.Format, e.Width, e.Height = format, cfg.Width, cfg.Height
		}
		out = append(out, e)
	}
	return out, nil
}
