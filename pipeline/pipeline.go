package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/chaos-io/rembatch/rembg"
	"github.com/chaos-io/rembatch/util"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"

	jpegQuality = 95
)

// Cache 结果缓存。Get 未命中时返回 (nil, nil)。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

// ModelIdentifier 模型标识。换模型或换推理服务后缓存键必须不同，
// 否则会把旧模型的结果当新模型的输出返回。
type ModelIdentifier interface {
	ModelID() string
}

// Options 一个批次内共享的处理参数
type Options struct {
	Background color.NRGBA
	Format     string // png (默认) 或 jpeg
	MaxWidth   int    // 0 表示不缩放
}

func (o *Options) format() string {
	if o.Format == FormatJPEG {
		return FormatJPEG
	}
	return FormatPNG
}

// InputFile 批次中的一个上传文件
type InputFile struct {
	Filename string
	Data     []byte
}

// Output 单个文件的处理结果
type Output struct {
	Filename string
	Data     []byte
}

// BatchResult 按输入顺序收集成功输出与失败记录
type BatchResult struct {
	Outputs  []Output
	Failures []*FileFailure
}

func (r *BatchResult) Total() int { return len(r.Outputs) + len(r.Failures) }

// Summary 部分成功的汇总信息
func (r *BatchResult) Summary() string {
	return fmt.Sprintf("%d of %d images processed successfully", len(r.Outputs), r.Total())
}

// Processor 合成流水线。模型实例在进程启动时创建一次并复用。
type Processor struct {
	remover rembg.Remover
	modelID string
	cache   Cache
}

func NewProcessor(remover rembg.Remover, cache Cache) *Processor {
	p := &Processor{
		remover: remover,
		cache:   cache,
	}
	if m, ok := remover.(ModelIdentifier); ok {
		p.modelID = m.ModelID()
	} else {
		p.modelID = fmt.Sprintf("%T", remover)
	}
	return p
}

// ProcessBatch 逐个处理批次内的文件。单个文件失败只记录，不中断批次。
func (p *Processor) ProcessBatch(ctx context.Context, files []InputFile, opts Options) *BatchResult {
	result := &BatchResult{}
	seen := make(map[string]int, len(files))

	for _, file := range files {
		data, err := p.ProcessOne(ctx, file.Data, opts)
		if err != nil {
			result.Failures = append(result.Failures, &FileFailure{
				Filename: file.Filename,
				Stage:    stageOf(err),
				Err:      err,
			})
			util.Logger.Warn("image processing failed",
				zap.String("filename", file.Filename),
				zap.Error(err))
			continue
		}

		// 只给成功的输出命名，失败文件不占用序号
		name := disambiguate(outputName(file.Filename, opts.format()), seen)
		result.Outputs = append(result.Outputs, Output{Filename: name, Data: data})
	}

	return result
}

// ProcessOne 解码 → 去背景 → 合成 → 编码
func (p *Processor) ProcessOne(ctx context.Context, data []byte, opts Options) ([]byte, error) {
	key := p.cacheKey(data, &opts)
	if p.cache != nil {
		cached, err := p.cache.Get(ctx, key)
		if err != nil {
			util.Logger.Warn("cache get failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	img, _, err := util.DecodeImage(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	cutout, err := p.remover.Remove(ctx, img)
	if err != nil {
		return nil, &ModelError{Err: err}
	}

	mask, err := AlphaMask(cutout, img.Bounds())
	if err != nil {
		return nil, &ModelError{Err: err}
	}

	img, mask = downscale(img, mask, opts.MaxWidth)

	composited, err := Composite(img, mask, opts.Background)
	if err != nil {
		return nil, &ModelError{Err: err}
	}

	encoded, err := encode(composited, opts.format())
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, encoded); err != nil {
			util.Logger.Warn("cache set failed", zap.Error(err))
		}
	}

	return encoded, nil
}

func (p *Processor) cacheKey(data []byte, opts *Options) string {
	return fmt.Sprintf("rembatch:%s:%s:%02x%02x%02x:%d:%s",
		util.BytesMD5([]byte(p.modelID)),
		util.BytesMD5(data),
		opts.Background.R, opts.Background.G, opts.Background.B,
		opts.MaxWidth, opts.format())
}

func encode(img image.Image, format string) ([]byte, error) {
	buf := &bytes.Buffer{}
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, err
		}
	default:
		if err := png.Encode(buf, img); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// outputName 输出文件命名：bg_<原名去扩展>.<格式>
func outputName(filename, format string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		base = "image"
	}
	ext := "png"
	if format == FormatJPEG {
		ext = "jpg"
	}
	return fmt.Sprintf("bg_%s.%s", base, ext)
}

// disambiguate 重名文件追加序号后缀，保证归档条目唯一
func disambiguate(name string, seen map[string]int) string {
	n, ok := seen[name]
	seen[name] = n + 1
	if !ok {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
	for seen[candidate] > 0 {
		n++
		seen[name] = n + 1
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	seen[candidate] = 1
	return candidate
}

// ParseHexColor 解析 #RRGGBB 背景色
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want RRGGBB", s)
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
