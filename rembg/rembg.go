package rembg

import (
	"context"
	"image"
)

// Remover 去除背景，返回带 alpha 通道的抠图结果。
// 结果尺寸与输入一致，alpha 即前景掩码。
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// NoopRemover 不做任何处理，原样返回（用于未配置模型的调试场景）
type NoopRemover struct{}

func NewNoopRemover() *NoopRemover {
	return &NoopRemover{}
}

func (d *NoopRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	return img, nil
}

func (d *NoopRemover) ModelID() string {
	return "noop"
}
