package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/url"
	"time"

	nhttp "github.com/chaos-io/rembatch/util/http"
)

const DefaultModel = "u2net"

// HTTPRemover 调用外部 rembg 推理服务。
// 服务约定：POST {endpoint}/api/remove?model={model}，multipart 字段 file，
// 响应为带 alpha 的 PNG 抠图。
type HTTPRemover struct {
	endpoint string
	model    string
	timeout  time.Duration
	cli      nhttp.IClient
}

type Option func(*HTTPRemover)

func WithModel(model string) Option {
	return func(r *HTTPRemover) {
		if model != "" {
			r.model = model
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(r *HTTPRemover) {
		r.timeout = timeout
	}
}

func WithClient(cli nhttp.IClient) Option {
	return func(r *HTTPRemover) {
		r.cli = cli
	}
}

func NewHTTPRemover(endpoint string, opts ...Option) *HTTPRemover {
	r := &HTTPRemover{
		endpoint: endpoint,
		model:    DefaultModel,
		timeout:  60 * time.Second,
		cli:      nhttp.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ModelID 标识推理服务与模型，二者任一变化都会使缓存失效
func (r *HTTPRemover) ModelID() string {
	return fmt.Sprintf("%s|%s", r.endpoint, r.model)
}

func (r *HTTPRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	_ = writer.Close()

	var respData []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: fmt.Sprintf("%s/api/remove?model=%s", r.endpoint, url.QueryEscape(r.model)),
		Method:     "POST",
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &respData,
		Timeout:    r.timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	cutout, _, err := image.Decode(bytes.NewReader(respData))
	if err != nil {
		return nil, fmt.Errorf("decode cutout: %w", err)
	}

	return cutout, nil
}
