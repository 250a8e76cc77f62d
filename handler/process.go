package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/chaos-io/rembatch/config"
	"github.com/chaos-io/rembatch/model"
	"github.com/chaos-io/rembatch/pipeline"
	"github.com/chaos-io/rembatch/util"
)

type ProcessHandler struct {
	cfg       *config.Config
	processor *pipeline.Processor
}

func NewProcessHandler(cfg *config.Config, processor *pipeline.Processor) *ProcessHandler {
	return &ProcessHandler{
		cfg:       cfg,
		processor: processor,
	}
}

// Process 处理一批上传图片：去背景并合成到纯色背景。
// 单个成功结果直接返回图片字节，多个结果打包为 ZIP。
func (h *ProcessHandler) Process(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid multipart form",
			Error:   err.Error(),
		})
		return
	}

	opts, err := h.parseOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid processing options",
			Error:   err.Error(),
		})
		return
	}

	files, failures := h.collectInputs(c, form)
	if len(files) == 0 && len(failures) == 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "no images uploaded",
		})
		return
	}

	result := h.processor.ProcessBatch(c.Request.Context(), files, opts)
	result.Failures = append(failures, result.Failures...)

	if len(result.Outputs) == 0 {
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{
			Success:  false,
			Message:  result.Summary(),
			Failures: toFileErrors(result.Failures),
		})
		return
	}

	c.Header("X-Process-Summary", result.Summary())

	if len(result.Outputs) == 1 {
		out := result.Outputs[0]
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
		c.Data(http.StatusOK, contentTypeFor(opts.Format), out.Data)
		return
	}

	archive, err := pipeline.Bundle(result.Outputs)
	if err != nil {
		util.Logger.Error("failed to bundle outputs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "failed to build archive",
			Error:   err.Error(),
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="rembatch.zip"`)
	c.Data(http.StatusOK, "application/zip", archive)
}

// parseOptions 读取批次级参数，缺省值来自配置
func (h *ProcessHandler) parseOptions(c *gin.Context) (pipeline.Options, error) {
	bg, err := pipeline.ParseHexColor(c.DefaultPostForm("bg_color", h.cfg.Pipeline.Background))
	if err != nil {
		return pipeline.Options{}, err
	}

	maxWidth := h.cfg.Pipeline.MaxWidth
	if raw := c.PostForm("max_width"); raw != "" {
		maxWidth, err = strconv.Atoi(raw)
		if err != nil || maxWidth < 0 {
			return pipeline.Options{}, fmt.Errorf("invalid max_width %q", raw)
		}
	}

	format := strings.ToLower(c.DefaultPostForm("format", h.cfg.Pipeline.Format))
	if format != pipeline.FormatPNG && format != pipeline.FormatJPEG {
		return pipeline.Options{}, fmt.Errorf("unsupported format %q", format)
	}

	return pipeline.Options{
		Background: bg,
		Format:     format,
		MaxWidth:   maxWidth,
	}, nil
}

// collectInputs 读取上传文件与可选的远程图片地址。
// 超限或类型不符按单文件失败记录，批次继续。
func (h *ProcessHandler) collectInputs(c *gin.Context, form *multipart.Form) ([]pipeline.InputFile, []*pipeline.FileFailure) {
	var files []pipeline.InputFile
	var failures []*pipeline.FileFailure

	maxSize := h.cfg.Upload.MaxSizeBytes()

	for _, fh := range form.File["images"] {
		if fh.Size > maxSize {
			failures = append(failures, &pipeline.FileFailure{
				Filename: fh.Filename,
				Stage:    pipeline.StageDecode,
				Err:      fmt.Errorf("file exceeds size limit of %s", units.HumanSize(float64(maxSize))),
			})
			continue
		}

		if ct := fh.Header.Get("Content-Type"); ct != "" && !h.isAllowedType(ct) {
			failures = append(failures, &pipeline.FileFailure{
				Filename: fh.Filename,
				Stage:    pipeline.StageDecode,
				Err:      fmt.Errorf("unsupported content type %s", ct),
			})
			continue
		}

		data, err := h.spoolAndRead(c, fh)
		if err != nil {
			util.Logger.Error("failed to read uploaded file",
				zap.String("filename", fh.Filename), zap.Error(err))
			failures = append(failures, &pipeline.FileFailure{
				Filename: fh.Filename,
				Stage:    pipeline.StageDecode,
				Err:      err,
			})
			continue
		}

		files = append(files, pipeline.InputFile{Filename: fh.Filename, Data: data})
	}

	if rawURL := c.PostForm("image_url"); rawURL != "" {
		data, err := util.DownloadImage(rawURL)
		if err != nil {
			failures = append(failures, &pipeline.FileFailure{
				Filename: rawURL,
				Stage:    pipeline.StageDecode,
				Err:      err,
			})
		} else {
			files = append(files, pipeline.InputFile{Filename: remoteFilename(rawURL), Data: data})
		}
	}

	return files, failures
}

// spoolAndRead 上传内容落到临时目录再读回，处理完即删。
// 进程异常退出的残留由定时清理兜底。
func (h *ProcessHandler) spoolAndRead(c *gin.Context, fh *multipart.FileHeader) ([]byte, error) {
	spoolPath := filepath.Join(h.cfg.Upload.SpoolDir, ksuid.New().String()+filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, spoolPath); err != nil {
		return nil, fmt.Errorf("save uploaded file: %w", err)
	}
	defer func() {
		if err := os.Remove(spoolPath); err != nil {
			util.Logger.Warn("failed to delete spool file",
				zap.String("file", spoolPath), zap.Error(err))
		}
	}()

	return os.ReadFile(spoolPath)
}

func (h *ProcessHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func remoteFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "remote_image"
	}
	return path.Base(u.Path)
}

func contentTypeFor(format string) string {
	if format == pipeline.FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func toFileErrors(failures []*pipeline.FileFailure) []model.FileError {
	out := make([]model.FileError, 0, len(failures))
	for _, f := range failures {
		out = append(out, model.FileError{
			Filename: f.Filename,
			Stage:    f.Stage,
			Error:    f.Err.Error(),
		})
	}
	return out
}
