// Package provider 负责从外部数据源拉取原始数据集
package provider

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ashwinyue/xai-bench/internal/service/types"
)

// Provider 原始数据获取接口
type Provider interface {
	// Fetch 拉取原始 CSV 内容
	Fetch(ctx context.Context, source, identifier string) ([]byte, error)
}

// Downloader HTTP/本地文件下载器
type Downloader struct {
	client *http.Client
}

// NewDownloader 创建下载器
func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Downloader{client: &http.Client{Timeout: timeout}}
}

// NewDownloaderWithClient 使用外部 HTTP 客户端创建下载器
func NewDownloaderWithClient(client *http.Client) *Downloader {
	if client == nil {
		return NewDownloader(0)
	}
	return &Downloader{client: client}
}

// Fetch 按来源类型拉取数据，zip/gzip 自动解包为 CSV
func (d *Downloader) Fetch(ctx context.Context, source, identifier string) ([]byte, error) {
	var raw []byte
	var err error
	switch source {
	case "http", "https", "url":
		raw, err = d.fetchHTTP(ctx, identifier)
	case "local", "file":
		raw, err = os.ReadFile(identifier)
		if err != nil {
			err = types.NewUpstreamIO("read local dataset", err)
		}
	default:
		return nil, types.NewValidation("unsupported dataset source %q", source)
	}
	if err != nil {
		return nil, err
	}
	return extractCSV(raw, identifier)
}

func (d *Downloader) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewValidation("invalid dataset url %q: %v", url, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, types.NewUpstreamIO("download dataset", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewUpstreamIO("download dataset",
			fmt.Errorf("unexpected status %s", resp.Status))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewUpstreamIO("read dataset body", err)
	}
	return data, nil
}

// extractCSV 识别压缩格式并取出其中的 CSV 内容
func extractCSV(data []byte, identifier string) ([]byte, error) {
	switch {
	case isZip(data):
		return extractFromZip(data)
	case isGzip(data):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, types.NewUpstreamIO("open gzip archive", err)
		}
		defer gz.Close()
		out, err := io.ReadAll(gz)
		if err != nil {
			return nil, types.NewUpstreamIO("decompress gzip archive", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

func isZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && data[2] == 0x03 && data[3] == 0x04
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// extractFromZip 取出压缩包中第一个 CSV 文件
func extractFromZip(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewUpstreamIO("open zip archive", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, types.NewUpstreamIO("open zip entry", err)
		}
		out, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, types.NewUpstreamIO("read zip entry", err)
		}
		return out, nil
	}
	return nil, types.NewUpstreamIO("extract zip archive", fmt.Errorf("no csv entry found"))
}

var _ Provider = (*Downloader)(nil)
