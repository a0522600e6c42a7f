package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// IsURL http/https 地址
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

type Download struct {
	Url           string
	Target        string
	TotalSections int
	Client        *http.Client
}

// DownloadFile 服务端支持 Range 时分段并发下载，否则整体下载
func DownloadFile(ctx context.Context, url string, targetPath string) error {
	d := &Download{
		Url:           url,
		Target:        targetPath,
		TotalSections: 5,
		Client:        http.DefaultClient,
	}
	return d.Run(ctx)
}

func (d *Download) Run(ctx context.Context) error {
	r, err := d.newRequest(ctx, http.MethodHead)
	if err != nil {
		return err
	}
	res, err := d.Client.Do(r)
	if err != nil {
		return fmt.Errorf("failed to execute HEAD request: %w", err)
	}
	res.Body.Close()

	if res.StatusCode > 299 {
		return fmt.Errorf("server returned error status code: %d", res.StatusCode)
	}

	size, err := strconv.Atoi(res.Header.Get("Content-Length"))
	if err != nil || size < d.TotalSections || res.Header.Get("Accept-Ranges") != "bytes" {
		return d.whole(ctx)
	}

	sections := splitSections(size, d.TotalSections)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for i, section := range sections {
		wg.Add(1)
		go func(i int, section [2]int) {
			defer wg.Done()
			if err := d.downloadSection(ctx, i, section); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(i, section)
	}
	wg.Wait()

	if errs != nil {
		d.removeParts(len(sections))
		return errs
	}
	if err := d.mergeSections(len(sections)); err != nil {
		return fmt.Errorf("failed to merge sections: %w", err)
	}
	return nil
}

// splitSections 把 [0, size) 均分为 n 段闭区间，size >= n 时每段至少 1 字节
func splitSections(size, n int) [][2]int {
	sections := make([][2]int, n)
	for i := range sections {
		sections[i] = [2]int{i * size / n, (i+1)*size/n - 1}
	}
	return sections
}

func (d *Download) newRequest(ctx context.Context, method string) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, d.Url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	r.Header.Set("User-Agent", "tdxport")
	return r, nil
}

func (d *Download) whole(ctx context.Context) (err error) {
	r, err := d.newRequest(ctx, http.MethodGet)
	if err != nil {
		return err
	}
	resp, err := d.Client.Do(r)
	if err != nil {
		return fmt.Errorf("failed to execute GET request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned error status code: %d", resp.StatusCode)
	}

	f, err := os.Create(d.Target)
	if err != nil {
		return fmt.Errorf("failed to create target file %s: %w", d.Target, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	_, err = io.Copy(f, resp.Body)
	return err
}

func (d *Download) partName(i int) string {
	return fmt.Sprintf("%s.part%d", d.Target, i)
}

func (d *Download) downloadSection(ctx context.Context, i int, section [2]int) (err error) {
	r, err := d.newRequest(ctx, http.MethodGet)
	if err != nil {
		return err
	}
	r.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", section[0], section[1]))
	resp, err := d.Client.Do(r)
	if err != nil {
		return fmt.Errorf("failed to execute GET request for section %d: %w", i, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("server does not support partial content for section %d: status code %d", i, resp.StatusCode)
	}

	f, err := os.Create(d.partName(i))
	if err != nil {
		return fmt.Errorf("failed to create part file for section %d: %w", i, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write section %d to file: %w", i, err)
	}
	return nil
}

func (d *Download) mergeSections(n int) (err error) {
	f, err := os.Create(d.Target)
	if err != nil {
		return fmt.Errorf("failed to create target file %s: %w", d.Target, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	for i := 0; i < n; i++ {
		data, err := os.ReadFile(d.partName(i))
		if err != nil {
			return fmt.Errorf("failed to read part file %s: %w", d.partName(i), err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("failed to write part %d to target file: %w", i, err)
		}
		if err := os.Remove(d.partName(i)); err != nil {
			return fmt.Errorf("failed to remove part file %s: %w", d.partName(i), err)
		}
	}
	return nil
}

func (d *Download) removeParts(n int) {
	for i := 0; i < n; i++ {
		os.Remove(d.partName(i))
	}
}
