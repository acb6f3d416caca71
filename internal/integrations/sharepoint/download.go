package sharepoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type DownloadedFile struct {
	Name         string `json:"name"`
	LocalPath    string `json:"local_path"`
	Size         int64  `json:"size"`
	SharePointID string `json:"sharepoint_id"`
	WebURL       string `json:"web_url"`
}

// DownloadFile streams one file into dir. Pre-authenticated download URLs are
// fetched without the bearer token.
func (c *Client) DownloadFile(ctx context.Context, item DriveItem, dir string) (DownloadedFile, error) {
	client := c.download
	src := item.DownloadURL
	if src == "" {
		client = c.api
		src = fmt.Sprintf("%s/drives/%s/items/%s/content", c.base, c.DriveID, item.ID)
	}
	c.logger.Info("sharepoint download", zap.String("file", item.Name), zap.Int64("bytes", item.Size))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return DownloadedFile{}, fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return DownloadedFile{}, fmt.Errorf("download %s: %w", item.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return DownloadedFile{}, fmt.Errorf("download %s: %w", item.Name, &APIError{Status: resp.StatusCode, Body: string(body)})
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return DownloadedFile{}, err
	}
	local := filepath.Join(dir, filepath.Base(item.Name))
	f, err := os.Create(local)
	if err != nil {
		return DownloadedFile{}, err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return DownloadedFile{}, fmt.Errorf("write %s: %w", local, err)
	}
	if item.Size > 0 && n != item.Size {
		c.logger.Warn("sharepoint size mismatch",
			zap.String("file", item.Name), zap.Int64("expected", item.Size), zap.Int64("got", n))
	}
	return DownloadedFile{
		Name:         item.Name,
		LocalPath:    local,
		Size:         n,
		SharePointID: item.ID,
		WebURL:       item.WebURL,
	}, nil
}

// DownloadFolder downloads every file in a folder. A file that fails is
// logged and skipped; listing failures are returned.
func (c *Client) DownloadFolder(ctx context.Context, folderID, dir string, recursive bool) ([]DownloadedFile, error) {
	items, err := c.FolderItems(ctx, folderID)
	if err != nil {
		return nil, err
	}
	var out []DownloadedFile
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		switch {
		case !item.IsFolder():
			f, err := c.DownloadFile(ctx, item, dir)
			if err != nil {
				c.logger.Error("sharepoint download failed", zap.String("file", item.Name), zap.Error(err))
				continue
			}
			out = append(out, f)
		case recursive:
			c.logger.Info("sharepoint subfolder", zap.String("folder", item.Name))
			sub, err := c.DownloadFolder(ctx, item.ID, filepath.Join(dir, filepath.Base(item.Name)), true)
			if err != nil {
				return out, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}

// DownloadForAFM finds the client folder whose name contains afm, then
// downloads its "mentoring" subfolder recursively into dest.
func (c *Client) DownloadForAFM(ctx context.Context, afm, dest string) ([]DownloadedFile, error) {
	found, err := c.SearchFolders(ctx, afm)
	if err != nil {
		return nil, err
	}
	var folders []DriveItem
	for _, f := range found {
		if strings.Contains(strings.ToLower(f.Name), strings.ToLower(afm)) {
			folders = append(folders, f)
		}
	}
	if len(folders) != len(found) {
		c.logger.Info("sharepoint filtered search results",
			zap.Int("results", len(found)), zap.Int("named", len(folders)))
	}
	if len(folders) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFolder, afm)
	}

	var names []string
	for _, folder := range folders {
		names = append(names, folder.Name)
		children, err := c.FolderItems(ctx, folder.ID)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if child.IsFolder() && strings.EqualFold(child.Name, "mentoring") {
				c.logger.Info("sharepoint mentoring folder", zap.String("parent", folder.Name))
				files, err := c.DownloadFolder(ctx, child.ID, dest, true)
				if err != nil {
					return files, err
				}
				c.logger.Info("sharepoint downloaded", zap.Int("files", len(files)), zap.String("dest", dest))
				return files, nil
			}
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoMentoringFolder, strings.Join(names, ", "))
}
