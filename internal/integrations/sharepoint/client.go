// Package sharepoint finds and downloads client folders from a SharePoint
// document library through the Microsoft Graph API.
package sharepoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"mentorreport/internal/httpx"
)

const graphScope = "https://graph.microsoft.com/.default"

type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteName     string
	// DriveName selects a document library; empty means the site's default drive.
	DriveName string

	GraphBaseURL  string
	AuthorityHost string
}

func (c Config) missing() []string {
	var out []string
	if c.TenantID == "" {
		out = append(out, "SHAREPOINT_TENANT_ID")
	}
	if c.ClientID == "" {
		out = append(out, "SHAREPOINT_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		out = append(out, "SHAREPOINT_CLIENT_SECRET")
	}
	if c.SiteName == "" {
		out = append(out, "SHAREPOINT_SITE_NAME")
	}
	return out
}

type Client struct {
	api      *http.Client
	download *http.Client
	base     string
	timeout  time.Duration
	logger   *zap.Logger

	SiteID  string
	DriveID string
}

type DriveItem struct {
	ID           string
	Name         string
	Type         string // "file" or "folder"
	Size         int64
	DownloadURL  string
	WebURL       string
	LastModified time.Time
}

func (i DriveItem) IsFolder() bool { return i.Type == "folder" }

type graphItem struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Size                 int64           `json:"size"`
	Folder               json.RawMessage `json:"folder"`
	DownloadURL          string          `json:"@microsoft.graph.downloadUrl"`
	WebURL               string          `json:"webUrl"`
	LastModifiedDateTime string          `json:"lastModifiedDateTime"`
}

func (g graphItem) toItem() DriveItem {
	item := DriveItem{
		ID:          g.ID,
		Name:        g.Name,
		Type:        "file",
		Size:        g.Size,
		DownloadURL: g.DownloadURL,
		WebURL:      g.WebURL,
	}
	if len(g.Folder) > 0 && string(g.Folder) != "null" {
		item.Type = "folder"
	}
	if t, err := time.Parse(time.RFC3339, g.LastModifiedDateTime); err == nil {
		item.LastModified = t
	}
	return item
}

type itemPage struct {
	Value    []graphItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// New authenticates with client credentials and resolves the site and drive
// ids. The token is refreshed by the returned client as needed.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if missing := cfg.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("sharepoint credentials missing; set %s", strings.Join(missing, ", "))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.GraphBaseURL, "/")
	if base == "" {
		base = "https://graph.microsoft.com/v1.0"
	}
	authority := strings.TrimRight(cfg.AuthorityHost, "/")
	if authority == "" {
		authority = "https://login.microsoftonline.com"
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, cfg.TenantID),
		Scopes:       []string{graphScope},
	}
	external := httpx.ExternalHTTPClient()
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, external)
	ts := cc.TokenSource(tokenCtx)
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("sharepoint authentication failed: %w", err)
	}
	logger.Info("sharepoint authenticated")

	c := &Client{
		api:      oauth2.NewClient(tokenCtx, ts),
		download: httpx.DownloadClient(),
		base:     base,
		timeout:  external.Timeout,
		logger:   logger,
	}
	var err error
	if c.SiteID, err = c.resolveSite(ctx, cfg.SiteName); err != nil {
		return nil, err
	}
	if c.DriveID, err = c.resolveDrive(ctx, cfg.DriveName); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) resolveSite(ctx context.Context, site string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.getJSON(ctx, c.base+"/sites/root:/sites/"+url.PathEscape(site), &resp); err != nil {
		return "", fmt.Errorf("get site id for %q: %w", site, err)
	}
	c.logger.Info("sharepoint site found", zap.String("site", site), zap.String("id", resp.ID))
	return resp.ID, nil
}

type drive struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Client) resolveDrive(ctx context.Context, name string) (string, error) {
	if name == "" {
		var d drive
		if err := c.getJSON(ctx, fmt.Sprintf("%s/sites/%s/drive", c.base, c.SiteID), &d); err != nil {
			return "", fmt.Errorf("get default drive: %w", err)
		}
		c.logger.Info("sharepoint default drive", zap.String("name", d.Name), zap.String("id", d.ID))
		return d.ID, nil
	}

	var resp struct {
		Value []drive `json:"value"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/sites/%s/drives", c.base, c.SiteID), &resp); err != nil {
		return "", fmt.Errorf("list drives: %w", err)
	}
	for _, d := range resp.Value {
		if d.Name == name {
			c.logger.Info("sharepoint drive found", zap.String("name", d.Name), zap.String("id", d.ID))
			return d.ID, nil
		}
	}
	names := make([]string, 0, len(resp.Value))
	for _, d := range resp.Value {
		if strings.EqualFold(d.Name, name) {
			c.logger.Info("sharepoint drive found (case-insensitive)", zap.String("name", d.Name), zap.String("id", d.ID))
			return d.ID, nil
		}
		names = append(names, d.Name)
	}
	return "", fmt.Errorf("drive %q not found; available drives: %s", name, strings.Join(names, ", "))
}

// SearchFolders runs a drive search and keeps folder hits only.
func (c *Client) SearchFolders(ctx context.Context, query string) ([]DriveItem, error) {
	q := url.PathEscape(strings.ReplaceAll(query, "'", "''"))
	items, err := c.listAll(ctx, fmt.Sprintf("%s/drives/%s/root/search(q='%s')", c.base, c.DriveID, q))
	if err != nil {
		return nil, fmt.Errorf("search folders %q: %w", query, err)
	}
	var folders []DriveItem
	for _, it := range items {
		if it.IsFolder() {
			folders = append(folders, it)
		}
	}
	c.logger.Info("sharepoint search", zap.String("query", query), zap.Int("folders", len(folders)))
	return folders, nil
}

// FolderItems lists the direct children of a folder.
func (c *Client) FolderItems(ctx context.Context, folderID string) ([]DriveItem, error) {
	items, err := c.listAll(ctx, fmt.Sprintf("%s/drives/%s/items/%s/children", c.base, c.DriveID, url.PathEscape(folderID)))
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}
	return items, nil
}

func (c *Client) listAll(ctx context.Context, next string) ([]DriveItem, error) {
	var out []DriveItem
	for next != "" {
		var page itemPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, g := range page.Value {
			out = append(out, g.toItem())
		}
		next = page.NextLink
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.api.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// APIError is a non-200 answer from Graph.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if r := []rune(body); len(r) > 300 {
		body = string(r[:300]) + "..."
	}
	return fmt.Sprintf("graph API returned %d: %s", e.Status, body)
}

var (
	ErrNoFolder          = errors.New("no SharePoint folder matches the AFM")
	ErrNoMentoringFolder = errors.New("no 'mentoring' subfolder found")
)
