package beeswax

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"go.uber.org/zap"
)

const (
	creativeAssetPath = "/rest/creative_asset"
	uploadFormField   = "creative_content"

	// assetSource keys the limiter and labels metrics for calls to the source URL.
	assetSource = "asset-source"
)

// ErrMissingSource is returned when neither a source URL nor content bytes are given.
var ErrMissingSource = errors.New("beeswax: upload requires a source url or content bytes")

// UploadParams describe a creative asset to upload. Either SourceURL or
// ContentBytes must be set; ContentBytes wins when both are.
type UploadParams struct {
	SourceURL    string
	ContentBytes []byte

	AdvertiserID      int64
	CreativeAssetName string
	SizeInBytes       int64
	Notes             string
	Active            bool
}

// assetDefinition collects the known metadata fields, omitting zero values.
func (p UploadParams) assetDefinition() Entity {
	def := Entity{}
	if p.AdvertiserID != 0 {
		def["advertiser_id"] = p.AdvertiserID
	}
	if p.CreativeAssetName != "" {
		def["creative_asset_name"] = p.CreativeAssetName
	}
	if p.SizeInBytes != 0 {
		def["size_in_bytes"] = p.SizeInBytes
	}
	if p.Notes != "" {
		def["notes"] = p.Notes
	}
	if p.Active {
		def["active"] = true
	}
	return def
}

// UploadCreativeAsset creates a creative asset record, uploads its content and
// returns the finalized asset. Each step fails on its own; a placeholder asset
// created before a failed upload is not cleaned up.
func (c *Client) UploadCreativeAsset(ctx context.Context, p UploadParams) (Entity, error) {
	if p.SourceURL == "" && len(p.ContentBytes) == 0 {
		return nil, ErrMissingSource
	}
	def := p.assetDefinition()
	name, err := assetName(p)
	if err != nil {
		return nil, err
	}
	def["creative_asset_name"] = name

	size, err := c.contentLength(ctx, p)
	if err != nil {
		return nil, err
	}
	def["size_in_bytes"] = size

	created, err := c.Request(ctx, http.MethodPost, RequestOptions{Path: creativeAssetPath, Body: def})
	if err != nil {
		return nil, err
	}
	placeholderID, err := created.ID()
	if err != nil {
		return nil, err
	}

	assetID, err := c.postAssetContent(ctx, placeholderID, name, p)
	if err != nil {
		c.logger.Warn("beeswax.asset_upload_failed",
			zap.Int64("creative_asset_id", placeholderID),
			zap.Error(err))
		return nil, err
	}

	asset, err := c.Request(ctx, http.MethodGet, RequestOptions{
		Path: creativeAssetPath + "/" + strconv.FormatInt(assetID, 10),
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("beeswax.asset_uploaded",
		zap.Int64("creative_asset_id", assetID),
		zap.String("name", name),
		zap.Int64("size_in_bytes", size))
	return asset.First()
}

func assetName(p UploadParams) (string, error) {
	if p.CreativeAssetName != "" {
		return p.CreativeAssetName, nil
	}
	if p.SourceURL == "" {
		return "", errors.New("beeswax: upload of content bytes requires a creative_asset_name")
	}
	u, err := url.Parse(p.SourceURL)
	if err != nil {
		return "", fmt.Errorf("beeswax: invalid source url %q: %w", p.SourceURL, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = ""
	}
	return name, nil
}

// contentLength sizes the upload: the byte slice length, or the
// content-length reported by a HEAD on the source URL.
func (c *Client) contentLength(ctx context.Context, p UploadParams) (int64, error) {
	if len(p.ContentBytes) > 0 {
		return int64(len(p.ContentBytes)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.SourceURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.exec.Send(ctx, req, assetSource, assetSource)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{StatusCode: resp.StatusCode, Method: http.MethodHead, URL: p.SourceURL}
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n, nil
		}
	} else if resp.ContentLength >= 0 {
		return resp.ContentLength, nil
	}
	return 0, fmt.Errorf("beeswax: unable to detect content-length of source url %s", p.SourceURL)
}

// openContent returns the asset bytes as a stream.
func (c *Client) openContent(ctx context.Context, p UploadParams) (io.ReadCloser, error) {
	if len(p.ContentBytes) > 0 {
		return io.NopCloser(bytes.NewReader(p.ContentBytes)), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.SourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.exec.Send(ctx, req, assetSource, assetSource)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Method: http.MethodGet, URL: p.SourceURL}
	}
	return resp.Body, nil
}

// postAssetContent streams the content as a multipart form to the upload
// endpoint of the placeholder asset and returns the id the API confirms.
func (c *Client) postAssetContent(ctx context.Context, assetID int64, name string, p UploadParams) (int64, error) {
	content, err := c.openContent(ctx, p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = content.Close() }()

	pr, pw := io.Pipe()
	defer func() { _ = pr.Close() }()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile(uploadFormField, name)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = form.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	target := c.resolve(creativeAssetPath + "/upload/" + strconv.FormatInt(assetID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, pr)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var body Body
	if err := c.exec.DoJSON(ctx, req, c.creds.Email, &body); err != nil {
		return 0, err
	}
	if body.Failed() {
		return 0, &FailureError{Body: body.Raw}
	}
	return body.ID()
}
