package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"postcard-service/internal/config"
	"postcard-service/internal/errs"
	"postcard-service/internal/logger"
)

// Uploader pushes rendered artifacts to hosted storage and returns a public
// URL for each.
type Uploader interface {
	UploadImage(ctx context.Context, data []byte, publicID string) (string, error)
}

// CloudinaryUploader uploads JPEG artifacts via Cloudinary's signed upload
// endpoint.
type CloudinaryUploader struct {
	cfg    config.StorageConfig
	client *http.Client
	log    *logger.Logger
	now    func() time.Time
}

func NewCloudinaryUploader(cfg config.StorageConfig, log *logger.Logger) *CloudinaryUploader {
	return &CloudinaryUploader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
		now:    time.Now,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (u *CloudinaryUploader) UploadImage(ctx context.Context, data []byte, publicID string) (string, error) {
	if u.cfg.CloudName == "" || u.cfg.APIKey == "" || u.cfg.APISecret == "" {
		return "", errs.Transient(nil, "storage credentials not configured")
	}

	timestamp := strconv.FormatInt(u.now().Unix(), 10)
	signature := u.sign(publicID, timestamp)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", publicID+".jpg")
	if err != nil {
		return "", errs.Transient(err, "build upload form")
	}
	if _, err := part.Write(data); err != nil {
		return "", errs.Transient(err, "build upload form")
	}
	fields := map[string]string{
		"api_key":   u.cfg.APIKey,
		"timestamp": timestamp,
		"signature": signature,
		"folder":    u.cfg.Folder,
		"public_id": publicID,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", errs.Transient(err, "build upload form")
		}
	}
	if err := writer.Close(); err != nil {
		return "", errs.Transient(err, "build upload form")
	}

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", u.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", errs.Transient(err, "build upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", errs.Transient(err, "upload %s", publicID)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errs.Transient(err, "read upload response")
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errs.Transient(err, "parse upload response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || parsed.SecureURL == "" {
		return "", errs.Transient(nil, "upload rejected (status %d): %s", resp.StatusCode, parsed.Error.Message)
	}

	u.log.LogVendor("UPLOAD", publicID, "stored at "+parsed.SecureURL)
	return parsed.SecureURL, nil
}

// sign computes the request signature over the non-file parameters, sorted
// by name, per Cloudinary's signed-upload scheme.
func (u *CloudinaryUploader) sign(publicID, timestamp string) string {
	toSign := fmt.Sprintf("folder=%s&public_id=%s&timestamp=%s%s",
		u.cfg.Folder, publicID, timestamp, u.cfg.APISecret)
	sum := sha1.Sum([]byte(toSign))
	return hex.EncodeToString(sum[:])
}
