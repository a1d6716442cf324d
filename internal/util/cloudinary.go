package util

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"crolars/internal/config"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

const maxBadgeIconBytes = 2 << 20

// IconUploader stores badge artwork and returns its public URL
type IconUploader interface {
	UploadBadgeIcon(data []byte, filename string) (string, error)
}

type CloudinaryClient struct {
	cld *cloudinary.Cloudinary
	cfg *config.Config
}

func NewCloudinaryClient(cfg *config.Config) (*CloudinaryClient, error) {
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials not configured")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &CloudinaryClient{
		cld: cld,
		cfg: cfg,
	}, nil
}

// NormalizeIcon decodes a PNG/JPEG icon and re-encodes it as PNG
func NormalizeIcon(data []byte, filename string) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("icon is empty")
	}
	if len(data) > maxBadgeIconBytes {
		return nil, fmt.Errorf("icon exceeds %d bytes", maxBadgeIconBytes)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg":
	case ".svg", ".webp":
		// uploaded as-is
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported icon format: %s", ext)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding icon: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("error encoding icon: %w", err)
	}
	return buf.Bytes(), nil
}

// UploadBadgeIcon uploads a badge icon to Cloudinary
func (c *CloudinaryClient) UploadBadgeIcon(data []byte, filename string) (string, error) {
	normalized, err := NormalizeIcon(data, filename)
	if err != nil {
		return "", err
	}

	result, err := c.cld.Upload.Upload(context.Background(), bytes.NewReader(normalized), uploader.UploadParams{
		Folder:         c.cfg.CloudinaryFolder,
		PublicID:       uuid.New().String(),
		Transformation: "w_256,h_256,c_fit",
		ResourceType:   "image",
	})
	if err != nil {
		return "", fmt.Errorf("error uploading to cloudinary: %w", err)
	}

	return result.SecureURL, nil
}

// ReadAllLimited reads at most maxBadgeIconBytes+1 bytes so oversize files are rejected
func ReadAllLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBadgeIconBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return data, nil
}
