package template

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"strings"
	"time"

	"postcard-service/internal/logger"

	"github.com/disintegration/imaging"
)

// Loader fetches and decodes source photos. A photo that fails to load is
// replaced by a neutral placeholder so one bad reference never aborts the
// whole composite.
type Loader struct {
	client *http.Client
	log    *logger.Logger
}

const fetchTimeout = 20 * time.Second

func NewLoader(log *logger.Logger) *Loader {
	return &Loader{
		client: &http.Client{Timeout: fetchTimeout},
		log:    log,
	}
}

// Load resolves ref as either an embedded base64 data URI or a fetchable
// HTTP(S) URL.
func (l *Loader) Load(ctx context.Context, ref string) image.Image {
	img, err := l.load(ctx, ref)
	if err != nil {
		l.log.LogDegraded("TEMPLATE", fmt.Sprintf("photo load failed (%s): %v", truncateRef(ref), err))
		return placeholder()
	}
	return img
}

func (l *Loader) load(ctx context.Context, ref string) (image.Image, error) {
	if strings.HasPrefix(ref, "data:image") {
		return decodeDataURI(ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func decodeDataURI(ref string) (image.Image, error) {
	_, encoded, found := strings.Cut(ref, ",")
	if !found {
		return nil, fmt.Errorf("malformed data URI")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// placeholder is the neutral light-gray square used when a photo cannot be
// loaded.
func placeholder() image.Image {
	return imaging.New(400, 400, color.NRGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff})
}

func truncateRef(ref string) string {
	if len(ref) > 50 {
		return ref[:50] + "..."
	}
	return ref
}
