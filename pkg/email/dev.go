package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// DevSender writes outgoing emails to a directory instead of sending them.
type DevSender struct {
	dir string
}

// NewDevSender creates a development sender. The directory is created on the
// first send.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir}
}

type devEmailMeta struct {
	Timestamp string `json:"timestamp"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag,omitempty"`
}

// SendEmail writes the body as HTML and the metadata as JSON next to it.
func (d *DevSender) SendEmail(_ context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create email output dir: %w", err)
	}

	ts := time.Now().UTC()
	base := fmt.Sprintf("%s_%s", ts.Format("20060102T150405"),
		unsafePathChars.ReplaceAllString(strings.ToLower(params.To), "_"))

	if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(params.BodyHTML), 0o644); err != nil {
		return fmt.Errorf("write email body: %w", err)
	}
	meta, err := json.MarshalIndent(devEmailMeta{
		Timestamp: ts.Format(time.RFC3339),
		To:        params.To,
		Subject:   params.Subject,
		Tag:       params.Tag,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal email metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), meta, 0o644); err != nil {
		return fmt.Errorf("write email metadata: %w", err)
	}
	return nil
}
