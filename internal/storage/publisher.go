package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Publisher makes a finished video reachable and returns its location.
// localPath is consumed: after a successful Publish the caller must not
// rely on it still existing.
type Publisher interface {
	Publish(ctx context.Context, localPath, name string) (string, error)
}

// LocalPublisher moves videos into a directory served under /output.
type LocalPublisher struct {
	dir     string
	baseURL string
}

func NewLocalPublisher(dir, publicBaseURL string) (*LocalPublisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &LocalPublisher{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Dir is the directory the HTTP layer serves as /output.
func (p *LocalPublisher) Dir() string {
	return p.dir
}

func (p *LocalPublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest := filepath.Join(p.dir, filepath.Base(name))
	if err := moveFile(localPath, dest); err != nil {
		return "", fmt.Errorf("failed to publish %s: %w", name, err)
	}

	log.Printf("[Storage] Published %s to %s", name, p.dir)
	return p.baseURL + "/output/" + filepath.Base(name), nil
}

// moveFile renames src to dst, copying through a temp file when the two
// paths live on different filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
