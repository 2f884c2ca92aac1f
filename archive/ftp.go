package archive

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/vasylivanchyk330/AWS-Automation/config"
)

var _ Archiver = (*FTPArchiver)(nil)

// FTPArchiver ships finished log artifacts to an FTP server. A run produces
// a single artifact, so one connection at a time is enough.
type FTPArchiver struct {
	config     *config.FTPConfig
	timeout    time.Duration
	maxRetries int
	dialConfig *ftp.DialOption
}

// NewFTPArchiver validates the config and verifies connectivity once.
func NewFTPArchiver(cfg *config.ArchiveConfig) (*FTPArchiver, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid archive config: %w", err)
	}
	if cfg.FTP == nil {
		return nil, fmt.Errorf("ftp settings are required for archiving")
	}

	var dialConfig *ftp.DialOption
	if cfg.FTP.UseTLS {
		opt := ftp.DialWithExplicitTLS(&tls.Config{
			InsecureSkipVerify: false,
		})
		dialConfig = &opt
	}

	a := &FTPArchiver{
		config:     cfg.FTP,
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxRetries: cfg.MaxRetries,
		dialConfig: dialConfig,
	}

	conn, err := a.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FTP server: %w", err)
	}
	conn.Quit()

	return a, nil
}

func (a *FTPArchiver) connect() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", a.config.Host, a.config.Port)

	var conn *ftp.ServerConn
	var err error

	if a.dialConfig != nil {
		conn, err = ftp.Dial(addr, *a.dialConfig, ftp.DialWithTimeout(a.timeout))
	} else {
		conn, err = ftp.Dial(addr, ftp.DialWithTimeout(a.timeout))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	if err := conn.Login(a.config.Username, a.config.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return conn, nil
}

// Upload stores the artifact under BasePath, retrying with exponential
// backoff. The content reader must support seeking back via the provided
// reopen function because a failed STOR may have consumed part of it.
func (a *FTPArchiver) Upload(ctx context.Context, name string, open func() (io.ReadCloser, error)) error {
	fullPath := path.Join(a.config.BasePath, name)

	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		conn, err := a.connect()
		if err != nil {
			lastErr = err
			continue
		}

		dir := path.Dir(fullPath)
		if dir != "/" && dir != "." {
			if err := ensureDirectory(conn, dir); err != nil {
				conn.Quit()
				lastErr = fmt.Errorf("failed to create directory %s: %w", dir, err)
				continue
			}
		}

		content, err := open()
		if err != nil {
			conn.Quit()
			return fmt.Errorf("failed to open artifact: %w", err)
		}

		err = conn.Stor(fullPath, content)
		content.Close()
		conn.Quit()

		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("failed to upload %s: %w", fullPath, err)
	}

	return fmt.Errorf("upload failed after %d attempts: %w", a.maxRetries, lastErr)
}

// Exists checks whether an artifact is already present on the server.
func (a *FTPArchiver) Exists(ctx context.Context, name string) (bool, error) {
	fullPath := path.Join(a.config.BasePath, name)

	conn, err := a.connect()
	if err != nil {
		return false, err
	}
	defer conn.Quit()

	_, err = conn.FileSize(fullPath)
	if err == nil {
		return true, nil
	}
	if strings.Contains(err.Error(), "550") || strings.Contains(err.Error(), "not found") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check artifact existence: %w", err)
}

func (a *FTPArchiver) Close() error {
	return nil
}

// ensureDirectory creates directory structure recursively
func ensureDirectory(conn *ftp.ServerConn, dirPath string) error {
	dirPath = path.Clean(dirPath)
	if dirPath == "/" || dirPath == "." {
		return nil
	}

	currentDir, err := conn.CurrentDir()
	if err != nil {
		return err
	}

	if err := conn.ChangeDir(dirPath); err == nil {
		conn.ChangeDir(currentDir)
		return nil
	}

	parts := strings.Split(dirPath, "/")
	currentPath := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if currentPath == "" {
			currentPath = part
		} else {
			currentPath = path.Join(currentPath, part)
		}
		// Ignore error if the directory already exists
		conn.MakeDir(currentPath)
	}

	return conn.ChangeDir(currentDir)
}
