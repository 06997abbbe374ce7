// Package tokenfile persists a storage session between CLI runs. The file
// holds the auth token as an oauth2.Token (access token + expiry) and the
// cached session metadata: the user it belongs to, the auth protocol and the
// account's numeric storage domain.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// Metadata keys.
const (
	MetaUser          = "user"
	MetaAuthVersion   = "auth_version"
	MetaNumericDomain = "numeric_domain"
)

// File is the on-disk format.
type File struct {
	Token *oauth2.Token     `json:"token"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Session is the decoded content of a token file.
type Session struct {
	User          string
	AuthVersion   int
	Token         string
	ExpireAt      time.Time
	NumericDomain int
}

// Usable reports whether the session belongs to user, was issued by the
// given protocol version and has not expired at now. A zero expiry never
// expires.
func (s *Session) Usable(user string, authVersion int, now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}

	if s.User != user || s.AuthVersion != authVersion {
		return false
	}

	return s.ExpireAt.IsZero() || s.ExpireAt.After(now)
}

// BelongsTo reports whether the session was saved for user. The numeric
// domain of such a session stays valid after its token expires.
func (s *Session) BelongsTo(user string) bool {
	return s != nil && s.User == user
}

// Load reads a session. Returns (nil, nil) if the file does not exist.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token == nil || tf.Token.AccessToken == "" {
		return nil, fmt.Errorf("tokenfile: %s missing token field (re-login required)", path)
	}

	s := &Session{
		User:     tf.Meta[MetaUser],
		Token:    tf.Token.AccessToken,
		ExpireAt: tf.Token.Expiry,
	}

	if s.AuthVersion, err = metaInt(tf.Meta, MetaAuthVersion); err != nil {
		return nil, fmt.Errorf("tokenfile: %s: %w", path, err)
	}

	if s.NumericDomain, err = metaInt(tf.Meta, MetaNumericDomain); err != nil {
		return nil, fmt.Errorf("tokenfile: %s: %w", path, err)
	}

	return s, nil
}

func metaInt(meta map[string]string, key string) (int, error) {
	raw, ok := meta[key]
	if !ok || raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}

	return n, nil
}

// Save writes a session atomically (write-to-temp + rename) with 0600
// permissions.
func Save(path string, s *Session) error {
	tf := File{
		Token: &oauth2.Token{AccessToken: s.Token, Expiry: s.ExpireAt},
		Meta:  map[string]string{MetaUser: s.User},
	}

	if s.AuthVersion > 0 {
		tf.Meta[MetaAuthVersion] = strconv.Itoa(s.AuthVersion)
	}

	if s.NumericDomain > 0 {
		tf.Meta[MetaNumericDomain] = strconv.Itoa(s.NumericDomain)
	}

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, err)
	}

	// Same directory keeps the rename on one filesystem.
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the session file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return nil
}
