package main

import (
	"context"
	"crypto/md5" //nolint:gosec // the service verifies uploads against an MD5 ETag
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/murka/selectel-storage-client/pkg/selectel"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <container>",
		Short: "List objects in a container",
		Args:  cobra.ExactArgs(1),
		RunE:  runLs,
	}

	addListFlags(cmd)
	cmd.Flags().String("delimiter", "", "group names sharing a prefix up to this character (e.g. /)")

	return cmd
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path> <container> [object-name]",
		Short: "Upload a file",
		Long: `Upload a local file to a container. The object name defaults to the
file's base name. Names are stored in Unicode NFC form so files created on
macOS and Linux map to the same object.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runPut,
	}

	cmd.Flags().Duration("delete-after", 0, "delete the object this long after upload")
	cmd.Flags().String("delete-at", "", "delete the object at this time (RFC 3339)")
	cmd.Flags().String("content-type", "", "content type (default: guessed from the extension)")
	cmd.Flags().StringToString("meta", nil, "object metadata as key=value pairs")
	cmd.Flags().Bool("checksum", false, "send the file's MD5 so the server verifies the upload")

	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <container> <object>...",
		Short: "Delete objects",
		Long: `Delete one or more objects from a container. Several objects are removed
with a single bulk request.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runRm,
	}
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <archive> <container>",
		Short: "Upload an archive and unpack it server-side",
		Args:  cobra.ExactArgs(2),
		RunE:  runExtract,
	}

	cmd.Flags().String("format", "", "archive format: tar, tar.gz, gzip or tar.bz2 (default: from extension)")

	return cmd
}

// lsJSONItem is the JSON output schema for a single object in ls output.
type lsJSONItem struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	IsDir        bool   `json:"is_dir"`
	ContentType  string `json:"content_type,omitempty"`
	Hash         string `json:"hash,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

func runLs(cmd *cobra.Command, args []string) error {
	container := args[0]
	opts := listOptionsFromFlags(cmd)

	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		cc.Logger.Debug("ls", slog.String("container", container), slog.String("prefix", opts.Prefix))

		listing, err := c.ListFiles(ctx, container, opts)
		if err != nil {
			return fmt.Errorf("listing %q: %w", container, err)
		}

		switch {
		case cc.Flags.JSON:
			return printObjectsJSON(cc, listing.Objects)
		case !cc.tableOutput():
			printLines(cc.Out, listing.Names)
			return nil
		}

		rows := make([][]string, 0, len(listing.Objects))
		for i := range listing.Objects {
			obj := &listing.Objects[i]
			if obj.Dir {
				rows = append(rows, []string{obj.Name, "-", "-"})
				continue
			}

			rows = append(rows, []string{obj.Name, formatSize(obj.Bytes), formatTime(obj.LastModified)})
		}

		printTable(cc.Out, []string{"NAME", "SIZE", "MODIFIED"}, rows)

		return nil
	})
}

func printObjectsJSON(cc *CLIContext, objects []selectel.Object) error {
	out := make([]lsJSONItem, 0, len(objects))
	for i := range objects {
		item := lsJSONItem{
			Name:        objects[i].Name,
			Size:        objects[i].Bytes,
			IsDir:       objects[i].Dir,
			ContentType: objects[i].ContentType,
			Hash:        objects[i].Hash,
		}

		if !objects[i].LastModified.IsZero() {
			item.LastModified = objects[i].LastModified.UTC().Format(time.RFC3339Nano)
		}

		out = append(out, item)
	}

	return printJSON(cc.Out, out)
}

// objectName derives the remote name for an upload: the explicit name when
// given, otherwise the local base name, in NFC form either way.
func objectName(localPath string, args []string) string {
	name := filepath.Base(localPath)
	if len(args) > 2 {
		name = strings.TrimPrefix(args[2], "/")
	}

	return norm.NFC.String(name)
}

// uploadOptionsFromFlags reads the put flags. The content type falls back
// to the extension's registered type.
func uploadOptionsFromFlags(cmd *cobra.Command, localPath string, size int64) (selectel.UploadOptions, error) {
	opts := selectel.UploadOptions{ContentLength: size}

	opts.DeleteAfter, _ = cmd.Flags().GetDuration("delete-after")
	opts.ContentType, _ = cmd.Flags().GetString("content-type")
	opts.Meta, _ = cmd.Flags().GetStringToString("meta")

	if opts.DeleteAfter < 0 {
		return opts, fmt.Errorf("--delete-after must not be negative, got %s", opts.DeleteAfter)
	}

	if raw, _ := cmd.Flags().GetString("delete-at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, fmt.Errorf("--delete-at: %w", err)
		}

		opts.DeleteAt = t
	}

	if opts.ContentType == "" {
		opts.ContentType = mime.TypeByExtension(filepath.Ext(localPath))
	}

	return opts, nil
}

// md5File returns the hex MD5 of the file at path.
func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // ETag format, not a security boundary
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func runPut(cmd *cobra.Command, args []string) error {
	localPath := args[0]
	container := args[1]

	fi, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stating local file: %w", err)
	}

	if fi.IsDir() {
		return fmt.Errorf("%q is a directory, not a file", localPath)
	}

	opts, err := uploadOptionsFromFlags(cmd, localPath, fi.Size())
	if err != nil {
		return err
	}

	if checksum, _ := cmd.Flags().GetBool("checksum"); checksum {
		if opts.ETag, err = md5File(localPath); err != nil {
			return err
		}
	}

	name := objectName(localPath, args)

	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		f, err := os.Open(localPath)
		if err != nil {
			return fmt.Errorf("opening local file: %w", err)
		}
		defer f.Close()

		cc.Logger.Debug("put",
			slog.String("local_path", localPath),
			slog.String("container", container),
			slog.String("name", name),
			slog.Int64("size", fi.Size()),
		)

		if err := c.UploadFile(ctx, container, name, f, opts); err != nil {
			return fmt.Errorf("uploading %q: %w", localPath, err)
		}

		cc.Statusf("Uploaded %s/%s (%s)\n", container, name, formatSize(fi.Size()))

		return nil
	})
}

func runRm(cmd *cobra.Command, args []string) error {
	container := args[0]
	names := args[1:]

	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		if len(names) == 1 {
			if err := c.DeleteFile(ctx, container, names[0]); err != nil {
				return fmt.Errorf("deleting %s/%s: %w", container, names[0], err)
			}

			cc.Statusf("Deleted %s/%s\n", container, names[0])

			return nil
		}

		res, err := c.DeleteFiles(ctx, container, names)
		if err != nil {
			return fmt.Errorf("deleting from %q: %w", container, err)
		}

		return reportBulk(cc, res, fmt.Sprintf("Deleted %d, not found %d", res.Deleted, res.NotFound))
	})
}

// archiveExtensions maps file suffixes to archive formats, longest first.
var archiveExtensions = []struct {
	suffix string
	format selectel.ArchiveFormat
}{
	{".tar.bz2", selectel.ArchiveTarBz2},
	{".tbz2", selectel.ArchiveTarBz2},
	{".tar.gz", selectel.ArchiveTarGz},
	{".tgz", selectel.ArchiveTarGz},
	{".tar", selectel.ArchiveTar},
	{".gz", selectel.ArchiveGzip},
}

// archiveFormat returns the explicit format, or the one implied by the
// file name.
func archiveFormat(path, explicit string) (selectel.ArchiveFormat, error) {
	if explicit != "" {
		return selectel.ArchiveFormat(explicit), nil
	}

	lower := strings.ToLower(path)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext.suffix) {
			return ext.format, nil
		}
	}

	return "", fmt.Errorf("cannot tell archive format of %q, use --format", path)
}

func runExtract(cmd *cobra.Command, args []string) error {
	archivePath := args[0]
	container := args[1]

	explicit, _ := cmd.Flags().GetString("format")

	format, err := archiveFormat(archivePath, explicit)
	if err != nil {
		return err
	}

	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		f, err := os.Open(archivePath)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer f.Close()

		res, err := c.ExtractArchive(ctx, container, f, format)
		if err != nil {
			return fmt.Errorf("extracting %q: %w", archivePath, err)
		}

		return reportBulk(cc, res, fmt.Sprintf("Created %d objects", res.Created))
	})
}

// bulkJSON is the JSON output schema for bulk operations.
type bulkJSON struct {
	Deleted  int        `json:"deleted"`
	NotFound int        `json:"not_found"`
	Created  int        `json:"created"`
	Status   string     `json:"status"`
	Errors   [][]string `json:"errors"`
}

// reportBulk prints a bulk result. Per-object failures make the command fail
// after they are listed.
func reportBulk(cc *CLIContext, res *selectel.BulkResult, summary string) error {
	if cc.Flags.JSON {
		if err := printJSON(cc.Out, bulkJSON{
			Deleted:  res.Deleted,
			NotFound: res.NotFound,
			Created:  res.Created,
			Status:   res.Status,
			Errors:   res.Errors,
		}); err != nil {
			return err
		}
	} else {
		cc.Statusf("%s\n", summary)

		for _, e := range res.Errors {
			fmt.Fprintf(cc.Err, "  %s\n", strings.Join(e, ": "))
		}
	}

	if len(res.Errors) > 0 {
		return fmt.Errorf("%d objects failed (status %s)", len(res.Errors), res.Status)
	}

	return nil
}
