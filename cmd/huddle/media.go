package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/media"
)

var (
	lsAlbum     string
	lsAll       bool
	uploadAlbum string
	uploadWait  bool
	getOutput   string
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the open team's media",
	RunE:  runLs,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a photo or video to the open team",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var getCmd = &cobra.Command{
	Use:   "get <media-id>",
	Short: "Download one media item",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var rmCmd = &cobra.Command{
	Use:   "rm <media-id>",
	Short: "Delete one media item",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func init() {
	lsCmd.Flags().StringVar(&lsAlbum, "album", "", "show only one album")
	lsCmd.Flags().BoolVar(&lsAll, "all", false, "load every page, not just the first")
	uploadCmd.Flags().StringVar(&uploadAlbum, "album", "", "album to file the upload under")
	uploadCmd.Flags().BoolVar(&uploadWait, "wait-thumb", false, "wait for the thumbnail to be generated")
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "output path (default: the original filename)")
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(rmCmd)
}

// contentTypeFor maps a filename to the media types the backend accepts.
func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	}
	return ""
}

func runLs(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	svc, err := app.mediaService()
	if err != nil {
		return err
	}
	svc.SetAlbum(lsAlbum)

	ctx := context.Background()
	items, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}
	if lsAll {
		for {
			more, err := svc.LoadMore(ctx)
			if err != nil {
				return err
			}
			if len(more) == len(items) {
				break
			}
			items = more
		}
	}

	if len(items) == 0 {
		fmt.Println("No media.")
		return nil
	}
	for _, item := range items {
		album := item.AlbumName
		if album == "" {
			album = "-"
		}
		fmt.Printf("%-36s  %-10s  %10d  %-12s  %s\n",
			item.MediaID,
			time.Unix(item.CreatedAt, 0).Format("2006-01-02"),
			item.SizeBytes,
			album,
			item.Filename,
		)
	}
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	svc, err := app.mediaService()
	if err != nil {
		return err
	}

	path := args[0]
	contentType := contentTypeFor(path)
	if contentType == "" {
		return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	ctx := context.Background()
	mediaID, err := svc.Upload(ctx, media.UploadRequest{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		SizeBytes:   info.Size(),
		Body:        f,
		AlbumName:   uploadAlbum,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s (%s)\n", filepath.Base(path), mediaID)

	if uploadWait {
		key, err := svc.WaitForThumb(ctx, mediaID)
		if errors.Is(err, media.ErrThumbNotReady) {
			fmt.Println("Thumbnail not ready yet; it will appear on the next listing.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Thumbnail ready: %s\n", key)
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	svc, err := app.mediaService()
	if err != nil {
		return err
	}

	ctx := context.Background()
	items, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}

	out := getOutput
	if out == "" {
		out = args[0]
		for _, item := range items {
			if item.MediaID == args[0] {
				out = item.Filename
				break
			}
		}
	}

	u, err := svc.URLFor(ctx, args[0])
	if err != nil {
		return err
	}

	resp, err := http.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed (%d)", resp.StatusCode)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s (%d bytes)\n", out, n)
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	svc, err := app.mediaService()
	if err != nil {
		return err
	}

	ctx := context.Background()
	// Load the listing so the local permission gate can see ownership.
	if _, err := svc.Refresh(ctx); err != nil {
		return err
	}

	if err := svc.Delete(ctx, args[0]); err != nil {
		if errors.Is(err, media.ErrNotPermitted) {
			return fmt.Errorf("you cannot delete this item")
		}
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}
