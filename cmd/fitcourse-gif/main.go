// Command fitcourse-gif prints the frame table of a GIF and optionally
// writes every composited frame as a PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/claude/fitcourse/internal/gifcache"
	"github.com/claude/fitcourse/internal/gifdecode"
	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

func main() {
	src := flag.String("src", "", "GIF path, file:// or http(s) URL (required)")
	outDir := flag.String("out", "", "directory to write composited frames as PNG")
	width := flag.Int("width", 0, "resize exported frames to this width, keeping the aspect ratio")
	token := flag.String("token", "", "bearer token for protected asset URLs")
	minDelay := flag.Duration("min-delay", gifdecode.MinDelay, "delay used for frames declaring zero")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *src == "" {
		fmt.Fprintf(os.Stderr, "Usage: fitcourse-gif -src squat.gif [-out frames/] [-width 320]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()
	data, err := readSource(ctx, *src, *token)
	if err != nil {
		log.Error("failed to read gif", "src", *src, "error", err)
		os.Exit(1)
	}

	start := time.Now()
	img, frames, err := gifdecode.DecodeFrames(ctx, data, gifdecode.Options{MinDelay: *minDelay})
	if err != nil {
		log.Error("failed to decode gif", "src", *src, "error", err)
		os.Exit(1)
	}
	log.Info("gif decoded", "frames", len(frames), "elapsed", time.Since(start).String())

	printTable(os.Stdout, img, frames)

	if *outDir != "" {
		if err := exportFrames(ctx, *outDir, frames, *width); err != nil {
			log.Error("export failed", "dir", *outDir, "error", err)
			os.Exit(1)
		}
		log.Info("frames exported", "dir", *outDir, "count", len(frames))
	}
}

func readSource(ctx context.Context, src, token string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "file://") {
		return gifcache.NewHTTPFetcher(token, 30*time.Second, 0).Fetch(ctx, src)
	}
	return os.ReadFile(src)
}

func printTable(w io.Writer, img *gifdecode.Image, frames []gifdecode.Frame) {
	var total time.Duration
	for _, f := range frames {
		total += f.Delay
	}

	fmt.Fprintf(w, "size %dx%d, %d frames, loop count %d, cycle %s\n",
		img.Width, img.Height, len(frames), img.LoopCount, total)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tBOUNDS\tDECLARED\tDELAY\tOFFSET\tDISPOSAL")
	var offset time.Duration
	for i, d := range img.Descriptors {
		fmt.Fprintf(tw, "%d\t%v\t%dms\t%s\t%s\t%s\n",
			i, d.Bounds(), d.DelayMs, frames[i].Delay, offset, d.Disposal)
		offset += frames[i].Delay
	}
	tw.Flush()
}

// exportFrames writes frame_NNN.png files in parallel.
func exportFrames(ctx context.Context, dir string, frames []gifdecode.Frame, width int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := imaging.Clone(f.Pixels)
			if width > 0 {
				out = imaging.Resize(f.Pixels, width, 0, imaging.Lanczos)
			}
			path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
			if err := imaging.Save(out, path); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}
