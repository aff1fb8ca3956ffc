// Command mvfield renders the block motion between two images.
//
// Usage:
//
//	mvfield ref_file in_file output_file
//
// The output image holds one pixel per 8x8 sub-block: red encodes the
// horizontal and green the vertical displacement, both centered at 127.
// PNG copies of the decoded inputs are written to ref_image.png and
// input_image.png in the working directory.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/mvfield"

	// Register engines; wgpu is preferred, software is the fallback.
	_ "github.com/gogpu/mvfield/engine/software"
	_ "github.com/gogpu/mvfield/engine/wgpu"
)

const usage = "Usage: mvfield ref_file in_file output_file"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 3 {
		err := &mvfield.StageError{
			Stage: mvfield.StageUsage,
			Err:   fmt.Errorf("need 3 arguments, got %d", len(args)),
		}
		fmt.Fprintln(stderr, usage)
		fmt.Fprintf(stderr, "mvfield: %v\n", err)
		return 1
	}

	mvfield.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	defer mvfield.SetLogger(nil)

	res, err := mvfield.Run(args[0], args[1], args[2], mvfield.WithDebugDir("."))
	if err != nil {
		fmt.Fprintf(stderr, "mvfield: %v\n", err)
		return 1
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(stdout, "GPU in use: %s (%s engine, API %v)\n", res.Device, res.Engine, res.Version)
	p.Fprintf(stdout, "Frames: %dx%d, %d macroblocks (%dx%d)\n",
		res.Width, res.Height, res.Stats.Macroblocks, res.Cols, res.Rows)
	p.Fprintf(stdout, "Motion vectors: %d bytes, total cost %d, max component %d qpel\n",
		len(res.Raw), res.Stats.TotalCost, res.Stats.MaxAbs)
	p.Fprintf(stdout, "Wrote %s (%dx%d)\n", args[2], res.Image.Width(), res.Image.Height())
	return 0
}
