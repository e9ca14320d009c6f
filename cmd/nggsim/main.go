// Command nggsim runs a YAML scene through the culling and compaction pass
// and reports what survived.
//
// Usage:
//
//	nggsim -scene scene.yaml [-png out.png] [-wgsl out.wgsl] [-lang de] [-v]
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/ngg"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	var (
		scenePath = flag.String("scene", "", "scene file (YAML)")
		pngPath   = flag.String("png", "", "write surviving triangles to this PNG")
		wgslPath  = flag.String("wgsl", "", "write the generated compute shader to this file")
		lang      = flag.String("lang", "en", "language for number formatting")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *scenePath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		ngg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	tag, err := language.Parse(*lang)
	if err != nil {
		log.Fatalf("bad -lang: %v", err)
	}

	scene, err := LoadScene(*scenePath)
	if err != nil {
		log.Fatal(err)
	}
	if err := run(context.Background(), scene, message.NewPrinter(tag), os.Stdout, *pngPath, *wgslPath); err != nil {
		log.Fatal(err)
	}
}

// run draws scene and prints a summary to w.
func run(ctx context.Context, scene *Scene, p *message.Printer, w io.Writer, pngPath, wgslPath string) error {
	opts, err := scene.Options()
	if err != nil {
		return err
	}
	pipe, err := ngg.NewPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipe.Close()

	res, err := pipe.Draw(ctx, scene.Draw())
	if err != nil {
		return err
	}

	summary := Summary(p, pipe, res)
	fmt.Fprintln(w, summary)

	if wgslPath != "" {
		prog, err := pipe.Program()
		if err != nil {
			return err
		}
		if err := os.WriteFile(wgslPath, []byte(prog.WGSL), 0o644); err != nil {
			return err
		}
	}

	if pngPath != "" {
		img := Render(res, pipe.Config().Cull.NumVertices, scene.Width, scene.Height, summary)
		f, err := os.Create(pngPath)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return nil
}

// Summary formats the counts of a draw.
func Summary(p *message.Printer, pipe *ngg.Pipeline, res *ngg.DrawResult) string {
	return p.Sprintf("%d of %d primitives, %d vertices, %d workgroups (%s)",
		res.Accepted, res.Primitives, len(res.Vertices), res.Workgroups, pipe.Plan())
}
