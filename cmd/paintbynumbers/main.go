// Command paintbynumbers turns an image into a paint-by-numbers stencil.
//
//	paintbynumbers -i photo.jpg -o out/photo.svg [-c settings.json] [-live]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	pbn "github.com/setanarut/paintbynumbers"
	_ "github.com/setanarut/paintbynumbers/raster"
	"github.com/setanarut/paintbynumbers/utils"
)

func main() {
	var (
		input    = flag.String("i", "", "input image")
		output   = flag.String("o", "", "output path; profiles are written next to it as <name>-<profile>.<filetype>")
		config   = flag.String("c", "", "settings file (.json or .yaml), default ./settings.json when present")
		live     = flag.Bool("live", false, "print every finished facet as a LIVE_FACET json line")
		verbose  = flag.Bool("v", false, "debug logging")
		layers   = flag.String("layers", "", "directory for one png layer per palette colour")
		swatches = flag.String("swatches", "", "png file for the palette swatch strip")
	)
	flag.Parse()
	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "usage: paintbynumbers -i <input_image> -o <output_svg> [-c <settings>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	pbn.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	opt, err := loadSettings(*config)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}
	img, err := utils.ReadImage(*input)
	if err != nil {
		log.Fatalf("input: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := pbn.NewBuilder(img, opt)
	events := b.Subscribe(1 << 14)
	done := make(chan struct{})
	go func() {
		defer close(done)
		consume(events, *live)
	}()

	res, err := b.Build(ctx)
	<-done
	if errors.Is(err, pbn.ErrCancelled) {
		log.Println("cancelled")
		os.Exit(130)
	}
	if err != nil {
		log.Fatalf("build: %v", err)
	}

	dir := filepath.Dir(*output)
	base := strings.TrimSuffix(filepath.Base(*output), filepath.Ext(*output))
	for i, doc := range res.Documents {
		path := outputPath(dir, base, i, doc.Profile)
		log.Printf("writing %s", path)
		if err := writeDocument(path, doc); err != nil {
			log.Fatalf("output %s: %v", path, err)
		}
	}

	palettePath := filepath.Join(dir, base+".json")
	log.Printf("writing palette info %s", palettePath)
	if err := writePalette(palettePath, res.Stats); err != nil {
		log.Fatalf("palette: %v", err)
	}
	if *swatches != "" {
		cols := make([]color.Color, len(res.Palette))
		for i, c := range res.Palette {
			cols[i] = color.RGBA{c[0], c[1], c[2], 255}
		}
		if err := utils.SavePalette(cols, 64, *swatches); err != nil {
			log.Fatalf("swatches: %v", err)
		}
	}
	if *layers != "" {
		if err := os.MkdirAll(*layers, 0o755); err != nil {
			log.Fatal(err)
		}
		if err := utils.SaveLayers(res.ColorLayers(), *layers, "layer"); err != nil {
			log.Fatalf("layers: %v", err)
		}
	}
	log.Println("finished")
}

// outputPath names a profile's file <base>-<name>.<filetype>. Unnamed
// profiles use their position in the settings instead.
func outputPath(dir, base string, i int, p pbn.OutputProfile) string {
	ft := strings.TrimPrefix(strings.ToLower(p.Filetype), ".")
	if ft == "" {
		ft = "svg"
	}
	name := p.Name
	if name == "" {
		name = strconv.Itoa(i)
	}
	return filepath.Join(dir, base+"-"+name+"."+ft)
}

func loadSettings(path string) (pbn.Options, error) {
	if path == "" {
		if _, err := os.Stat("settings.json"); err != nil {
			return pbn.DefaultOptions(), nil
		}
		path = "settings.json"
	}
	return pbn.LoadOptions(path)
}

// consume drains the event channel until Build closes it.
func consume(events <-chan pbn.Event, live bool) {
	streaming := false
	for ev := range events {
		switch ev.Kind {
		case pbn.EventStage:
			log.Printf("%s", ev.Stage)
		case pbn.EventFacet:
			if !live {
				continue
			}
			if !streaming {
				fmt.Println("LIVE_STREAMING_START")
				streaming = true
			}
			line, err := json.Marshal(ev.Facet)
			if err != nil {
				continue
			}
			fmt.Printf("LIVE_FACET:%s\n", line)
		}
	}
	if streaming {
		fmt.Println("LIVE_STREAMING_END")
	}
}

func writeDocument(path string, doc *pbn.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := doc.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writePalette(path string, stats []pbn.PaletteEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pbn.WritePaletteJSON(f, stats); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
