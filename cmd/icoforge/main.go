package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/esimov/icoforge"
	"github.com/esimov/icoforge/config"
	"github.com/esimov/icoforge/favpack"
	"github.com/esimov/icoforge/ico"
	"github.com/esimov/icoforge/server"
	"github.com/esimov/icoforge/utils"
	"github.com/esimov/icoforge/watch"
)

const HelpBanner = `
┬┌─┐┌─┐┌─┐┌─┐┬─┐┌─┐┌─┐
││  │ │├┤ │ │├┬┘│ ┬├┤
┴└─┘└─┘└  └─┘┴└─└─┘└─┘

Multi-resolution icon generator.
    Version: %s

Supported sources: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", pipeName, "Source file, directory, URL or - for stdin")
	destination = flag.String("out", "", "Destination file or directory, - for stdout")
	sizeList    = flag.String("sizes", "", "Comma separated list of icon sizes (default 16,32,48,64,180,192,512)")
	pack        = flag.Bool("package", false, "Generate a zip package with png files, manifest and html snippet")
	name        = flag.String("name", "", "Application name used in the web manifest")
	filter      = flag.String("filter", "", "Resampling filter: box, catmullrom, lanczos, linear, mitchell, nearest")
	workers     = flag.Int("conc", 0, "Number of files or sizes to process concurrently")
	confPath    = flag.String("conf", "", "YAML configuration file")
	watchMode   = flag.Bool("watch", false, "Convert the source again each time it changes")
	serveAddr   = flag.String("serve", "", "Start the HTTP service on the given address, e.g. :8080")
	inspect     = flag.String("inspect", "", "Print the directory of an ico file")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version, icoforge.SupportedFormatsLabel())
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf(utils.DecorateText("Failed to load the configuration: %v", utils.ErrorMessage), err)
	}

	rast := &icoforge.Rasterizer{
		Filter:  cfg.ResampleFilter(),
		Workers: cfg.Workers,
	}

	switch {
	case *inspect != "":
		if err := inspectIcon(*inspect); err != nil {
			log.Fatalf(utils.DecorateText("Failed to inspect the icon: %v", utils.ErrorMessage), err)
		}
	case *serveAddr != "" || flagSet("serve"):
		addr := *serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		log.Fatal(server.New(rast, cfg).ListenAndServe(addr))
	default:
		run(rast, cfg)
	}
}

func run(rast *icoforge.Rasterizer, cfg *config.Config) {
	op := &Ops{
		Src:      *source,
		Dst:      *destination,
		PipeName: pipeName,
		Workers:  cfg.Workers,
		Sizes:    cfg.Sizes,
		Package:  cfg.Output.Package,
		PackageOpts: favpack.Options{
			Name:            cfg.Package.Name,
			ThemeColor:      cfg.Package.ThemeColor,
			BackgroundColor: cfg.Package.BackgroundColor,
			Display:         cfg.Package.Display,
		},
	}
	if op.Dst == "" {
		op.Dst = cfg.Output.Dir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	spinnerText := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ ICOFORGE", utils.StatusMessage),
		utils.DecorateText("⇢ generating the icons...", utils.DefaultMessage))
	spinner := utils.NewSpinner(spinnerText, time.Millisecond*80, true)

	// Restore the cursor visibility when interrupted.
	go func() {
		<-ctx.Done()
		spinner.RestoreCursor()
	}()

	err := op.Execute(ctx, rast, spinner)
	if !*watchMode {
		if err != nil {
			os.Exit(1)
		}
		return
	}

	if op.Src == pipeName || utils.IsValidUrl(op.Src) {
		log.Fatal(utils.DecorateText("Watch mode requires a local source file", utils.ErrorMessage))
	}
	w, err := watch.New(op.Src, func(string) error {
		return op.Execute(ctx, rast, spinner)
	})
	if err != nil {
		log.Fatalf(utils.DecorateText("Failed to watch the source: %v", utils.ErrorMessage), err)
	}
	defer w.Close()

	fmt.Fprintf(os.Stderr, "\nWatching %s for changes...\n", utils.DecorateText(op.Src, utils.StatusMessage))
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}

// loadConfig merges the optional configuration file with the explicitly set flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *confPath != "" {
		var err error
		if cfg, err = config.Load(*confPath); err != nil {
			return nil, err
		}
	}

	if *sizeList != "" {
		sizes, err := config.ParseSizes(*sizeList)
		if err != nil {
			return nil, err
		}
		cfg.Sizes = sizes
	}
	if *filter != "" {
		cfg.Filter = *filter
	}
	if flagSet("conc") {
		cfg.Workers = *workers
	}
	if flagSet("package") {
		cfg.Output.Package = *pack
	}
	if *name != "" {
		cfg.Package.Name = *name
	}
	return cfg, cfg.Validate()
}

// flagSet reports whether the flag was explicitly provided on the command line.
func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// inspectIcon prints the directory entries of an icon container.
func inspectIcon(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	images, err := ico.Payloads(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s: %d image(s), %s\n", path, len(images), utils.FormatBytes(len(data)))
	for i, img := range images {
		format := "bmp"
		if f, ok := icoforge.SniffFormat(img.Data); ok && f == icoforge.FormatPNG {
			format = "png"
		}
		fmt.Fprintf(os.Stdout, "  #%d  %4dx%-4d  %s  %s\n", i, img.Size, img.Size, format, utils.FormatBytes(len(img.Data)))
	}
	return nil
}
