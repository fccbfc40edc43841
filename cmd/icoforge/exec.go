package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/esimov/icoforge"
	"github.com/esimov/icoforge/favpack"
	"github.com/esimov/icoforge/utils"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently converted files.
const maxWorkers = 20

// defaultDirName is the directory created inside the source directory
// when no destination is provided.
const defaultDirName = "icons"

// Ops holds the options of a conversion run.
type Ops struct {
	Src, Dst, PipeName string
	Workers            int
	Sizes              []int
	Package            bool
	PackageOpts        favpack.Options
}

// result holds the relevant information about the conversion process of a single file.
type result struct {
	path string
	err  error
}

// Execute converts the source, be it a file, a directory, an URL or the stdin pipe.
// Directories are walked recursively and every supported image is converted concurrently.
func (op *Ops) Execute(ctx context.Context, r *icoforge.Rasterizer, spinner *utils.Spinner) error {
	now := time.Now()

	var err error
	if !utils.IsValidUrl(op.Src) && op.Src != op.PipeName {
		fs, statErr := os.Stat(op.Src)
		if statErr != nil {
			return fmt.Errorf("failed to load the source image: %w", statErr)
		}
		if fs.IsDir() {
			err = op.executeDir(ctx, r)
			op.printDuration(err, now)
			return err
		}
	}

	spinner.Start()
	dst := op.destination(op.Src)
	err = op.process(ctx, r, op.Src, dst)
	if err != nil {
		spinner.StopMsg = fmt.Sprintf("%s %s %s\n",
			utils.DecorateText("⚡ ICOFORGE", utils.StatusMessage),
			utils.DecorateText("converting image failed...", utils.DefaultMessage),
			utils.DecorateText("✘", utils.ErrorMessage),
		)
	} else {
		spinner.StopMsg = fmt.Sprintf("%s %s %s\n",
			utils.DecorateText("⚡ ICOFORGE", utils.StatusMessage),
			utils.DecorateText("⇢", utils.DefaultMessage),
			utils.DecorateText("the icon has been generated successfully ✔", utils.SuccessMessage),
		)
	}
	spinner.Stop()

	op.printOpStatus(dst, err)
	op.printDuration(err, now)
	return err
}

func (op *Ops) executeDir(ctx context.Context, r *icoforge.Rasterizer) error {
	if op.Dst == "" || op.Dst == op.PipeName {
		op.Dst = filepath.Join(op.Src, defaultDirName)
	}
	if err := os.MkdirAll(op.Dst, 0755); err != nil {
		return fmt.Errorf("unable to create the destination directory: %w", err)
	}

	// Limit the concurrently running workers to maxWorkers.
	workers := op.Workers
	if workers <= 0 || workers > maxWorkers {
		workers = runtime.NumCPU()
	}

	ch := make(chan result)
	done := make(chan interface{})
	defer close(done)

	paths, errc := walkDir(done, op.Src, op.Dst, icoforge.Extensions())

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			op.consumer(ctx, r, ch, done, paths)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	var failed int
	for res := range ch {
		if res.err != nil {
			failed++
		}
		op.printOpStatus(res.path, res.err)
	}

	if err := <-errc; err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be converted", failed)
	}
	return nil
}

// consumer reads the path names from the paths channel and converts the source images.
func (op *Ops) consumer(
	ctx context.Context,
	r *icoforge.Rasterizer,
	res chan<- result,
	done <-chan interface{},
	paths <-chan string,
) {
	for src := range paths {
		dst := filepath.Join(op.Dst, filepath.Base(op.destination(src)))
		err := op.process(ctx, r, src, dst)

		select {
		case <-done:
			return
		case res <- result{
			path: dst,
			err:  err,
		}:
		}
	}
}

// process converts a single source into an icon container or a favicon package.
func (op *Ops) process(ctx context.Context, r *icoforge.Rasterizer, in, out string) error {
	src, err := op.readSource(in)
	if err != nil {
		return err
	}

	data, images, err := r.Convert(ctx, src, op.Sizes)
	if err != nil {
		return err
	}

	if op.Package {
		var buf bytes.Buffer
		opts := op.PackageOpts
		if opts.Name == "" {
			opts.Name = strings.TrimSuffix(src.FileName, filepath.Ext(src.FileName))
		}
		if err := favpack.Build(&buf, images, opts); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	return op.writeOutput(out, data)
}

// readSource loads the source image from an URL, the stdin pipe or a regular file.
func (op *Ops) readSource(in string) (icoforge.Source, error) {
	var (
		data        []byte
		name, ctype string
		err         error
	)
	switch {
	case utils.IsValidUrl(in):
		data, name, ctype, err = utils.DownloadImage(in)
	case in == op.PipeName:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return icoforge.Source{}, errors.New("`-` should be used with a pipe for stdin")
		}
		data, err = utils.ReadLimited(os.Stdin, utils.MaxFileSize)
		name, ctype = "stdin", utils.DetectContentType(data)
	default:
		var f *os.File
		f, err = os.Open(in)
		if err != nil {
			return icoforge.Source{}, fmt.Errorf("unable to open the source file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Printf("could not close the opened file: %v", err)
			}
		}()
		data, err = utils.ReadLimited(f, utils.MaxFileSize)
		name = filepath.Base(in)
	}
	if err != nil {
		return icoforge.Source{}, err
	}
	if strings.HasPrefix(ctype, "text/") {
		// Sniffed svg markup is reported as plain text or xml.
		ctype = ""
		if bytes.Contains(data, []byte("<svg")) {
			ctype = "image/svg+xml"
		}
	}
	return icoforge.NewSource(name, ctype, data)
}

// writeOutput writes the result into the destination file or to the stdout pipe.
func (op *Ops) writeOutput(out string, data []byte) error {
	var dst io.Writer
	if out == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		dst = os.Stdout
	} else {
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("unable to create the destination directory: %w", err)
			}
		}
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("unable to create the destination file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Printf("could not close the opened file: %v", err)
			}
		}()
		dst = f
	}
	_, err := dst.Write(data)
	return err
}

// destination returns the output path of a source: either the explicit
// destination or the source base name with the output extension.
func (op *Ops) destination(src string) string {
	if op.Dst != "" {
		if fs, err := os.Stat(op.Dst); err != nil || !fs.IsDir() {
			return op.Dst
		}
	}

	ext := ".ico"
	if op.Package {
		ext = ".zip"
	}
	base := "favicon"
	if src != op.PipeName && !utils.IsValidUrl(src) {
		base = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
	return filepath.Join(op.Dst, base+ext)
}

// printOpStatus displays the relevant information about the conversion process.
func (op *Ops) printOpStatus(fname string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s%s",
			utils.DecorateText(fmt.Sprintf("\nError converting %s", filepath.Base(fname)), utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err), utils.DefaultMessage),
		)
		return
	}
	if fname != op.PipeName {
		fmt.Fprintf(os.Stderr, "\nThe icon has been saved as: %s %s\n",
			utils.DecorateText(fname, utils.SuccessMessage),
			utils.DefaultColor,
		)
	}
}

func (op *Ops) printDuration(err error, since time.Time) {
	if err == nil {
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(since)), utils.SuccessMessage))
	}
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each supported file to a new channel.
// The skip directory, holding the generated icons, is not visited.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan interface{},
	src, skip string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if f.IsDir() && path != src && filepath.Clean(path) == filepath.Clean(skip) {
				return filepath.SkipDir
			}
			if !f.Mode().IsRegular() {
				return nil
			}

			if isValidExtension(filepath.Ext(f.Name()), srcExts) {
				select {
				case <-done:
					return errors.New("directory walk cancelled")
				case pathChan <- path:
				}
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	ext = strings.ToLower(ext)
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}
