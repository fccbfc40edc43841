/*
Package icoforge converts a vector or raster image into a multi-resolution ICO file.

The conversion is split into two independent steps. The Rasterizer decodes the source
once and renders it into a transparent square canvas for every requested size,
preserving the aspect ratio of the source, then compresses each canvas as PNG.
The ico subpackage packs the PNG payloads verbatim into the icon container.

Supported sources are SVG, PNG, JPEG, WebP, GIF, BMP, TIFF, AVIF and ICO.

The package provides a command line interface and an HTTP service as well.
To check the supported commands type:

	$ icoforge --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/esimov/icoforge"
	)

	func main() {
		data, _ := os.ReadFile("logo.svg")
		src, err := icoforge.NewSource("logo.svg", "", data)
		if err != nil {
			log.Fatal(err)
		}

		ico, _, err := icoforge.NewRasterizer().Convert(context.Background(), src, icoforge.DefaultSizes)
		if err != nil {
			log.Fatalf("Error converting image: %v", err)
		}
		os.WriteFile("favicon.ico", ico, 0644)
	}
*/
package icoforge
