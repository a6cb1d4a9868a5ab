package main

import (
	"flag"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/aligator/fatnav/fattest"
)

// sample builds a small volume to try out fatnav with:
//  /
//  ├── DOCS
//  │   ├── README.TXT
//  │   └── Long File Name.md
//  └── HELLO.TXT
func sample() []byte {
	readme := []byte("This image was written by cmd/generate.\n")
	long := []byte("# A file with a long name\n")
	hello := []byte("Hello FAT32!\n")

	img := fattest.NewDefault()
	img.Root().
		Label("FATNAV").
		Subdir("DOCS", 3).
		File("HELLO.TXT", 4, uint32(len(hello)))
	img.File(hello, 4)

	img.Directory(3).
		Dots(3, 0).
		File("README.TXT", 5, uint32(len(readme))).
		Long("Long File Name.md", fattest.Entry{Name: "LONGFI~1.MD", Attr: fattest.AttrArchive, Cluster: 6, Size: uint32(len(long))})
	img.File(readme, 5)
	img.File(long, 6)

	return img.Bytes()
}

// main for writing the sample image. Can be executed using 'go generate' from the project root.
func main() {
	dest := flag.String("o", filepath.Join("testdata", "sample.img"), "image to write")
	flag.Parse()

	afs := afero.NewOsFs()
	if err := afs.MkdirAll(filepath.Dir(*dest), 0755); err != nil {
		log.Fatal(err)
	}
	if err := afero.WriteFile(afs, *dest, sample(), 0644); err != nil {
		log.Fatal(err)
	}
	log.Infof("Wrote %s", *dest)
}
