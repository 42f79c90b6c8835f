package main

import (
	"os"

	"github.com/orgball2608/insta-downloader-client/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
