// pagecapture captures paginated web documents into PDFs or image archives.
//
// Usage:
//
//	pagecapture capture <url> [flags]
//	pagecapture serve [flags]
//	pagecapture info <file>
package main

import "github.com/porticus-lab/go-page-capture/internal/cli"

func main() {
	cli.Execute()
}
