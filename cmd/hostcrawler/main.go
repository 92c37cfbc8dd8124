// Command hostcrawler discovers listings from search result pages and
// extracts host and licensing details from each listing.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute(os.Args[1:], os.Stdout, os.Stderr))
}
