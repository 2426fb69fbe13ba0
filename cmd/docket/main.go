// Command docket reviews, corrects and confirms extracted documents.
package main

import "github.com/mesh-intelligence/docket/internal/cli"

func main() {
	cli.Execute()
}
