// Command langidd runs the clustered audio language-identification service.
//
// @title langid-mr API
// @version 1.0
// @description Clustered audio language-identification service.
// @host localhost:8088
// @BasePath /
package main

import (
	"github.com/cisco7507/langid-mr/internal/cli"
)

func main() {
	cli.Execute()
}
