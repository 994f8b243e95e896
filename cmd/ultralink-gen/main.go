package main

import (
	"github.com/riif/ultralink/src/tools"
)

func main() {
	tools.GenFramesMain()
}
