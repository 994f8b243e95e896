package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the acoustic link:
 *
 *			Send frames through the sound card.
 *			Listen for frames.
 *			Pair two devices.
 *
 *---------------------------------------------------------------*/

import (
	"github.com/riif/ultralink/src/tools"
)

func main() {
	tools.LinkMain()
}
