package main

import (
	"github.com/anoixa/media-album/cmd"
	"github.com/anoixa/media-album/config"
	"github.com/anoixa/media-album/utils"
)

func main() {
	utils.Log().Info().Msgf("media album %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
