package main

import (
	"fmt"

	"github.com/clash-sh/clash/pkg/clashconfig"
	"github.com/clash-sh/clash/pkg/clashlog"
	"github.com/clash-sh/clash/pkg/gitrepo"
)

// openWorkingTrees runs the probe and inspector against the repository
// reachable from startPath and loads its configuration, the sequence
// every subcommand needs before it can touch the engine.
func openWorkingTrees(startPath string, log *clashlog.Logger) ([]gitrepo.OpenTree, clashconfig.Config, error) {
	handles, err := gitrepo.Probe(startPath, log.Warn)
	if err != nil {
		return nil, clashconfig.Config{}, err
	}

	trees := gitrepo.Inspect(handles, log.Warn)
	if len(trees) == 0 {
		return nil, clashconfig.Config{}, fmt.Errorf("no working tree could be opened")
	}

	cfg, err := clashconfig.Load(trees[0].Model.Path)
	if err != nil {
		log.Warn("loading configuration: %v", err)
		cfg = clashconfig.Default()
	}

	return trees, cfg, nil
}
