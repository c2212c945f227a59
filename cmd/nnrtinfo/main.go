// nnrtinfo lists the execution devices the runtime would discover on this
// machine, with their declared capabilities.
package main

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/nnrt/nnrt/backends"
	"github.com/nnrt/nnrt/manager"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

type deviceInfo struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	Type             string `json:"type"`
	FeatureLevel     int64  `json:"featureLevel"`
	CachingSupported bool   `json:"cachingSupported"`
	ModelCacheFiles  uint32 `json:"modelCacheFiles"`
	DataCacheFiles   uint32 `json:"dataCacheFiles"`
	Extensions       int    `json:"extensions"`
}

func main() {
	app := &cli.App{
		Name:  "nnrtinfo",
		Usage: "list the neural-network runtime's execution devices",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "emit the device list as JSON",
			},
			&cli.BoolFlag{
				Name:  "cpu-only",
				Usage: "restrict discovery to the built-in reference device",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		klog.Exitf("nnrtinfo: %+v", err)
	}
}

func run(c *cli.Context) error {
	m := manager.NewDeviceManager(manager.EmptyDirectory{},
		manager.WithCPUOnly(c.Bool("cpu-only")))

	infos := make([]deviceInfo, 0, len(m.Devices()))
	for _, dev := range m.Devices() {
		numModel, numData := dev.NumberOfCacheFilesNeeded()
		infos = append(infos, deviceInfo{
			Name:             dev.Name(),
			Version:          dev.VersionString(),
			Type:             dev.Type().String(),
			FeatureLevel:     dev.FeatureLevel(),
			CachingSupported: backends.CachingSupported(dev),
			ModelCacheFiles:  numModel,
			DataCacheFiles:   numData,
			Extensions:       len(dev.SupportedExtensions()),
		})
	}

	if c.Bool("json") {
		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	for _, info := range infos {
		fmt.Printf("%s (%s)\n", info.Name, info.Type)
		fmt.Printf("  version:       %s\n", info.Version)
		fmt.Printf("  feature level: %d\n", info.FeatureLevel)
		if info.CachingSupported {
			fmt.Printf("  caching:       %d model / %d data cache files\n", info.ModelCacheFiles, info.DataCacheFiles)
		} else {
			fmt.Printf("  caching:       unsupported\n")
		}
	}
	return nil
}
