package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spritepal/spritepal"
	"github.com/spritepal/spritepal/rom"
	"github.com/spritepal/spritepal/scan"
	"github.com/spritepal/spritepal/similarity"
	"github.com/spritepal/spritepal/vram"
	"github.com/urfave/cli/v2"
)

const defaultDB = "spritepal.db"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

// parseOffset accepts plain decimal and 0x-prefixed hex.
func parseOffset(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return v, nil
}

func defaultOutput(vramPath string) string {
	ext := filepath.Ext(vramPath)
	return strings.TrimSuffix(vramPath, ext) + "_modified" + ext
}

func previewPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_preview.png"
}

func main() {
	app := cli.NewApp()

	app.Name = "spritepal"
	app.Usage = "SNES sprite extraction and injection utility"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"SPRITEPAL_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to the sprite hash database",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "inject",
			Usage:     "Convert a PNG to 4bpp tiles and inject it into a VRAM dump",
			ArgsUsage: "PNG",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "vram",
					Usage:    "VRAM dump to inject into",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "output",
					Usage: "output path (default: derived from the VRAM path)",
				},
				&cli.StringFlag{
					Name:  "offset",
					Value: "0x1000",
					Usage: "byte offset, decimal or 0x-prefixed hex",
				},
				&cli.BoolFlag{
					Name:  "preview",
					Usage: "also write a preview PNG of the injected tiles",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				offset, err := parseOffset(c.String("offset"))
				if err != nil {
					return cli.Exit(err, 1)
				}

				output := c.String("output")
				if output == "" {
					output = defaultOutput(c.String("vram"))
				}

				m := spritepal.New(nil, newLogger(c))

				tileData, numTiles, err := m.ConvertPNG(c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}

				if err := vram.Inject(tileData, c.String("vram"), offset, output); err != nil {
					return cli.Exit(err, 1)
				}
				fmt.Printf("Injected %d tiles (%d bytes) at 0x%X into %s\n", numTiles, len(tileData), offset, output)

				if c.Bool("preview") {
					if err := m.WritePreview(tileData, previewPath(output), 1); err != nil {
						return cli.Exit(err, 1)
					}
				}

				return nil
			},
		},
		{
			Name:      "extract",
			Usage:     "Extract tiles from a VRAM dump to a PNG",
			ArgsUsage: "VRAM",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "offset",
					Value: "0x1000",
					Usage: "byte offset, decimal or 0x-prefixed hex",
				},
				&cli.StringFlag{
					Name:  "size",
					Value: "0x1000",
					Usage: "bytes of tile data to extract",
				},
				&cli.StringFlag{
					Name:  "output",
					Value: "extracted.png",
					Usage: "output PNG path",
				},
				&cli.IntFlag{
					Name:  "zoom",
					Value: 1,
					Usage: "nearest-neighbor scale factor for the output",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				offset, err := parseOffset(c.String("offset"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				size, err := parseOffset(c.String("size"))
				if err != nil {
					return cli.Exit(err, 1)
				}

				m := spritepal.New(nil, newLogger(c))

				data, numTiles, err := vram.ReadTiles(c.Args().First(), offset, int(size))
				if err != nil {
					return cli.Exit(err, 1)
				}

				if err := m.WritePreview(data, c.String("output"), c.Int("zoom")); err != nil {
					return cli.Exit(err, 1)
				}
				fmt.Printf("Extracted %d tiles to %s\n", numTiles, c.String("output"))

				return nil
			},
		},
		{
			Name:      "info",
			Usage:     "Identify a ROM from its internal header",
			ArgsUsage: "ROM",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				h, err := rom.ReadHeader(c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}
				crc, err := rom.CRC32(c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}

				fmt.Printf("Title:    %s\n", h.Title)
				fmt.Printf("Mapping:  %s\n", h.Mapping)
				fmt.Printf("Checksum: 0x%04X\n", h.Checksum)
				fmt.Printf("CRC32:    0x%08X\n", crc)

				return nil
			},
		},
		{
			Name:      "scan",
			Usage:     "Scan a ROM for sprite data",
			ArgsUsage: "ROM",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "start",
					Value: "0",
					Usage: "start offset",
				},
				&cli.StringFlag{
					Name:  "end",
					Value: "0",
					Usage: "end offset (0 for end of ROM)",
				},
				&cli.IntFlag{
					Name:  "step",
					Value: scan.DefaultStep,
					Usage: "base offset stride",
				},
				&cli.IntFlag{
					Name:  "workers",
					Value: scan.DefaultWorkers,
					Usage: "number of parallel workers",
				},
				&cli.BoolFlag{
					Name:  "adaptive",
					Usage: "enable adaptive step sizing with pattern learning",
				},
				&cli.Float64Flag{
					Name:  "quality",
					Value: scan.QualityThreshold,
					Usage: "minimum confidence to report",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				start, err := parseOffset(c.String("start"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				end, err := parseOffset(c.String("end"))
				if err != nil {
					return cli.Exit(err, 1)
				}

				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()

				logger := newLogger(c)

				var results []scan.Result
				if c.Bool("adaptive") {
					f := scan.NewAdaptiveFinder(c.Int("workers"), logger)
					f.Step = c.Int("step")
					results, err = f.Search(ctx, c.Args().First(), int(start), int(end), nil)
				} else {
					f := scan.NewParallelFinder(c.Int("workers"), logger)
					f.Step = c.Int("step")
					results, err = f.Search(ctx, c.Args().First(), int(start), int(end), nil)
				}
				if err != nil {
					return cli.Exit(err, 1)
				}

				for _, r := range results {
					if r.Confidence < c.Float64("quality") {
						continue
					}
					fmt.Printf("0x%06X  %4d tiles  %5d -> %5d bytes  confidence %.2f\n",
						r.Offset, r.TileCount, r.CompressedSize, r.Size, r.Confidence)
				}

				return nil
			},
		},
		{
			Name:      "index",
			Usage:     "Scan a ROM and index every sprite for similarity search",
			ArgsUsage: "ROM",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "workers",
					Value: scan.DefaultWorkers,
					Usage: "number of parallel workers",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				db, err := similarity.OpenDB(c.String("db"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer db.Close()

				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()

				m := spritepal.New(db, newLogger(c))

				count, err := m.IndexROM(ctx, c.Args().First(), 0, 0, c.Int("workers"), nil)
				if err != nil {
					return cli.Exit(err, 1)
				}
				fmt.Printf("Indexed %d sprites\n", count)

				return nil
			},
		},
		{
			Name:      "similar",
			Usage:     "Find indexed sprites similar to an image",
			ArgsUsage: "PNG",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:  "threshold",
					Value: 0.8,
					Usage: "minimum similarity score",
				},
				&cli.IntFlag{
					Name:  "max",
					Value: 10,
					Usage: "maximum number of matches",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				db, err := similarity.OpenDB(c.String("db"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer db.Close()

				m := spritepal.New(db, newLogger(c))

				matches, err := m.FindSimilarImage(c.Args().First(), c.Int("max"), c.Float64("threshold"))
				if err != nil {
					return cli.Exit(err, 1)
				}

				for _, match := range matches {
					fmt.Printf("0x%06X  score %.3f  distance %d\n", match.Offset, match.Score, match.HashDistance)
				}

				return nil
			},
		},
		{
			Name:  "groups",
			Usage: "Cluster indexed sprites into similar families",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:  "threshold",
					Value: 0.85,
					Usage: "minimum similarity score within a group",
				},
			},
			Action: func(c *cli.Context) error {
				db, err := similarity.OpenDB(c.String("db"))
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer db.Close()

				m := spritepal.New(db, newLogger(c))
				if err := m.Engine().LoadFrom(db); err != nil {
					return cli.Exit(err, 1)
				}

				g := similarity.GroupFinder{Engine: m.Engine()}
				for i, group := range g.FindGroups(c.Float64("threshold"), 2) {
					fmt.Printf("group %d:", i+1)
					for _, offset := range group {
						fmt.Printf(" 0x%06X", offset)
					}
					fmt.Println()
				}

				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
