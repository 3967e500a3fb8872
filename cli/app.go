// Package cli contains the regions command line tool, which edits and inspects the region trees
// kept in a store directory.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig = "config"
	flagDir    = "dir"
	flagDebug  = "debug"
	flagKind   = "kind"
	flagMin    = "min"
	flagMax    = "max"
	flagPoint  = "point"
	flagBox    = "box"
	flagFile   = "file"
	flagBatch  = "batch"
)

// NewApp returns the regions app writing command output to out and logs to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	r := &runner{out: out, errOut: errOut}
	editFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:  flagPoint,
			Usage: "cell `x,z[,y]` to edit, may be repeated",
		},
		&cli.StringSliceFlag{
			Name:  flagBox,
			Usage: "inclusive box `x,z[,y]:x,z[,y]` to edit, may be repeated",
		},
	}

	return &cli.App{
		Name:            "regions",
		Usage:           "edit and inspect stored region trees",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagDir,
				Usage: "store `DIR`, overriding the config",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: r.before,
		After:  r.after,
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "create an empty tree covering a box",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagKind,
						Usage: "tree kind, quadtree or octree; defaults to the configured kind",
					},
					&cli.StringFlag{
						Name:     flagMin,
						Required: true,
						Usage:    "lowest cell `x,z[,y]`",
					},
					&cli.StringFlag{
						Name:     flagMax,
						Required: true,
						Usage:    "highest cell `x,z[,y]`",
					},
				},
				Action: r.createAction,
			},
			{
				Name:      "add",
				Usage:     "include cells in a tree",
				ArgsUsage: "<name>",
				Flags:     editFlags,
				Action:    r.addAction,
			},
			{
				Name:      "remove",
				Usage:     "exclude cells from a tree",
				ArgsUsage: "<name>",
				Flags:     editFlags,
				Action:    r.removeAction,
			},
			{
				Name:      "import",
				Usage:     "include the cells holding positions read from a file, one x,z[,y] per line",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagFile,
						Value: "-",
						Usage: "positions `FILE`, - for stdin",
					},
					&cli.IntFlag{
						Name:  flagBatch,
						Value: 1024,
						Usage: "positions per bitmap",
					},
				},
				Action: r.importAction,
			},
			{
				Name:      "contains",
				Usage:     "report whether a tree includes a cell",
				ArgsUsage: "<name> <x,z[,y]>",
				Action:    r.containsAction,
			},
			{
				Name:   "stats",
				Usage:  "print a table describing every stored tree",
				Action: r.statsAction,
			},
			{
				Name:      "dump",
				Usage:     "print a tree's encoding and node outline",
				ArgsUsage: "<name>",
				Action:    r.dumpAction,
			},
			{
				Name:      "delete",
				Usage:     "delete a stored tree",
				ArgsUsage: "<name>",
				Action:    r.deleteAction,
			},
		},
	}
}
