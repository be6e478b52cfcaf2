// Command measure-demo exercises a MeasurerClient end to end: it spawns
// (or reuses) a sink process and streams synthetic rows at it, the Go
// equivalent of the Python prototype's own smoke-test script.
package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli"

	"github.com/astafan8/Qcodes/internal/format"
	"github.com/astafan8/Qcodes/internal/measurer"
	"github.com/astafan8/Qcodes/internal/proto"
)

// VERSION is injected by buildflags, matching the teacher's own convention.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "measure-demo"
	myApp.Usage = "stream synthetic rows through a MeasurerClient"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "startport",
			Value: 47000,
			Usage: "first push port to try",
		},
		cli.StringFlag{
			Name:  "format",
			Value: format.DefaultFormat(),
			Usage: fmt.Sprintf("file format, one of %v", format.Names()),
		},
		cli.StringFlag{
			Name:  "sink",
			Value: "qcodes-writer",
			Usage: "path to the sink executable",
		},
		cli.IntFlag{
			Name:  "points",
			Value: 10,
			Usage: "number of rows to send in this run",
		},
		cli.DurationFlag{
			Name:  "interval",
			Value: 200 * time.Millisecond,
			Usage: "delay between rows",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		if c.String("log") != "" {
			f, err := os.OpenFile(c.String("log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer f.Close()
			log.SetOutput(f)
		}

		cfg := measurer.Config{
			StartPort:   c.Int("startport"),
			FileFormat:  c.String("format"),
			SinkExePath: c.String("sink"),
		}

		client, err := measurer.NewClient(cfg)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer client.Close()

		log.Println("push port:", client.PushPort())
		log.Println("req port:", client.ReqPort())

		client.StartRun()
		log.Println("run guid:", client.GUID())

		points := c.Int("points")
		interval := c.Duration("interval")
		for i := 0; i < points; i++ {
			x := float64(i) * 0.1
			row := proto.Row{
				{Name: "x", Value: x},
				{Name: "y", Value: math.Sin(x)},
			}
			if err := client.AddResult(row); err != nil {
				return cli.NewExitError("add result "+strconv.Itoa(i)+": "+err.Error(), 1)
			}
			time.Sleep(interval)
		}

		log.Println("done, sent", points, "rows")
		return nil
	}

	myApp.Run(os.Args)
}
