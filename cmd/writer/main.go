package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli"

	"github.com/astafan8/Qcodes/internal/format"
	"github.com/astafan8/Qcodes/internal/sinkqueue"
	"github.com/astafan8/Qcodes/internal/transport"
	"github.com/astafan8/Qcodes/internal/writer"
)

// VERSION is injected by buildflags, matching the teacher's own convention.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "qcodes-writer"
	myApp.Usage = "measurement sink: <push_port> <req_port> <format_name>"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Value: ".",
			Usage: "directory new run files are written into",
		},
		cli.IntFlag{
			Name:  "disk-sleep",
			Value: 1000,
			Usage: "artificial per-row write delay in milliseconds, 0 to disable",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		args := c.Args()
		if len(args) < 3 {
			return cli.NewExitError("usage: qcodes-writer <push_port> <req_port> <format_name>", 1)
		}
		pushPort, err := strconv.Atoi(args.Get(0))
		if err != nil {
			return cli.NewExitError("invalid push_port: "+err.Error(), 1)
		}
		reqPort, err := strconv.Atoi(args.Get(1))
		if err != nil {
			return cli.NewExitError("invalid req_port: "+err.Error(), 1)
		}

		config := Config{
			PushPort:  pushPort,
			ReqPort:   reqPort,
			Format:    args.Get(2),
			DataDir:   c.String("datadir"),
			Log:       c.String("log"),
			DiskSleep: c.Int("disk-sleep"),
		}

		if c.String("c") != "" {
			if err := parseJSONConfig(&config, c.String("c")); err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
		}

		if config.Log != "" {
			f, err := os.OpenFile(config.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer f.Close()
			log.SetOutput(f)
		}

		format.RowSleep = time.Duration(config.DiskSleep) * time.Millisecond

		log.Println("version:", VERSION)
		log.Println("push_port:", config.PushPort)
		log.Println("req_port:", config.ReqPort)
		log.Println("format:", config.Format)
		log.Println("datadir:", config.DataDir)
		log.Println("disk sleep:", format.RowSleep)

		writer.ExitOnFatal(run(config))
		return nil
	}

	myApp.Run(os.Args)
}

// run drives the sink's INIT → READY → DRAINING → DEAD state machine
// (spec.md §4.6) and returns the error (if any) the process should exit on.
func run(config Config) error {
	pull, err := transport.DialPullSocket(config.PushPort)
	if err != nil {
		log.Printf("writer: connect pull socket: %v", err)
		return err
	}

	reply, err := transport.NewReplyServer(config.ReqPort)
	if err != nil {
		pull.Close()
		log.Printf("writer: bind reply socket: %v", err)
		return err
	}

	queue := sinkqueue.New()

	var touchFn func()
	thread, err := writer.NewThread(queue, config.DataDir, config.Format, func() { touchFn() })
	if err != nil {
		pull.Close()
		reply.Close()
		log.Printf("writer: build writer thread: %v", err)
		return err
	}

	loop := writer.NewLoop(pull, reply, queue, thread)
	touchFn = loop.Touch
	defer loop.Close()

	return loop.Run()
}
