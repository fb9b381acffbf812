// pingpong is the reference CLI: one binary, two roles. Run one
// terminal with --server and another with --client; they talk over a
// pair of named pipes (or vsock/tcp with --phy).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/brodyxchen/framerpc"
	"github.com/brodyxchen/framerpc/config"
	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/log"
	"github.com/brodyxchen/framerpc/phy"
	"github.com/brodyxchen/framerpc/statistics"
	"github.com/urfave/cli"
)

const clientSendDelay = time.Second

func main() {
	app := cli.NewApp()
	app.Name = "pingpong"
	app.Usage = "reference ping-pong RPC endpoint"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "server, s", Usage: "run as server"},
		cli.BoolFlag{Name: "client, c", Usage: "run as client"},
		cli.StringFlag{Name: "config", Usage: "path to TOML config"},
		cli.StringFlag{Name: "phy", Usage: "phy backend: pipe, vsock, tcp"},
		cli.StringFlag{Name: "first", Usage: "first FIFO path"},
		cli.StringFlag{Name: "second", Usage: "second FIFO path"},
		cli.UintFlag{Name: "cid", Usage: "vsock context id"},
		cli.StringFlag{Name: "ip", Usage: "tcp listen/dial ip"},
		cli.UintFlag{Name: "port", Usage: "vsock/tcp port"},
		cli.StringFlag{Name: "log-level", Usage: "error, info, debug or trace"},
		cli.StringFlag{Name: "metrics", Usage: "expose /metrics on this addr"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Errorf("pingpong: %v", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags override the file.
	if v := c.String("phy"); v != "" {
		cfg.PHY.Backend = v
	}
	if v := c.String("first"); v != "" {
		cfg.PHY.FirstPath = v
	}
	if v := c.String("second"); v != "" {
		cfg.PHY.SecondPath = v
	}
	if v := c.Uint("cid"); v != 0 {
		cfg.PHY.ContextID = uint32(v)
	}
	if v := c.String("ip"); v != "" {
		cfg.PHY.IP = v
	}
	if v := c.Uint("port"); v != 0 {
		cfg.PHY.Port = uint32(v)
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String("metrics"); v != "" {
		cfg.MetricsAddr = v
	}
	return cfg, cfg.Validate()
}

// buildPHY wires the configured backend. For pipes the two endpoints
// cross-wire the paths: the server sends on first/receives on second,
// the client the other way around.
func buildPHY(cfg *config.Config, server bool) (phy.PHY, error) {
	switch cfg.PHY.Backend {
	case "pipe":
		p := &phy.Pipe{SendPath: cfg.PHY.FirstPath, RecvPath: cfg.PHY.SecondPath}
		if !server {
			p.SendPath, p.RecvPath = cfg.PHY.SecondPath, cfg.PHY.FirstPath
		}
		return p, nil
	case "vsock":
		addr := &phy.VSockAddr{ContextID: cfg.PHY.ContextID, Port: cfg.PHY.Port}
		if server {
			return &phy.Sock{ListenAddr: addr}, nil
		}
		return &phy.Sock{DialAddr: addr}, nil
	case "tcp":
		ip := cfg.PHY.IP
		if ip == "" {
			ip = "127.0.0.1"
		}
		addr := &phy.TCPAddr{IP: ip, Port: cfg.PHY.Port}
		if server {
			return &phy.Sock{ListenAddr: addr}, nil
		}
		return &phy.Sock{DialAddr: addr}, nil
	default:
		return nil, errors.ErrInvalidArgs
	}
}

func run(c *cli.Context) error {
	server := c.Bool("server")
	client := c.Bool("client")
	if server == client {
		return cli.NewExitError("exactly one of --server or --client is required", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log.SetLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		log.EnableFile(cfg.LogFile)
	}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := statistics.Serve(cfg.MetricsAddr); err != nil {
				log.Errorf("metrics: %v", err)
			}
		}()
	}

	ph, err := buildPHY(cfg, server)
	if err != nil {
		return err
	}

	node, err := framerpc.New(&framerpc.Config{
		PHY:            ph,
		WorkerCount:    cfg.WorkerCount,
		QueueDepth:     cfg.QueueDepth,
		RequestTimeout: cfg.RequestTimeout(),
		HandlerTimeout: cfg.HandlerTimeout(),
	})
	if err != nil {
		return err
	}
	defer node.Close()

	if server {
		return runServer(node)
	}
	return runClient(node)
}

func runServer(node *framerpc.Node) error {
	err := node.Register("ping", func(args []byte, out []byte, timeout time.Duration) (int, error) {
		return copy(out, "pong"), nil
	})
	if err != nil {
		return err
	}
	err = node.Register("log", func(args []byte, out []byte, timeout time.Duration) (int, error) {
		log.Infof("peer log: %s", args)
		return 0, nil
	})
	if err != nil {
		return err
	}

	fmt.Println("===== RPC Server Activated =====")
	node.Start()

	select {}
}

func runClient(node *framerpc.Node) error {
	fmt.Println("===== RPC Client Activated =====")
	node.Start()

	resp := make([]byte, 100)
	for {
		n, err := node.Request("ping", nil, resp, time.Second)
		if err != nil {
			return err
		}
		fmt.Printf("Response: %s\n\n", resp[:n])
		time.Sleep(clientSendDelay)
	}
}
