package slimweb

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/majestrate/slimweb/lib/bittorrent/extensions"
	"github.com/majestrate/slimweb/lib/common"
	"github.com/majestrate/slimweb/lib/config"
	"github.com/majestrate/slimweb/lib/log"
	t "github.com/majestrate/slimweb/lib/translate"
	"github.com/majestrate/slimweb/lib/version"
	"github.com/urfave/cli/v2"
)

var conf = new(config.Config)

func loadConfig(ctx *cli.Context) error {
	err := conf.Load(ctx.String("config"))
	if err != nil {
		return err
	}
	if ctx.Bool("debug") {
		conf.Log.Level = "debug"
	}
	return conf.Log.Apply()
}

var probeCommand = &cli.Command{
	Name:  "probe",
	Usage: "connect to a peer and print its wt_slimweb announcement",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "peer",
			Aliases: []string{"p"},
			Usage:   "peer address host:port",
		},
		&cli.StringFlag{
			Name:  "infohash",
			Usage: "hex infohash to ask the peer for",
		},
		&cli.StringFlag{
			Name:  "torrent-type",
			Usage: "torrent type we announce",
		},
		&cli.StringFlag{
			Name:  "payload",
			Usage: "payload we announce",
		},
		&cli.BoolFlag{
			Name:  "force-choke",
			Usage: "force choke the peer once it answered",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "how long to wait for the peer",
			Value: 10 * time.Second,
		},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.IsSet("peer") {
			conf.Peer.Addr = ctx.String("peer")
		}
		if ctx.IsSet("infohash") {
			conf.Peer.Infohash = ctx.String("infohash")
		}
		if ctx.IsSet("torrent-type") {
			conf.SlimWeb.TorrentType = ctx.String("torrent-type")
		}
		if ctx.IsSet("payload") {
			conf.SlimWeb.Payload = ctx.String("payload")
		}
		if ctx.IsSet("force-choke") {
			conf.Peer.ForceChoke = ctx.Bool("force-choke")
		}
		if conf.Peer.Addr == "" {
			return cli.Exit(t.T("no peer address given"), 1)
		}
		ih, err := conf.Peer.ParsedInfohash()
		if err != nil {
			return err
		}
		if ih == (common.Infohash{}) {
			return cli.Exit(t.T("no infohash given"), 1)
		}
		opts := conf.SlimWeb.Options()
		timeout := ctx.Duration("timeout")
		nc, err := net.DialTimeout("tcp", conf.Peer.Addr, timeout)
		if err != nil {
			return err
		}
		res, err := Probe(nc, ih, opts, conf.Peer.ForceChoke, timeout)
		if err != nil {
			return err
		}
		w := ctx.App.Writer
		fmt.Fprintf(w, "peer: %s\n", res.PeerID.String())
		if res.Warning != nil {
			fmt.Fprintf(w, "%s: %s\n", extensions.EventWarning, t.E(res.Warning))
			return nil
		}
		fmt.Fprintf(w, "%s:\n", extensions.EventHandshake)
		fmt.Fprintf(w, "  clientVer:   %s\n", res.Announcement.ClientVer)
		fmt.Fprintf(w, "  torrentType: %s\n", res.Announcement.TorrentType)
		fmt.Fprintf(w, "  payload:     %s\n", res.Announcement.Payload)
		return nil
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "accept peers and log their wt_slimweb announcements",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Aliases: []string{"l"},
			Usage:   "address to listen on",
		},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.IsSet("listen") {
			conf.Peer.Listen = ctx.String("listen")
		}
		factory := extensions.NewSlimWebFactory(conf.SlimWeb.Options())
		l, err := net.Listen("tcp", conf.Peer.Listen)
		if err != nil {
			return err
		}
		log.Info(t.T("listening on %s", l.Addr()))

		sigC := make(chan os.Signal, 1)
		signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigC
			log.Info("Interrupted")
			l.Close()
		}()

		for {
			nc, err := l.Accept()
			if err != nil {
				return nil
			}
			go func() {
				err := ServePeer(nc, factory, conf.Peer.ForceChoke)
				if err != nil {
					log.Warnf("peer %s: %s", nc.RemoteAddr(), err)
				}
			}()
		}
	},
}

var genconfCommand = &cli.Command{
	Name:      "genconf",
	Usage:     "write a default config file",
	ArgsUsage: "config.ini",
	Action: func(ctx *cli.Context) error {
		fname := ctx.Args().First()
		if fname == "" {
			return cli.Exit(t.T("no config file given"), 1)
		}
		c := new(config.Config)
		if err := c.Load(""); err != nil {
			return err
		}
		return c.Save(fname)
	},
}

var app = &cli.App{
	Name:    version.Name,
	Usage:   "exchange wt_slimweb handshakes with bittorrent peers",
	Version: version.Version(),
	Before:  loadConfig,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file",
			Value:   "slimweb.ini",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		probeCommand,
		serveCommand,
		genconfCommand,
	},
}

// Run runs the slimweb command line
func Run() {
	if err := app.Run(os.Args); err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
}
