// monk-fuse mounts a monk-ftp server as a local filesystem.
//
// Usage:
//
//	monk-fuse [flags] <mountpoint>
//	ls <mountpoint>/data/users/
//	cat <mountpoint>/data/users/user-123/email
//	echo "new content" > <mountpoint>/data/users/user-123/name
//	fusermount -u <mountpoint>
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/ianzepp/monk-ftp/internal/bridge"
	"github.com/ianzepp/monk-ftp/internal/config"
	"github.com/ianzepp/monk-ftp/internal/ftpc"
	"github.com/ianzepp/monk-ftp/internal/fusefs"
	"github.com/ianzepp/monk-ftp/internal/logging"
	"github.com/ianzepp/monk-ftp/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	host := flag.String("host", "", "FTP server host")
	port := flag.Int("port", 0, "FTP server port")
	user := flag.String("user", "", "FTP user")
	passphrase := flag.String("pass", "", "FTP passphrase (prompted if unset)")
	transport := flag.String("transport", "", `Protocol transport: "ftp" or "plain"`)
	metricsAddr := flag.String("metrics", "", "Prometheus listen address (empty disables)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	debug := flag.Bool("debug", false, "Enable FUSE debug output")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *host, *port, *user, *passphrase, *transport, *metricsAddr, *logLevel)
	cfg.MountPoint = flag.Arg(0)

	if cfg.Passphrase == "" && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Printf("Passphrase for %s@%s: ", cfg.User, cfg.Host)
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading passphrase: %v\n", err)
			os.Exit(1)
		}
		cfg.Passphrase = string(secret)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	log := logging.S()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Errorw("metrics server stopped", "error", err)
			}
		}()
		log.Infow("metrics enabled", "addr", cfg.MetricsAddr)
	}

	dialer, err := ftpc.NewDialer(ftpc.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Passphrase:  cfg.Passphrase,
		Transport:   cfg.Transport,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		log.Errorw("bad transport config", "error", err)
		os.Exit(1)
	}

	server, err := fusefs.Mount(cfg.MountPoint, bridge.New(dialer), *debug)
	if err != nil {
		log.Errorw("mount failed", "mountpoint", cfg.MountPoint, "error", err)
		os.Exit(1)
	}

	log.Infow("mounted",
		"mountpoint", cfg.MountPoint,
		"server", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		"transport", cfg.Transport,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Infow("unmounting", "mountpoint", cfg.MountPoint)
	if err := server.Unmount(); err != nil {
		log.Errorw("unmount failed; try fusermount -u", "error", err)
		// Give in-flight operations a moment, then force exit.
		time.Sleep(time.Second)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, host string, port int, user, pass, transport, metricsAddr, logLevel string) {
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if user != "" {
		cfg.User = user
	}
	if pass != "" {
		cfg.Passphrase = pass
	}
	if transport != "" {
		cfg.Transport = transport
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: monk-fuse [flags] <mountpoint>\n\n")
	fmt.Fprintf(os.Stderr, "Mounts a monk-ftp server as a local filesystem.\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}
