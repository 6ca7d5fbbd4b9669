// Command poolminer wires the pool connection manager to a concrete
// worker and a list of configured endpoints, and runs either as an OS
// service (via github.com/kardianos/service) or in the foreground with
// -console, grounded on other_examples/pineapple-electric-prosper-pool's
// minerservice.go "create manager, wire logger, Run()" shape.
package main

import (
	"flag"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"

	"github.com/cakotreo/nsfminer/pkg/client"
	"github.com/cakotreo/nsfminer/pkg/config"
	"github.com/cakotreo/nsfminer/pkg/endpoint"
	"github.com/cakotreo/nsfminer/pkg/pool"
	"github.com/cakotreo/nsfminer/pkg/worker"
)

type program struct {
	log     *logrus.Entry
	manager *pool.Manager
}

func (p *program) Start(s service.Service) error {
	go p.manager.Start()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.log.Info("service stop requested")
	p.manager.Stop()
	p.manager.Close()
	return nil
}

func main() {
	configPath := flag.String("config", "poolminer.json", "path to the JSON settings file")
	threads := flag.Int("threads", 1, "number of simulated mining threads")
	console := flag.Bool("console", false, "run in the foreground instead of as an OS service")
	uris := flag.String("pools", "", "comma-separated pool URIs, preferred endpoint first")
	flag.Parse()

	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := base.WithField("component", "poolminer")

	settings, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Warn("could not load config file, using defaults")
		settings = config.Default()
	}
	if err := config.Validate(settings); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	registry := endpoint.NewRegistry()
	for _, uri := range splitURIs(*uris) {
		d, err := parseEndpoint(uri)
		if err != nil {
			log.WithError(err).WithField("uri", uri).Fatal("could not parse pool uri")
		}
		registry.Add(d)
	}

	w := worker.NewSimpleWorker(log.WithField("component", "worker"), *threads)
	mgr := pool.NewManager(log.WithField("component", "manager"), settings, registry, w, nil)

	prg := &program{log: log, manager: mgr}

	if *console {
		mgr.Start()
		waitForSignal(log)
		mgr.Stop()
		mgr.Close()
		return
	}

	svcConfig := &service.Config{
		Name:        "nsfminer-poolmanager",
		DisplayName: "NSF Miner Pool Connection Service",
		Description: "Maintains a pool connection session and drives the local mining worker.",
	}
	svc, err := service.New(prg, svcConfig)
	if err != nil {
		log.WithError(err).Fatal("could not construct service")
	}
	if err := svc.Run(); err != nil {
		log.WithError(err).Fatal("service run failed")
	}
}

// waitForSignal blocks until SIGINT or SIGTERM, matching -console's
// expected "run until interrupted" behavior.
func waitForSignal(log *logrus.Entry) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig).Info("received signal, stopping")
}

func splitURIs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseEndpoint performs the "basic parseability" check spec §4.1 assigns
// to an external URI parser: scheme selects the protocol family, the
// exit sentinel host (endpoint.ExitHost) bypasses URL parsing entirely
// since it is never dialed.
func parseEndpoint(uri string) (*endpoint.Descriptor, error) {
	if strings.EqualFold(uri, endpoint.ExitHost) {
		return endpoint.New(uri, endpoint.ExitHost, 0, client.FamilySimulation), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}

	host := u.Hostname()
	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
	}
	if host == "" && u.Opaque != "" {
		if h, p, splitErr := net.SplitHostPort(u.Opaque); splitErr == nil {
			host = h
			if port, err = strconv.Atoi(p); err != nil {
				return nil, err
			}
		}
	}

	var fam client.Family
	switch strings.ToLower(u.Scheme) {
	case "stratum", "stratum+tcp", "stratum+ssl", "tcp":
		fam = client.FamilyStratum
	case "sim", "simulate", "simulation":
		fam = client.FamilySimulation
	default:
		fam = client.FamilyHTTPPoll
	}

	return endpoint.New(uri, host, port, fam), nil
}
