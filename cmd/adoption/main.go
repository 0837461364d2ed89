// Package main: adoption service.
//
// The service connects to the node of the selected network profile (or to the provider injected through the OS ENV
// variable named in the config), loads the Adoption contract artifact, marks the pets already adopted and serves the
// page and the RESTful API to adopt them.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tarancss/adoption/adoption"
	"github.com/tarancss/adoption/lib/block"
	"github.com/tarancss/adoption/lib/config"
	"github.com/tarancss/adoption/lib/contract"
	"github.com/tarancss/adoption/lib/msg"
	"github.com/tarancss/adoption/lib/msg/amqp"
	"github.com/tarancss/adoption/lib/store"
	"github.com/tarancss/adoption/lib/store/db"
	"github.com/tarancss/adoption/watcher"
)

// hdWallet is the HD wallet number the accounts are derived from.
const hdWallet = 0

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9090")
	network := flag.String("n", "", "network profile to connect to, overrides the configuration")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	if *network != "" {
		conf.Network = *network
	}

	log.Printf("Configuration:%+v", conf)

	// select network profile
	networks, err := config.LoadNetworks(conf.NetworksFile)
	if err != nil {
		panic(err)
	}

	profile, err := networks.Get(conf.Network)
	if err != nil {
		panic(err)
	}

	// load pet catalog
	pets, err := adoption.LoadPets(conf.Pets)
	if err != nil {
		panic(err)
	}

	// connect to database
	var dbConn store.DB

	if conf.DBConn != "" {
		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			panic(err)
		}

		log.Printf("Connecting to database:%+v\n", conf.DBConn)

		defer func() {
			errClose := db.Close(conf.DBType, dbConn)
			log.Printf("Disconnecting %v database, err:%v", conf.DBType, errClose)
		}()
	}

	src, err := contract.NewSource(conf.Artifacts, dbConn)
	if err != nil {
		panic(err)
	}

	// load HD wallet accounts
	var signer *block.Signer

	if conf.Seed != "" {
		seed, err := hex.DecodeString(conf.Seed)
		if err != nil {
			panic(err)
		}

		if signer, err = block.NewSigner(seed, hdWallet, conf.Accounts); err != nil {
			panic(err)
		}

		log.Printf("Loaded %d HD wallet accounts", len(signer.Accounts()))
	}

	// select provider and build the client
	provider, source, err := block.SelectProvider(context.Background(), block.EnvInjector{Var: conf.ProviderVar}, profile.URL())
	if err != nil {
		panic(err)
	}

	client := block.BuildClient(provider, source, signer, time.Duration(conf.ReceiptPoll)*time.Second)
	defer client.Close()

	log.Printf("[%s] Blockchain client ready, provider:%s", profile.Name, client.Source())

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			_ = http.ListenAndServe(":9100", h)
		}()
	}

	// load message broker
	var mb msg.MsgBroker

	switch conf.MbType {
	case "amqp":
		r, err := amqp.New(conf.MbConn)
		if err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if r, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = r.Setup(nil); err != nil {
			panic(err)
		}

		mb = r

		defer func() {
			errClose := mb.Close()
			log.Printf("Closing messageBroker: %v", errClose)
		}()
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// the contract is loaded on first use
	load := func(ctx context.Context) (adoption.Contract, error) {
		d, err := contract.Deployed(ctx, src, conf.Contract, client, profile)
		if err != nil {
			return nil, err
		}

		log.Printf("[%s] %s deployed at %s on network %s", profile.Name, d.Name, d.Address.Hex(), d.NetworkID)

		return contract.NewAdoption(d, client), nil
	}

	// create adoption service
	a := adoption.New(client, load, adoption.Options{
		Network:   profile.Name,
		Contract:  conf.Contract,
		Pets:      pets,
		Networks:  networks,
		Broker:    mb,
		RateLimit: conf.RateLimit,
		RateBurst: conf.RateBurst,
	})

	a.Init(context.Background())

	// watch contract events
	opts := watcher.Options{Poll: time.Duration(conf.Poll) * time.Second, MaxBlocks: conf.MaxBlocks}
	if err = a.Watch(context.Background(), client.Eth(), conf.Watch, opts); err != nil {
		log.Printf("[%s] Error watching events %v:%v", profile.Name, conf.Watch, err)
	}

	// manage adoption events
	if err = a.ManageEvents(); err != nil {
		log.Printf("Error setting up broker readers for events:%v", err)
	}

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		a.Stop()
	}()

	// init RESTful API, wait for its return and log response
	log.Printf("Adoption: %s\n", a.Serve(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	// let the adopt chains in flight finish before closing the client and the broker
	a.Wait()
}
