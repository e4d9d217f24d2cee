package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"smartfarm/internal/config"
	"smartfarm/internal/db"
	"smartfarm/internal/devices"
	"smartfarm/internal/engine"
	"smartfarm/internal/health"
	"smartfarm/internal/ingest"
	"smartfarm/internal/mqtt"
	"smartfarm/internal/notify"
	"smartfarm/internal/redis"
	"smartfarm/internal/scheduler"
	"smartfarm/internal/taskqueue"
	"smartfarm/internal/telemetry"
	"smartfarm/internal/utils"
	"smartfarm/internal/weather"
	"smartfarm/internal/web"

	"github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	utils.InitLogging(cfg.LogLevel)

	dbConn, err := db.NewDB(cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbConn.Close()

	redisClient := redis.NewClient(cfg.RedisAddr)

	mqttClient, err := mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientID)
	if err != nil {
		log.Fatalf("Failed to connect to MQTT: %v", err)
	}
	defer mqttClient.Disconnect(250)

	telemetryStore := telemetry.NewStore(redisClient, dbConn)
	deviceRegistry := devices.NewRegistry(dbConn, mqttClient)
	weatherService := weather.NewService(redisClient)
	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom)
	notifier := notify.NewNotifier(redisClient, mailer)

	eng := engine.New(ruleStore{dbConn}, telemetryStore, deviceRegistry, weatherService, notifier, mailer)
	taskqueue.SetEngine(eng)
	go taskqueue.StartWorkers(cfg.RedisAddr, cfg.WorkerConcurrency)

	analyzer := health.NewAnalyzer(telemetryStore, dbConn, notifier)

	ingestHandler := ingest.NewHandler(dbConn, telemetryStore, deviceRegistry, notifier, analyzer)
	if err := ingestHandler.Subscribe(mqttClient); err != nil {
		log.Fatalf("Failed to subscribe to device topics: %v", err)
	}

	sched := scheduler.NewScheduler()
	if err := sched.ScheduleRulePass(cfg.EvalInterval); err != nil {
		log.Fatalf("Failed to schedule rule pass: %v", err)
	}
	sched.AddJob("health-sweep", cfg.HealthInterval, func() {
		analyzer.AnalyzeAll(context.Background())
	})
	sched.AddJob("stale-devices", cfg.StaleInterval, func() {
		sweepStaleDevices(dbConn, deviceRegistry, notifier)
	})
	sched.Start()

	webServer := web.NewWebServer(eng, dbConn, analyzer)
	go webServer.Start(cfg.HTTPAddr)

	if cfg.MDNSLocalName != "" {
		go startMDNSServer(cfg.MDNSLocalName)
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	sched.Stop()
	taskqueue.StopWorkers()
	log.Println("Shutdown complete")
}

// sweepStaleDevices flips silent devices to OFFLINE and alerts their farm
// owners.
func sweepStaleDevices(dbConn *db.DB, registry *devices.Registry, notifier *notify.Notifier) {
	ctx := context.Background()
	changed, err := registry.MarkStaleDevicesOffline(ctx)
	if err != nil {
		log.Printf("Stale device sweep failed: %v", err)
		return
	}
	for i := range changed {
		farm, err := dbConn.GetFarmByID(ctx, changed[i].FarmID)
		if err != nil {
			log.Printf("Farm %d lookup failed during stale sweep: %v", changed[i].FarmID, err)
			continue
		}
		notifier.NotifyDeviceOffline(ctx, farm, &changed[i])
	}
}

func startMDNSServer(localName string) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		log.Println("Failed to resolve UDP4 address for mDNS:", err)
		return
	}

	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		log.Println("Failed to resolve UDP6 address for mDNS:", err)
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		log.Println("Failed to listen on UDP4 for mDNS:", err)
		return
	}

	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		log.Println("Failed to listen on UDP6 for mDNS:", err)
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		log.Println("Failed to start mDNS server:", err)
	}
}
