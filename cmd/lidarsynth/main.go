package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/lidarsynth/internal/config"
	"github.com/banshee-data/lidarsynth/internal/lidar/l1packets"
	"github.com/banshee-data/lidarsynth/internal/lidar/l2frames"
	"github.com/banshee-data/lidarsynth/internal/lidar/l5tracks"
	"github.com/banshee-data/lidarsynth/internal/lidar/monitor"
	"github.com/banshee-data/lidarsynth/internal/lidar/pipeline"
	"github.com/banshee-data/lidarsynth/internal/lidar/recorder"
	"github.com/banshee-data/lidarsynth/internal/midiout"
	"github.com/banshee-data/lidarsynth/internal/monitoring"
	"github.com/banshee-data/lidarsynth/internal/version"
)

var (
	configFile  = flag.String("config", config.DefaultConfigPath, "Tuning configuration file (.json, .yaml or .yml)")
	serialPath  = flag.String("serial", "", "Serial port of the range sensor")
	pcapFile    = flag.String("pcap", "", "Replay a pcap capture instead of reading a sensor")
	pcapPort    = flag.Int("pcap-port", l1packets.DefaultUDPPort, "UDP port carrying nodes in the capture (0 accepts any)")
	speed       = flag.Float64("speed", 1.0, "Replay speed multiplier for -pcap (0 replays as fast as possible)")
	synthetic   = flag.Bool("synthetic", false, "Generate a synthetic scene instead of reading a sensor")
	seed        = flag.Int64("seed", 1, "Random seed for -synthetic")
	midiPort    = flag.String("midi-port", "", "MIDI output port name or prefix (empty disables MIDI output)")
	listPorts   = flag.Bool("list-ports", false, "List serial and MIDI ports and exit")
	dbFile      = flag.String("db", "", "Record sessions to this SQLite database (empty disables)")
	listen      = flag.String("listen", ":8082", "HTTP listen address for the monitor (empty disables)")
	logFile     = flag.String("log-file", "", "Write logs to this size-rotated file instead of stderr")
	recordPcap  = flag.String("record-pcap", "", "Record the node stream to this pcap file")
	traceLog    = flag.Bool("trace", false, "Log a line for every processed rotation")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

const (
	scanStartTimeout = 2 * time.Second
	eventHistory     = 512
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listPorts {
		printPorts()
		return
	}

	if *logFile != "" {
		closer, err := monitoring.RotateTo(*logFile, monitoring.FileOptions{Compress: true})
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer closer.Close()
	}
	var trace io.Writer
	if *traceLog {
		trace = log.Writer()
	}
	pipeline.SetLogWriters(log.Writer(), trace)
	log.Print(version.String())

	tuning, err := config.LoadTuningConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, sourceName, err := openSource(ctx, tuning)
	if err != nil {
		log.Fatalf("failed to open source: %v", err)
	}
	if *recordPcap != "" {
		f, err := os.Create(*recordPcap)
		if err != nil {
			log.Fatalf("failed to create capture file: %v", err)
		}
		defer f.Close()
		w, err := l1packets.NewPcapWriter(f, l1packets.DefaultUDPPort)
		if err != nil {
			log.Fatalf("failed to start capture: %v", err)
		}
		src = l1packets.NewTeeSource(src, w, 0)
		log.Printf("recording node stream to %s", *recordPcap)
	}
	defer src.Close()

	// Outputs: MIDI port, in-memory history for the monitor, session store.
	var outputs l5tracks.MultiOutput
	var sent *midiout.MessageOutput
	if *midiPort != "" {
		port, err := midiout.OpenPort(*midiPort, midiout.Config{})
		if err != nil {
			log.Fatalf("failed to open MIDI output: %v", err)
		}
		defer midiout.CloseDriver()
		defer port.Close()
		outputs = append(outputs, port)
		sent = port.MessageOutput
	}
	history := midiout.NewRecorder(eventHistory)
	outputs = append(outputs, midiout.NewMessageOutput(history.Send, midiout.Config{}))

	trackerCfg := l5tracks.TrackerConfigFromTuning(tuning)

	var store *recorder.Store
	var sink pipeline.RotationSink
	if *dbFile != "" {
		store, err = recorder.Open(*dbFile, recorder.Options{})
		if err != nil {
			log.Fatalf("failed to open session database: %v", err)
		}
		defer store.Close()
		if _, err := store.StartSession(sourceName, trackerCfg); err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		outputs = append(outputs, store)
		sink = store
	}

	tracker := l5tracks.NewTracker(trackerCfg, l5tracks.TrackerOptions{Output: outputs})
	stats := pipeline.NewStats(nil)
	rt := pipeline.NewRuntime(src, tracker, pipeline.RuntimeConfig{
		Buffer:          l2frames.RotationBufferConfig{Capacity: tuning.GetBufferCapacity()},
		RotationTimeout: tuning.GetRotationTimeout(),
		LogInterval:     tuning.GetStatsInterval(),
	}, pipeline.RuntimeOptions{Sink: sink, Stats: stats})

	var wg sync.WaitGroup
	if *listen != "" {
		server := monitor.NewServer(monitor.ServerConfig{
			Address: *listen,
			Tracker: tracker,
			Stats:   stats,
			Tuning:  tuning,
			Store:   store,
			Events:  history,
			Output:  sent,
			Source:  sourceName,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil {
				log.Printf("monitor server failed: %v", err)
			}
		}()
	}

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("pipeline stopped: %v", err)
	}

	// Silence every voice before the outputs close.
	tracker.Reset()
	if store != nil {
		if err := store.EndSession(); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}

	stop()
	wg.Wait()
	stats.LogStats()
	log.Print("lidarsynth stopped")
}

// openSource opens whichever input the flags select. Exactly one of
// -serial, -pcap and -synthetic must be given.
func openSource(ctx context.Context, tuning *config.TuningConfig) (l1packets.Source, string, error) {
	chosen := 0
	for _, set := range []bool{*serialPath != "", *pcapFile != "", *synthetic} {
		if set {
			chosen++
		}
	}
	if chosen != 1 {
		return nil, "", errors.New("exactly one of -serial, -pcap or -synthetic is required")
	}

	switch {
	case *serialPath != "":
		opts, err := l1packets.PortOptions{
			BaudRate: tuning.GetSerialBaudRate(),
			DataBits: tuning.GetSerialDataBits(),
			StopBits: tuning.GetSerialStopBits(),
			Parity:   tuning.GetSerialParity(),
		}.Normalize()
		if err != nil {
			return nil, "", err
		}
		src, err := l1packets.OpenSerial(ctx, *serialPath, opts, scanStartTimeout)
		if err != nil {
			return nil, "", err
		}
		return src, "serial:" + *serialPath, nil

	case *pcapFile != "":
		src, err := l1packets.OpenPcap(*pcapFile, l1packets.PcapConfig{UDPPort: *pcapPort, SpeedMultiplier: *speed})
		if err != nil {
			return nil, "", err
		}
		return src, "pcap:" + *pcapFile, nil

	default:
		cfg := l1packets.DefaultSyntheticConfig()
		cfg.Seed = *seed
		cfg.Realtime = true
		return l1packets.NewSyntheticSource(cfg), "synthetic", nil
	}
}

func printPorts() {
	serialPorts, err := l1packets.ListPorts()
	if err != nil {
		log.Printf("failed to list serial ports: %v", err)
	}
	fmt.Println("Serial ports:")
	for _, p := range serialPorts {
		fmt.Printf("  %s\n", p)
	}
	fmt.Println("MIDI outputs:")
	for _, p := range midiout.ListPorts() {
		fmt.Printf("  %s\n", p)
	}
	midiout.CloseDriver()
}
