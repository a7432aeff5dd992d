package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	clockmidi "go-midiclock/midi"
)

const enumerateTimeout = 3 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "listen":
		if len(os.Args) < 3 {
			usage()
			return
		}
		listen(os.Args[2])
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Clock Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List all MIDI ports")
	fmt.Println("  listen <name> - Print start/stop and measured BPM from an input")
	fmt.Println("  poll          - Print outputs as they are connected and removed")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	ins := make(chan []drivers.In, 1)
	go func() { ins <- midi.GetInPorts() }()
	select {
	case ports := <-ins:
		for i, p := range ports {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(enumerateTimeout):
		hung()
		return
	}

	fmt.Println("\n=== MIDI Output Ports ===")
	names, err := clockmidi.NewPortTransport(enumerateTimeout).Ports()
	if err != nil {
		hung()
		return
	}
	for i, name := range names {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

func hung() {
	fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
	fmt.Println("Fix: sudo killall coreaudiod midiserver")
}

// clockMeter measures tempo from incoming timing clock pulses
type clockMeter struct {
	count int
	first time.Time
}

// pulse records a clock at t and returns the BPM averaged over the last
// beat, once a full beat has been seen
func (c *clockMeter) pulse(t time.Time) (float64, bool) {
	if c.count == 0 {
		c.first = t
	}
	c.count++
	if c.count <= 24 {
		return 0, false
	}
	bpm := 60 / t.Sub(c.first).Seconds()
	c.count = 1
	c.first = t
	return bpm, true
}

func listen(name string) {
	var inPort drivers.In
	for _, p := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			inPort = p
			break
		}
	}
	if inPort == nil {
		fmt.Printf("No input matching %q\n", name)
		return
	}

	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", inPort.String())

	var meter clockMeter
	stop, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
		if len(msg) != 1 {
			return
		}
		switch msg[0] {
		case clockmidi.Clock:
			if bpm, ok := meter.pulse(time.Now()); ok {
				fmt.Printf("[%s] clock %.2f bpm\n", time.Now().Format("15:04:05.000"), bpm)
			}
		case clockmidi.Start:
			fmt.Printf("[%s] START\n", time.Now().Format("15:04:05.000"))
		case clockmidi.Stop:
			fmt.Printf("[%s] STOP\n", time.Now().Format("15:04:05.000"))
		}
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}

// pollDevices prints outputs as they appear and disappear, using the same
// enumeration the clock's discovery uses
func pollDevices() {
	fmt.Println("Polling outputs every second. Connect/disconnect devices to test. Ctrl+C to exit.")

	transport := clockmidi.NewPortTransport(enumerateTimeout)
	seen := map[string]bool{}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for ; ; <-ticker.C {
		names, err := transport.Ports()
		if err != nil {
			fmt.Printf("[%s] %v\n", time.Now().Format("15:04:05"), err)
			continue
		}
		current := map[string]bool{}
		for _, name := range names {
			current[name] = true
			if !seen[name] {
				fmt.Printf("[%s] + %s\n", time.Now().Format("15:04:05"), name)
			}
		}
		for name := range seen {
			if !current[name] {
				fmt.Printf("[%s] - %s\n", time.Now().Format("15:04:05"), name)
			}
		}
		seen = current
	}
}
