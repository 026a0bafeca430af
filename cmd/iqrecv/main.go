// ABOUTME: Receiver for an iqsource websocket sink
// ABOUTME: Finds the sink over mDNS or by address and writes the stream to a file
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/iqsource/internal/client"
	"github.com/Resonate-Protocol/iqsource/internal/discovery"
)

var (
	serverAddr = flag.String("server", "", "Sink address host:port (default: first sink found over mDNS)")
	codec      = flag.String("codec", "raw", "Requested codec: raw or opus")
	output     = flag.String("output", "-", "Output file (- for standard output)")
	maxItems   = flag.Int64("items", 0, "Stop after this many items (raw codec, 0 = unlimited)")
	browseFor  = flag.Duration("browse", 3*time.Second, "How long to look for sinks over mDNS")
)

func main() {
	flag.Parse()

	// Standard output may be carrying the stream
	log.SetOutput(os.Stderr)

	addr := *serverAddr
	if addr == "" {
		sinks, err := discovery.Browse(*browseFor)
		if err != nil {
			log.Printf("Discovery error: %v", err)
		}
		if len(sinks) == 0 {
			log.Fatalf("No sinks found, use -server")
		}
		addr = sinks[0].Addr()
	}

	var out io.Writer = os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create output: %v", err)
		}
		defer f.Close()
		out = f
	}

	c := client.NewClient(client.Config{ServerAddr: addr, Codec: *codec})
	if err := c.Connect(); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	itemSize := int64(c.Hello().ItemSize)
	var items, frames int64

	for {
		select {
		case sig := <-sigChan:
			log.Printf("Received %v signal, stopping", sig)
			report(items, frames)
			return

		case st := <-c.Stats:
			log.Printf("Sink: %d items, %d rotations, %d rewinds, current %s", st.Items, st.Rotations, st.Rewinds, st.Current)

		case frame, ok := <-c.Frames:
			if !ok {
				report(items, frames)
				if err := c.Err(); err != nil {
					log.Fatalf("Stream ended: %v", err)
				}
				return
			}

			if *maxItems > 0 && *codec == "raw" && itemSize > 0 {
				left := (*maxItems - items) * itemSize
				if int64(len(frame)) > left {
					frame = frame[:left]
				}
			}
			if _, err := out.Write(frame); err != nil {
				log.Fatalf("Write failed: %v", err)
			}
			frames++
			if itemSize > 0 {
				items += int64(len(frame)) / itemSize
			}

			if *maxItems > 0 && *codec == "raw" && items >= *maxItems {
				report(items, frames)
				return
			}
		}
	}
}

func report(items, frames int64) {
	fmt.Fprintf(os.Stderr, "received %d frames (%d items)\n", frames, items)
}
